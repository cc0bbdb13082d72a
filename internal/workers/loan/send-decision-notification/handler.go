package senddecisionnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"credit-eligibility-workers/internal/common/aws"
	"credit-eligibility-workers/internal/common/errors"
	"credit-eligibility-workers/internal/common/logger"
	"credit-eligibility-workers/internal/common/metrics"
	"credit-eligibility-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-decision-notification"
)

type Handler struct {
	config       *Config
	ses          aws.SESService
	sns          aws.SNSService
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, ses aws.SESService, sns aws.SNSService, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		ses:          ses,
		sns:          sns,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	done := metrics.TrackJob(TaskType)
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		stdErr := errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
		h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
		done(string(stdErr.Code))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		stdErr := errors.AsStandardError(err)
		h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
		done(string(stdErr.Code))
		return
	}

	h.completeJob(client, job, output)
	done("")
}

// execute sends the decision by email and, for approvals, by SMS. Email is
// the channel of record: a failed email fails the job so it is retried. A
// failed SMS is reported in the output only.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	status := strings.ToUpper(strings.TrimSpace(input.ApplicationStatus))
	msg, ok := messages[status]
	if !ok {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("no notification for application status %q", input.ApplicationStatus))
	}
	if input.ApplicationID == "" {
		return nil, errors.NewInvalidInputError("applicationId is required")
	}

	output := &Output{
		NotificationID: uuid.New().String(),
		EmailStatus:    StatusDisabled,
		SMSStatus:      StatusDisabled,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}

	if h.config.EmailEnabled && h.ses != nil {
		if err := h.sendEmail(ctx, msg, input, output); err != nil {
			return nil, err
		}
	}

	if h.config.SMSEnabled && h.sns != nil {
		h.sendSMS(ctx, msg, status, input, output)
	}

	output.Status = overallStatus(output.EmailStatus, output.SMSStatus)
	h.logger.Info("decision notification processed", map[string]interface{}{
		"applicationId":  input.ApplicationID,
		"notificationId": output.NotificationID,
		"status":         output.Status,
		"email":          output.EmailStatus,
		"sms":            output.SMSStatus,
	})
	return output, nil
}

func (h *Handler) sendEmail(ctx context.Context, msg message, input *Input, output *Output) error {
	to := strings.TrimSpace(input.Email)
	if to == "" || !validation.ValidateEmail(to) {
		output.EmailStatus = StatusSkipped
		h.logger.Warn("no usable email address", map[string]interface{}{
			"applicationId": input.ApplicationID,
		})
		metrics.NotificationsSent.WithLabelValues(ChannelEmail, StatusSkipped).Inc()
		return nil
	}

	subject, err := render(msg.Subject, input)
	if err != nil {
		return errors.NewInternalError(err)
	}
	body, err := render(msg.Body, input)
	if err != nil {
		return errors.NewInternalError(err)
	}

	id, err := aws.SendEmail(ctx, h.ses, h.config.FromEmail, to, subject, body)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues(ChannelEmail, StatusFailed).Inc()
		return errors.NewNotificationSendFailedError(ChannelEmail, err).
			WithMetadata("applicationId", input.ApplicationID)
	}

	output.EmailStatus = StatusSent
	output.EmailMessageID = id
	metrics.NotificationsSent.WithLabelValues(ChannelEmail, StatusSent).Inc()
	return nil
}

func (h *Handler) sendSMS(ctx context.Context, msg message, status string, input *Input, output *Output) {
	if status != "APPROVED" {
		output.SMSStatus = StatusSkipped
		return
	}

	phone, ok := validation.NormalizePhone(input.Phone)
	if !ok {
		output.SMSStatus = StatusSkipped
		metrics.NotificationsSent.WithLabelValues(ChannelSMS, StatusSkipped).Inc()
		return
	}

	text, err := render(msg.SMS, input)
	if err == nil {
		var id string
		id, err = aws.SendSMS(ctx, h.sns, h.config.SMSSenderID, phone, text)
		output.SMSMessageID = id
	}
	if err != nil {
		output.SMSStatus = StatusFailed
		metrics.NotificationsSent.WithLabelValues(ChannelSMS, StatusFailed).Inc()
		h.logger.Warn("sms send failed", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"error":         err,
		})
		return
	}

	output.SMSStatus = StatusSent
	metrics.NotificationsSent.WithLabelValues(ChannelSMS, StatusSent).Inc()
}

// overallStatus is sent when any channel delivered, failed when a channel
// was attempted and none delivered, and disabled otherwise.
func overallStatus(channels ...string) string {
	result := StatusDisabled
	for _, s := range channels {
		switch s {
		case StatusSent:
			return StatusSent
		case StatusFailed:
			result = StatusFailed
		}
	}
	return result
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
