package routeloanapplication

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"credit-eligibility-workers/internal/common/errors"
	"credit-eligibility-workers/internal/common/logger"
	"credit-eligibility-workers/internal/common/metrics"
	"credit-eligibility-workers/internal/scoring"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "route-loan-application"
)

type Handler struct {
	config       *Config
	redis        redis.Cmdable
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

// NewHandler builds the handler. rdb holds the officer review queue; when it
// is nil applications are routed without being queued.
func NewHandler(config *Config, rdb redis.Cmdable, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		redis:        rdb,
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if !(input.LoanAmount > 0) || math.IsInf(input.LoanAmount, 1) {
		return nil, errors.NewInvalidInputError("loanAmount must be a positive finite number")
	}

	route, priority, err := h.decideRoute(input)
	if err != nil {
		return nil, err
	}

	output := &Output{Route: route, Priority: priority}
	if route == RouteOfficerReview {
		h.enqueue(ctx, input, output)
	}

	metrics.LoanRoutes.WithLabelValues(route, priority).Inc()
	h.logger.Info("loan application routed", map[string]interface{}{
		"applicationId":    input.ApplicationID,
		"beneficiaryId":    input.BeneficiaryID,
		"eligibilityLabel": input.EligibilityLabel,
		"loanAmount":       input.LoanAmount,
		"route":            route,
		"priority":         priority,
		"queuePosition":    output.QueuePosition,
	})
	return output, nil
}

// decideRoute sends auto-eligible applicants within the auto-approve limit
// straight through, rejects ineligible ones and queues everything else for
// an officer. Large amounts get high priority.
func (h *Handler) decideRoute(input *Input) (string, string, error) {
	label := scoring.EligibilityLabel(input.EligibilityLabel)
	if input.RiskBand != "" && scoring.LabelFor(scoring.RiskBand(input.RiskBand)) != label {
		return "", "", errors.NewInvalidInputError(fmt.Sprintf("eligibility label %s does not match risk band %s", input.EligibilityLabel, input.RiskBand))
	}

	switch label {
	case scoring.NotEligible:
		return RouteReject, PriorityLow, nil
	case scoring.EligibleAuto:
		if input.LoanAmount <= h.config.AutoApproveMaxAmount {
			return RouteAutoApprove, PriorityLow, nil
		}
	case scoring.EligibleManual:
	default:
		return "", "", errors.NewInvalidInputError(fmt.Sprintf("unknown eligibility label %q", input.EligibilityLabel))
	}

	if input.LoanAmount >= h.config.HighPriorityAmount {
		return RouteOfficerReview, PriorityHigh, nil
	}
	return RouteOfficerReview, PriorityMedium, nil
}

// enqueue appends the application to the officer queue. The queue is
// advisory, so Redis failures are logged and the route stands.
func (h *Handler) enqueue(ctx context.Context, input *Input, output *Output) {
	if h.redis == nil {
		return
	}

	entry, err := json.Marshal(queueEntry{
		ApplicationID: input.ApplicationID,
		BeneficiaryID: input.BeneficiaryID,
		LoanAmount:    input.LoanAmount,
		Priority:      output.Priority,
		QueuedAt:      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Warn("failed to encode officer queue entry", map[string]interface{}{
			"queue":         h.config.OfficerQueueKey,
			"applicationId": input.ApplicationID,
			"error":         err,
		})
		return
	}

	depth, err := h.redis.RPush(ctx, h.config.OfficerQueueKey, entry).Result()
	if err != nil {
		h.logger.Warn("failed to queue application for officer review", map[string]interface{}{
			"queue": h.config.OfficerQueueKey,
			"error": err,
		})
		return
	}

	output.QueuePosition = depth
	if h.config.QueueBusyThreshold > 0 && depth > h.config.QueueBusyThreshold {
		output.OfficerQueueBusy = true
		h.logger.Warn("officer review queue is busy", map[string]interface{}{
			"queue": h.config.OfficerQueueKey,
			"depth": depth,
		})
	}
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
