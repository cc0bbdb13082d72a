package quickestimate

import (
	"context"

	"credit-eligibility-workers/internal/common/errors"
	"credit-eligibility-workers/internal/common/logger"
	"credit-eligibility-workers/internal/common/metrics"
	"credit-eligibility-workers/internal/scoring"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "quick-estimate"
)

type Handler struct {
	config       *Config
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
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

	input, err := ParseInput(job.Variables)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
		var output *Output
		output, err = h.execute(ctx, input)
		cancel()
		if err == nil {
			h.completeJob(client, job, output)
			done("")
			return
		}
	}

	stdErr := errors.AsStandardError(err)
	h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
	done(string(stdErr.Code))
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input.LoanAmount < 0 || input.TenureMonths < 0 || input.ElectricityBill < 0 || input.MobileBill < 0 {
		return nil, errors.NewInvalidInputError("loan amount, tenure and bills must not be negative")
	}

	est := scoring.QuickEstimate(input.LoanAmount, input.TenureMonths, input.ElectricityBill, input.MobileBill)

	h.logger.Debug("quick estimate computed", map[string]interface{}{
		"loanAmount":     input.LoanAmount,
		"tenureMonths":   input.TenureMonths,
		"estimatedScore": est.Score,
	})
	return &Output{Estimate: est, Indicative: true}, nil
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
