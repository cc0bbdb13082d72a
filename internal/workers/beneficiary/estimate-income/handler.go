package estimateincome

import (
	"context"
	"database/sql"
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
	TaskType = "estimate-income"

	// Shared with calculate-credit-score.
	scoreCacheKeyPrefix = "credit:score:"
)

type Handler struct {
	config       *Config
	db           *sql.DB
	redis        redis.Cmdable
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

// NewHandler builds the handler. With a db the estimate is stored and the
// beneficiary's previous score is cleared, since it was computed from the
// old income. rdb drops the cached score alongside.
func NewHandler(config *Config, db *sql.DB, rdb redis.Cmdable, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
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

	input, err := ParseInput(job.Variables)
	if err != nil {
		stdErr := errors.AsStandardError(err)
		h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
		done(string(stdErr.Code))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, input)
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
	b := input.Bills
	if b.Electricity < 0 || b.Mobile < 0 || b.Gas < 0 || input.DeclaredMonthlyIncome < 0 {
		return nil, errors.NewInvalidInputError("bill amounts and declared income must not be negative")
	}

	income := scoring.EstimateIncome(b, input.DeclaredMonthlyIncome)
	output := &Output{
		EstimatedMonthlyIncome: income,
		IncomeCategory:         scoring.IncomeCategory(income),
		UtilityBand:            scoring.UtilityIncomeBand(b),
	}

	if h.db != nil && input.BeneficiaryID != "" {
		if err := h.storeEstimate(ctx, input.BeneficiaryID, output); err != nil {
			return nil, err
		}
		output.ScoreReset = true
		h.dropCachedScore(ctx, input.BeneficiaryID)
	}

	h.logger.Info("income estimated", map[string]interface{}{
		"beneficiaryId":  input.BeneficiaryID,
		"billsTotal":     b.Total(),
		"income":         income,
		"incomeCategory": output.IncomeCategory,
		"scoreReset":     output.ScoreReset,
	})
	return output, nil
}

func (h *Handler) storeEstimate(ctx context.Context, beneficiaryID string, output *Output) error {
	res, err := h.db.ExecContext(ctx, `
		UPDATE beneficiaries
		SET income_est = $2, income_category = $3,
		    model_score = NULL, risk_band = NULL, eligibility_label = NULL,
		    updated_at = $4
		WHERE id = $1`,
		beneficiaryID,
		sql.NullFloat64{Float64: output.EstimatedMonthlyIncome, Valid: output.EstimatedMonthlyIncome > 0},
		sql.NullString{String: output.IncomeCategory, Valid: output.IncomeCategory != ""},
		time.Now().UTC(),
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("update income estimate", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewBeneficiaryNotFoundError(beneficiaryID)
	}
	return nil
}

func (h *Handler) dropCachedScore(ctx context.Context, beneficiaryID string) {
	if h.redis == nil {
		return
	}
	if err := h.redis.Del(ctx, scoreCacheKeyPrefix+beneficiaryID).Err(); err != nil {
		h.logger.Warn("failed to drop cached score", map[string]interface{}{
			"beneficiaryId": beneficiaryID,
			"error":         err,
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
