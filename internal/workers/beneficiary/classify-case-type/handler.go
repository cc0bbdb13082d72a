package classifycasetype

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"credit-eligibility-workers/internal/common/errors"
	"credit-eligibility-workers/internal/common/logger"
	"credit-eligibility-workers/internal/common/metrics"
	"credit-eligibility-workers/internal/scoring"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "classify-case-type"
)

var categories = map[scoring.CaseType]string{
	scoring.CaseNewToCredit:   "Case 1",
	scoring.CaseFewLoans:      "Case 2",
	scoring.CaseManyLoans:     "Case 3",
	scoring.CaseDelaysNoLoans: "Case 4",
}

type Handler struct {
	config       *Config
	db           *sql.DB
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

// NewHandler builds the handler. When db is set the case type is stored on
// the beneficiary.
func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
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
	if input.NumberOfLoans < 0 || input.EmiDueDelays < 0 {
		return nil, errors.NewInvalidInputError("numberOfLoans and emiDueDelays must not be negative")
	}

	caseType := scoring.ClassifyCase(input.NumberOfLoans, input.EmiDueDelays)
	output := &Output{
		CaseType:     string(caseType),
		Category:     CategoryUncategorized,
		DetailFields: scoring.DetailFields(caseType),
	}
	if category, ok := categories[caseType]; ok {
		output.Category = category
		output.Classified = true
	}
	if output.DetailFields == nil {
		output.DetailFields = []string{}
	}

	if err := h.storeCaseType(ctx, input.BeneficiaryID, caseType); err != nil {
		return nil, err
	}

	h.logger.Info("case type classified", map[string]interface{}{
		"beneficiaryId": input.BeneficiaryID,
		"numberOfLoans": input.NumberOfLoans,
		"emiDueDelays":  input.EmiDueDelays,
		"caseType":      output.CaseType,
	})
	return output, nil
}

func (h *Handler) storeCaseType(ctx context.Context, beneficiaryID string, caseType scoring.CaseType) error {
	if h.db == nil || beneficiaryID == "" {
		return nil
	}

	res, err := h.db.ExecContext(ctx, `
		UPDATE beneficiaries SET case_type = $2, updated_at = $3 WHERE id = $1`,
		beneficiaryID,
		sql.NullString{String: string(caseType), Valid: caseType != scoring.CaseUnclassified},
		time.Now().UTC(),
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("update case type", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewBeneficiaryNotFoundError(beneficiaryID)
	}
	return nil
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
