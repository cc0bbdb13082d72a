package createloanapplication

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"credit-eligibility-workers/internal/common/database"
	"credit-eligibility-workers/internal/common/errors"
	"credit-eligibility-workers/internal/common/logger"
	"credit-eligibility-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "create-loan-application"
)

type Handler struct {
	config       *Config
	db           *sql.DB
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

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
	if input.BeneficiaryID == "" {
		return nil, errors.NewInvalidInputError("beneficiaryId is required")
	}
	if input.LoanAmount <= 0 || input.TenureMonths <= 0 {
		return nil, errors.NewInvalidInputError("loanAmount and tenureMonths must be positive")
	}

	var pending bool
	err := h.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM loan_applications
			WHERE beneficiary_id = $1 AND status = $2
		)`, input.BeneficiaryID, StatusPending).Scan(&pending)
	if err != nil {
		return nil, h.queryError(ctx, "pending application check", err)
	}
	if pending {
		return nil, errors.NewDuplicateApplicationError(input.BeneficiaryID)
	}

	appID := uuid.New().String()
	createdAt := time.Now().UTC()

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO loan_applications (
			id, beneficiary_id, loan_amount, tenure_months, phone, email,
			status, route, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		appID,
		input.BeneficiaryID,
		input.LoanAmount,
		input.TenureMonths,
		strings.TrimSpace(input.Phone),
		strings.TrimSpace(input.Email),
		StatusPending,
		sql.NullString{String: input.Route, Valid: input.Route != ""},
		createdAt,
	)
	if err != nil {
		switch {
		case database.IsForeignKeyViolation(err):
			return nil, errors.NewBeneficiaryNotFoundError(input.BeneficiaryID)
		case database.IsUniqueViolation(err):
			return nil, errors.NewDuplicateApplicationError(input.BeneficiaryID)
		case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, errors.NewQueryTimeoutError("insert loan application")
		}
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	// Audit failures are logged only.
	if _, err := database.WriteAudit(ctx, h.db, database.AuditEntry{
		EntityType: "loan_application",
		EntityID:   appID,
		Action:     "created",
		Details: map[string]interface{}{
			"beneficiaryId": input.BeneficiaryID,
			"loanAmount":    input.LoanAmount,
			"tenureMonths":  input.TenureMonths,
			"route":         input.Route,
		},
	}); err != nil {
		h.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":         err,
			"applicationId": appID,
		})
	}

	h.logger.Info("loan application created", map[string]interface{}{
		"applicationId": appID,
		"beneficiaryId": input.BeneficiaryID,
		"loanAmount":    input.LoanAmount,
		"tenureMonths":  input.TenureMonths,
	})

	return &Output{
		ApplicationID:     appID,
		ApplicationStatus: StatusPending,
		CreatedAt:         createdAt.Format(time.RFC3339),
	}, nil
}

func (h *Handler) queryError(ctx context.Context, query string, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewQueryTimeoutError(query)
	}
	return errors.NewQueryExecutionFailedError(query, err)
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
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
