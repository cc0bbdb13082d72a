package decideloanapplication

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
	TaskType = "decide-loan-application"
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
	decision := strings.ToLower(strings.TrimSpace(input.Decision))
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, errors.NewInvalidDecisionError(input.Decision)
	}
	if input.ApplicationID == "" {
		return nil, errors.NewInvalidInputError("applicationId is required")
	}
	if input.OfficerID == "" {
		return nil, errors.NewInvalidInputError("officerId is required")
	}

	status := StatusRejected
	if decision == DecisionApprove {
		status = StatusApproved
	}
	decidedAt := time.Now().UTC()

	var app application
	var historyID string
	err := database.WithTx(ctx, h.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT beneficiary_id, loan_amount, tenure_months, phone, email, status
			FROM loan_applications
			WHERE id = $1
			FOR UPDATE`, input.ApplicationID).
			Scan(&app.beneficiaryID, &app.amount, &app.tenure, &app.phone, &app.email, &app.status)
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NewApplicationNotFoundError(input.ApplicationID)
		}
		if err != nil {
			return errors.NewQueryExecutionFailedError("select loan application", err)
		}
		if app.status != StatusPending {
			return errors.NewApplicationNotPendingError(input.ApplicationID, app.status)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE loan_applications
			SET status = $2, officer_id = $3, decision_notes = $4, updated_at = $5
			WHERE id = $1`,
			input.ApplicationID,
			status,
			input.OfficerID,
			strings.TrimSpace(input.Notes),
			decidedAt,
		); err != nil {
			return errors.NewQueryExecutionFailedError("update loan application", err)
		}

		if status != StatusApproved {
			return nil
		}

		historyID = uuid.New().String()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO loan_history (
				id, beneficiary_id, application_id, amount, tenure, repayment_status, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			historyID,
			app.beneficiaryID,
			input.ApplicationID,
			app.amount,
			app.tenure,
			RepaymentPending,
			decidedAt,
		); err != nil {
			return errors.NewDatabaseInsertFailedError(err)
		}
		return nil
	})
	if err != nil {
		var stdErr *errors.StandardError
		if stderrors.As(err, &stdErr) {
			return nil, stdErr
		}
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.NewQueryTimeoutError("decide loan application")
		}
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}

	if _, err := database.WriteAudit(ctx, h.db, database.AuditEntry{
		EntityType: "loan_application",
		EntityID:   input.ApplicationID,
		Action:     strings.ToLower(status),
		Details: map[string]interface{}{
			"officerId":     input.OfficerID,
			"loanHistoryId": historyID,
		},
	}); err != nil {
		h.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":         err,
			"applicationId": input.ApplicationID,
		})
	}

	metrics.LoanDecisions.WithLabelValues(decision).Inc()
	h.logger.Info("loan application decided", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"officerId":     input.OfficerID,
		"status":        status,
	})

	return &Output{
		ApplicationID:     input.ApplicationID,
		ApplicationStatus: status,
		Decision:          decision,
		DecidedAt:         decidedAt.Format(time.RFC3339),
		LoanHistoryID:     historyID,
		BeneficiaryID:     app.beneficiaryID,
		LoanAmount:        app.amount,
		TenureMonths:      app.tenure,
		Phone:             app.phone,
		Email:             app.email,
	}, nil
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
