package validateloanapplication

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"credit-eligibility-workers/internal/common/errors"
	"credit-eligibility-workers/internal/common/logger"
	"credit-eligibility-workers/internal/common/metrics"
	"credit-eligibility-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "validate-loan-application"
)

type Handler struct {
	config       *Config
	db           *sql.DB
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

// NewHandler builds the handler. Without a db the document check is skipped.
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

	var vars map[string]interface{}
	if err := json.Unmarshal([]byte(job.Variables), &vars); err != nil {
		stdErr := errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
		h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
		done(string(stdErr.Code))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, vars)
	if err != nil {
		stdErr := errors.AsStandardError(err)
		h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
		done(string(stdErr.Code))
		return
	}

	h.completeJob(client, job, output)
	done("")
}

// execute reports form problems in the output rather than failing the job,
// so the process can route the applicant back to the form.
func (h *Handler) execute(ctx context.Context, vars map[string]interface{}) (*Output, error) {
	result, err := loanFormSchema.Validate(vars)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	var input Input
	if raw, err := json.Marshal(vars); err == nil {
		// type mismatches are already in result
		_ = json.Unmarshal(raw, &input)
	}

	if !result.HasErrors("phone") && input.Phone != "" && !validation.ValidatePhone(input.Phone) {
		result.Add("phone", CodeInvalidFormat, "Phone must be a 10 digit Indian mobile number")
	}
	if !result.HasErrors("email") && input.Email != "" && !validation.ValidateEmail(input.Email) {
		result.Add("email", CodeInvalidFormat, "Invalid email format")
	}

	missing := []string{}
	if h.db != nil && input.BeneficiaryID != "" {
		missing, err = h.checkDocuments(ctx, input.BeneficiaryID, result)
		if err != nil {
			return nil, err
		}
	}

	output := &Output{
		Valid:            result.Valid && len(result.Errors) == 0,
		Errors:           result.Errors,
		MissingDocuments: missing,
	}
	if output.Errors == nil {
		output.Errors = []validation.ValidationError{}
	}

	h.logger.Info("validation completed", map[string]interface{}{
		"beneficiaryId":    input.BeneficiaryID,
		"valid":            output.Valid,
		"errorCount":       len(output.Errors),
		"missingDocuments": missing,
	})
	return output, nil
}

// checkDocuments requires every configured document to be on file with an
// uploaded image, and checks identity numbers against their formats.
func (h *Handler) checkDocuments(ctx context.Context, beneficiaryID string, result *validation.ValidationResult) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT doc_type, document_number, COALESCE(image_path, '')
		FROM beneficiary_documents
		WHERE beneficiary_id = $1`, beneficiaryID)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.NewQueryTimeoutError("beneficiary documents")
		}
		return nil, errors.NewQueryExecutionFailedError("beneficiary documents", err)
	}
	defer rows.Close()

	onFile := make(map[string]document)
	for rows.Next() {
		var d document
		if err := rows.Scan(&d.docType, &d.number, &d.imagePath); err != nil {
			return nil, errors.NewQueryExecutionFailedError("beneficiary documents", err)
		}
		onFile[strings.ToUpper(d.docType)] = d
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("beneficiary documents", err)
	}

	missing := []string{}
	for _, required := range h.config.RequiredDocuments {
		d, ok := onFile[strings.ToUpper(required)]
		if !ok || strings.TrimSpace(d.imagePath) == "" {
			missing = append(missing, required)
			result.Add("documents."+required, CodeMissingDocument, required+" document with image is required")
		}
	}

	if d, ok := onFile["AADHAAR"]; ok && !validation.ValidateAadhaar(d.number) {
		result.Add("documents.AADHAAR", CodeInvalidDocument, "Aadhaar number must be 12 digits")
	}
	if d, ok := onFile["PAN"]; ok && !validation.ValidatePAN(d.number) {
		result.Add("documents.PAN", CodeInvalidDocument, "PAN must look like ABCDE1234F")
	}
	return missing, nil
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

// Execute validates a typed input, for callers outside a job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	var vars map[string]interface{}
	if err := json.Unmarshal(raw, &vars); err != nil {
		return nil, errors.NewInternalError(err)
	}
	return h.execute(ctx, vars)
}
