package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Scoring
	ErrCodeBeneficiaryNotFound ErrorCode = "BENEFICIARY_NOT_FOUND"
	ErrCodeScorePersistFailed  ErrorCode = "SCORE_PERSIST_FAILED"

	// Loan applications
	ErrCodeDuplicateApplication  ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeApplicationNotFound   ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeApplicationNotPending ErrorCode = "APPLICATION_NOT_PENDING"
	ErrCodeInvalidDecision       ErrorCode = "INVALID_DECISION"

	// Postgres
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	// Redis
	ErrCodeCacheOperationFailed ErrorCode = "CACHE_OPERATION_FAILED"

	// Elasticsearch
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout                 ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexOperationFailed          ErrorCode = "INDEX_OPERATION_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key that is forwarded to the process as an error variable.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// New builds a StandardError whose retryability follows the code's retry budget.
func New(code ErrorCode, message, details string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: IsRetryableErrorCode(code),
		Timestamp: time.Now().UTC(),
	}
}

// Wrap is New with err kept as the cause and used as the details.
func Wrap(code ErrorCode, message string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	e := New(code, message, details)
	e.cause = err
	return e
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func NewInvalidInputError(details string) *StandardError {
	return New(ErrCodeInvalidInput, "Invalid job variables", details)
}

func NewBeneficiaryNotFoundError(beneficiaryID string) *StandardError {
	return New(ErrCodeBeneficiaryNotFound, "Beneficiary not found", fmt.Sprintf("beneficiaryId: %s", beneficiaryID)).
		WithMetadata("beneficiaryId", beneficiaryID)
}

func NewDuplicateApplicationError(beneficiaryID string) *StandardError {
	return New(ErrCodeDuplicateApplication, "Beneficiary already has a pending loan application", fmt.Sprintf("beneficiaryId: %s", beneficiaryID)).
		WithMetadata("beneficiaryId", beneficiaryID)
}

func NewApplicationNotFoundError(applicationID string) *StandardError {
	return New(ErrCodeApplicationNotFound, "Loan application not found", fmt.Sprintf("applicationId: %s", applicationID)).
		WithMetadata("applicationId", applicationID)
}

func NewApplicationNotPendingError(applicationID, status string) *StandardError {
	return New(ErrCodeApplicationNotPending, "Loan application is not pending", fmt.Sprintf("applicationId: %s, status: %s", applicationID, status)).
		WithMetadata("applicationId", applicationID).
		WithMetadata("currentStatus", status)
}

func NewInvalidDecisionError(decision string) *StandardError {
	return New(ErrCodeInvalidDecision, "Decision must be approve or reject", fmt.Sprintf("decision: %s", decision))
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return Wrap(ErrCodeDatabaseConnectionFailed, "Database connection error", err)
}

func NewQueryExecutionFailedError(query string, err error) *StandardError {
	e := Wrap(ErrCodeQueryExecutionFailed, "Database query execution error", err)
	return e.WithMetadata("query", query)
}

func NewQueryTimeoutError(query string) *StandardError {
	return New(ErrCodeQueryTimeout, "Database query timeout", fmt.Sprintf("query: %s", query))
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return Wrap(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err)
}

func NewCacheOperationFailedError(op string, err error) *StandardError {
	return Wrap(ErrCodeCacheOperationFailed, fmt.Sprintf("Cache %s failed", op), err)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return Wrap(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return Wrap(ErrCodeSearchQueryFailed, "Elasticsearch query error", err).WithMetadata("index", index)
}

func NewSearchTimeoutError(index string) *StandardError {
	return New(ErrCodeSearchTimeout, "Elasticsearch query timeout", fmt.Sprintf("index: %s", index))
}

func NewIndexOperationFailedError(index string, err error) *StandardError {
	return Wrap(ErrCodeIndexOperationFailed, "Elasticsearch index operation failed", err).WithMetadata("index", index)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return Wrap(ErrCodeNotificationSendFailed, "Notification delivery failed", err).WithMetadata("channel", channel)
}

func NewInternalError(err error) *StandardError {
	e := Wrap(ErrCodeInternal, "Unexpected error", err)
	e.Retryable = false
	return e
}

// GetRetryCount is the number of job retries granted to an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeScorePersistFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeIndexOperationFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeSearchTimeout,
		ErrCodeCacheOperationFailed:
		return 2

	default:
		return 0
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// AsStandardError finds a StandardError in err's chain, or wraps err as
// a non-retryable internal error.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "BENEFICIARY") || strings.Contains(codeStr, "SCORE"):
		return "SCORING"
	case strings.Contains(codeStr, "APPLICATION") || strings.Contains(codeStr, "DECISION") || strings.Contains(codeStr, "LOAN"):
		return "LOAN"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
