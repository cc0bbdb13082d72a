package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RetryabilityFollowsCode(t *testing.T) {
	assert.True(t, NewDatabaseInsertFailedError(fmt.Errorf("conn reset")).Retryable)
	assert.True(t, NewCacheOperationFailedError("get", fmt.Errorf("timeout")).Retryable)
	assert.False(t, NewBeneficiaryNotFoundError("ben-1").Retryable)
	assert.False(t, NewInvalidDecisionError("maybe").Retryable)
	assert.False(t, NewInternalError(fmt.Errorf("boom")).Retryable)
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := fmt.Errorf("pq: connection refused")
	err := NewDatabaseConnectionFailedError(cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, cause.Error(), err.Details)
	assert.Contains(t, err.Error(), "DATABASE_CONNECTION_FAILED")
}

func TestAsStandardError(t *testing.T) {
	notFound := NewApplicationNotFoundError("app-1")
	wrapped := fmt.Errorf("decide: %w", notFound)

	assert.Same(t, notFound, AsStandardError(wrapped))

	plain := AsStandardError(fmt.Errorf("unexpected"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.False(t, plain.Retryable)
}

func TestConvertToBPMNError(t *testing.T) {
	stdErr := NewApplicationNotPendingError("app-9", "APPROVED")
	bpmnErr := ConvertToBPMNError(stdErr)

	assert.Equal(t, "APPLICATION_NOT_PENDING", bpmnErr.Code)
	assert.Equal(t, 0, bpmnErr.Retries)

	vars := bpmnErr.ToErrorVariables()
	assert.Equal(t, "APPLICATION_NOT_PENDING", vars["errorCode"])
	assert.Equal(t, "app-9", vars["applicationId"])
	assert.Equal(t, "APPROVED", vars["currentStatus"])
	assert.Equal(t, "APPLICATION_NOT_PENDING", vars["originalErrorCode"])
}

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeDatabaseInsertFailed, 3},
		{ErrCodeSearchQueryFailed, 3},
		{ErrCodeNotificationSendFailed, 3},
		{ErrCodeQueryTimeout, 2},
		{ErrCodeCacheOperationFailed, 2},
		{ErrCodeDuplicateApplication, 0},
		{ErrCodeInvalidInput, 0},
		{ErrCodeInternal, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, GetRetryCount(tt.code), string(tt.code))
	}
}

func TestResolve(t *testing.T) {
	retryable := NewDatabaseInsertFailedError(fmt.Errorf("down"))

	action, retries := Resolve(retryable, 5)
	assert.Equal(t, ActionFail, action)
	assert.Equal(t, 3, retries)

	action, retries = Resolve(retryable, 2)
	assert.Equal(t, ActionFail, action)
	assert.Equal(t, 1, retries)

	action, _ = Resolve(retryable, 1)
	assert.Equal(t, ActionThrow, action)

	action, _ = Resolve(NewDuplicateApplicationError("ben-1"), 3)
	assert.Equal(t, ActionThrow, action)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "SCORING", GetErrorCategory(ErrCodeBeneficiaryNotFound))
	assert.Equal(t, "LOAN", GetErrorCategory(ErrCodeDuplicateApplication))
	assert.Equal(t, "LOAN", GetErrorCategory(ErrCodeInvalidDecision))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchQueryFailed))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryTimeout))
	assert.Equal(t, "CACHE", GetErrorCategory(ErrCodeCacheOperationFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidInput))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestWithMetadata(t *testing.T) {
	err := New(ErrCodeInvalidInput, "bad", "")
	require.Nil(t, err.Metadata)

	err.WithMetadata("field", "amount")
	assert.Equal(t, "amount", err.Metadata["field"])
	assert.Equal(t, "INVALID_INPUT: bad", err.Error())
}
