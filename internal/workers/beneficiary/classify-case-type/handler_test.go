package classifycasetype

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	apperrors "credit-eligibility-workers/internal/common/errors"
	"credit-eligibility-workers/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{Timeout: time.Second}
}

func TestHandler_Execute_Classification(t *testing.T) {
	tests := []struct {
		name       string
		loans      int
		delays     int
		caseType   string
		category   string
		classified bool
	}{
		{name: "new to credit", loans: 0, delays: 0, caseType: "CASE1", category: "Case 1", classified: true},
		{name: "delays without loans", loans: 0, delays: 2, caseType: "CASE4", category: "Case 4", classified: true},
		{name: "few loans", loans: 2, delays: 1, caseType: "CASE2", category: "Case 2", classified: true},
		{name: "many loans", loans: 5, delays: 4, caseType: "CASE3", category: "Case 3", classified: true},
		{name: "few loans many delays", loans: 3, delays: 3, caseType: "", category: CategoryUncategorized, classified: false},
	}

	handler := NewHandler(createTestConfig(), nil, logger.NewTestLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := handler.Execute(context.Background(), &Input{NumberOfLoans: tt.loans, EmiDueDelays: tt.delays})

			require.NoError(t, err)
			assert.Equal(t, tt.caseType, output.CaseType)
			assert.Equal(t, tt.category, output.Category)
			assert.Equal(t, tt.classified, output.Classified)
			if tt.classified {
				assert.NotEmpty(t, output.DetailFields)
			} else {
				assert.Empty(t, output.DetailFields)
				assert.NotNil(t, output.DetailFields)
			}
		})
	}
}

func TestHandler_Execute_NegativeCounts(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{NumberOfLoans: -1})

	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.AsStandardError(err).Code)
}

func TestHandler_Execute_StoresCaseType(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE beneficiaries SET case_type`).
		WithArgs("BEN100001", sql.NullString{String: "CASE2", Valid: true}, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{BeneficiaryID: "BEN100001", NumberOfLoans: 1})

	require.NoError(t, err)
	assert.Equal(t, "CASE2", output.CaseType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_BeneficiaryNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE beneficiaries SET case_type`).WillReturnResult(sqlmock.NewResult(0, 0))

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))
	_, err = handler.Execute(context.Background(), &Input{BeneficiaryID: "BEN404"})

	assert.Equal(t, apperrors.ErrCodeBeneficiaryNotFound, apperrors.AsStandardError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_UpdateFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE beneficiaries SET case_type`).WillReturnError(errors.New("connection reset"))

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))
	_, err = handler.Execute(context.Background(), &Input{BeneficiaryID: "BEN100001"})

	stdErr := apperrors.AsStandardError(err)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}
