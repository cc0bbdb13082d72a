package estimateincome

import (
	"context"
	"database/sql"
	"testing"
	"time"

	apperrors "credit-eligibility-workers/internal/common/errors"
	"credit-eligibility-workers/internal/common/logger"
	"credit-eligibility-workers/internal/scoring"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{Timeout: time.Second}
}

// ==========================
// Estimation Tests
// ==========================

func TestHandler_Execute_FromBills(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Bills: scoring.Bills{Electricity: 1500, Mobile: 400},
	})

	require.NoError(t, err)
	assert.Equal(t, 10000.0, output.EstimatedMonthlyIncome)
	assert.Equal(t, "low", output.IncomeCategory)
	assert.Equal(t, 65, output.UtilityBand.Points)
	assert.False(t, output.ScoreReset)
}

func TestHandler_Execute_DeclaredIncomeWins(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Bills:                 scoring.Bills{Electricity: 300, Mobile: 100},
		DeclaredMonthlyIncome: 45000,
	})

	require.NoError(t, err)
	assert.Equal(t, 45000.0, output.EstimatedMonthlyIncome)
	assert.Equal(t, "medium", output.IncomeCategory)
}

func TestHandler_Execute_NothingKnown(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.Equal(t, 0.0, output.EstimatedMonthlyIncome)
	assert.Empty(t, output.IncomeCategory)
}

func TestHandler_Execute_NegativeBill(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, nil, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{Bills: scoring.Bills{Gas: -10}})

	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.AsStandardError(err).Code)
}

// ==========================
// Persistence Tests
// ==========================

func TestHandler_Execute_StoresEstimateAndResetsScore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	require.NoError(t, mr.Set("credit:score:BEN100001", `{"fingerprint":"x"}`))
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	mock.ExpectExec(`UPDATE beneficiaries`).
		WithArgs(
			"BEN100001",
			sql.NullFloat64{Float64: 16000, Valid: true},
			sql.NullString{String: "low", Valid: true},
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{
		BeneficiaryID: "BEN100001",
		Bills:         scoring.Bills{Electricity: 3000, Mobile: 1000},
	})

	require.NoError(t, err)
	assert.True(t, output.ScoreReset)
	assert.False(t, mr.Exists("credit:score:BEN100001"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_EstimateBeneficiaryNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE beneficiaries`).WillReturnResult(sqlmock.NewResult(0, 0))

	handler := NewHandler(createTestConfig(), db, nil, logger.NewTestLogger(t))
	_, err = handler.Execute(context.Background(), &Input{BeneficiaryID: "BEN404"})

	assert.Equal(t, apperrors.ErrCodeBeneficiaryNotFound, apperrors.AsStandardError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput_NestedBills(t *testing.T) {
	input, err := ParseInput(`{
		"beneficiaryId": "BEN100002",
		"declaredMonthlyIncome": "25,000",
		"bills": {"electricityBill": "1,200", "mobileBill": 300, "gasBill": null}
	}`)

	require.NoError(t, err)
	assert.Equal(t, "BEN100002", input.BeneficiaryID)
	assert.Equal(t, 25000.0, input.DeclaredMonthlyIncome)
	assert.Equal(t, 1200.0, input.Bills.Electricity)
	assert.Equal(t, 300.0, input.Bills.Mobile)
	assert.Equal(t, 0.0, input.Bills.Gas)
}

func TestParseInput_TopLevelBills(t *testing.T) {
	input, err := ParseInput(`{"electricityBill": 800, "gasBill": "150"}`)

	require.NoError(t, err)
	assert.Equal(t, 800.0, input.Bills.Electricity)
	assert.Equal(t, 150.0, input.Bills.Gas)
}

func TestParseInput_BadAmount(t *testing.T) {
	_, err := ParseInput(`{"mobileBill": "lots"}`)

	stdErr := apperrors.AsStandardError(err)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
	assert.Contains(t, stdErr.Details, "mobileBill")
}
