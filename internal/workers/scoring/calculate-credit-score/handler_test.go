package calculatecreditscore

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"credit-eligibility-workers/internal/common/logger"
	"credit-eligibility-workers/internal/scoring"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout:      time.Second,
		CacheEnabled: true,
		CacheTTL:     time.Hour,
	}
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func strongApplicant() scoring.Applicant {
	cibil := 800
	return scoring.Applicant{
		OnTimePaymentRatio12m:    0.95,
		CIBILScore:               &cibil,
		DebtToIncomeRatio:        0.1,
		NumberOfActiveLoans:      1,
		EstimatedMonthlyIncome:   70000,
		AverageBankBalance:       70000,
		UtilityBillsOnTimeRatio:  0.95,
		DigitalPaymentsFrequency: 20,
		TransactionsCount:        25,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_ReferenceApplicant(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		BeneficiaryID: "BEN100001",
		Applicant:     strongApplicant(),
	})

	require.NoError(t, err)
	assert.Equal(t, 828, output.Score)
	assert.Equal(t, string(scoring.RiskVeryLow), output.RiskBand)
	assert.Equal(t, string(scoring.EligibleAuto), output.EligibilityLabel)
	assert.Equal(t, scoring.ModelName, output.ModelUsed)
	assert.False(t, output.Cached)

	_, err = time.Parse(time.RFC3339, output.ScoredAt)
	assert.NoError(t, err)
}

func TestHandler_Execute_EmptyApplicant(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, output.Score, scoring.MinScore)
	assert.LessOrEqual(t, output.Score, scoring.MaxScore)
	assert.Equal(t, string(scoring.NotEligible), output.EligibilityLabel)
}

// ==========================
// Cache Tests
// ==========================

func TestHandler_Execute_CachesResult(t *testing.T) {
	mr, rdb := setupRedis(t)
	handler := NewHandler(createTestConfig(), rdb, nil, logger.NewTestLogger(t))
	input := &Input{BeneficiaryID: "BEN100002", Applicant: strongApplicant()}

	first, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.True(t, mr.Exists("credit:score:BEN100002"))
	assert.Equal(t, time.Hour, mr.TTL("credit:score:BEN100002"))

	second, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.ScoredAt, second.ScoredAt)
}

func TestHandler_Execute_ChangedApplicantRecomputes(t *testing.T) {
	_, rdb := setupRedis(t)
	handler := NewHandler(createTestConfig(), rdb, nil, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{BeneficiaryID: "BEN100003", Applicant: strongApplicant()})
	require.NoError(t, err)

	changed := strongApplicant()
	changed.FraudFlag = true
	output, err := handler.Execute(context.Background(), &Input{BeneficiaryID: "BEN100003", Applicant: changed})

	require.NoError(t, err)
	assert.False(t, output.Cached)
	assert.Equal(t, 0, output.Breakdown.Flags)
	assert.Less(t, output.Score, 828)
}

func TestHandler_Execute_UnencodableApplicantSkipsCache(t *testing.T) {
	mr, rdb := setupRedis(t)
	handler := NewHandler(createTestConfig(), rdb, nil, logger.NewTestLogger(t))

	first := strongApplicant()
	first.DebtToIncomeRatio = math.NaN()
	_, err := handler.Execute(context.Background(), &Input{BeneficiaryID: "BEN100009", Applicant: first})
	require.NoError(t, err)
	assert.False(t, mr.Exists("credit:score:BEN100009"))

	second := strongApplicant()
	second.DebtToIncomeRatio = math.NaN()
	second.FraudFlag = true
	output, err := handler.Execute(context.Background(), &Input{BeneficiaryID: "BEN100009", Applicant: second})
	require.NoError(t, err)
	assert.False(t, output.Cached)
	assert.Equal(t, 0, output.Breakdown.Flags)
}

func TestApplicantFingerprint(t *testing.T) {
	assert.Equal(t, applicantFingerprint(strongApplicant()), applicantFingerprint(strongApplicant()))
	assert.Len(t, applicantFingerprint(strongApplicant()), 64)

	bad := strongApplicant()
	bad.AverageBankBalance = math.Inf(1)
	assert.Empty(t, applicantFingerprint(bad))
}

func TestHandler_Execute_ForceRecompute(t *testing.T) {
	_, rdb := setupRedis(t)
	handler := NewHandler(createTestConfig(), rdb, nil, logger.NewTestLogger(t))
	input := &Input{BeneficiaryID: "BEN100004", Applicant: strongApplicant()}

	_, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	input.ForceRecompute = true
	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, output.Cached)
}

func TestHandler_Execute_CacheDisabled(t *testing.T) {
	mr, rdb := setupRedis(t)
	config := createTestConfig()
	config.CacheEnabled = false
	handler := NewHandler(config, rdb, nil, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{BeneficiaryID: "BEN100005", Applicant: strongApplicant()})
	require.NoError(t, err)
	assert.False(t, mr.Exists("credit:score:BEN100005"))
}

func TestHandler_Execute_CacheUnavailable(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet("credit:score:BEN100006").SetErr(errors.New("connection refused"))

	handler := NewHandler(createTestConfig(), rdb, nil, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{BeneficiaryID: "BEN100006", Applicant: strongApplicant()})

	require.NoError(t, err)
	assert.Equal(t, 828, output.Score)
	assert.False(t, output.Cached)
}

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput_TopLevel(t *testing.T) {
	input, err := ParseInput(`{
		"beneficiaryId": "BEN100007",
		"on_time_payment_ratio_12m": "0.95",
		"cibilScore": 800,
		"numberOfActiveLoans": "1",
		"fraudFlag": "no"
	}`)

	require.NoError(t, err)
	assert.Equal(t, "BEN100007", input.BeneficiaryID)
	assert.Equal(t, 0.95, input.Applicant.OnTimePaymentRatio12m)
	require.NotNil(t, input.Applicant.CIBILScore)
	assert.Equal(t, 800, *input.Applicant.CIBILScore)
	assert.Equal(t, 1, input.Applicant.NumberOfActiveLoans)
	assert.False(t, input.Applicant.FraudFlag)
}

func TestParseInput_NestedApplicant(t *testing.T) {
	input, err := ParseInput(`{
		"beneficiaryId": "BEN100008",
		"forceRecompute": true,
		"applicant": {"estimatedMonthlyIncome": "45,000", "defaultFlag": true}
	}`)

	require.NoError(t, err)
	assert.True(t, input.ForceRecompute)
	assert.Equal(t, 45000.0, input.Applicant.EstimatedMonthlyIncome)
	assert.True(t, input.Applicant.DefaultFlag)
}

func TestParseInput_Invalid(t *testing.T) {
	_, err := ParseInput(`not json`)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_INPUT")
}
