package scoredistribution

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	apperrors "credit-eligibility-workers/internal/common/errors"
	"credit-eligibility-workers/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type mockSearcher struct {
	response  string
	err       error
	lastQuery map[string]interface{}
}

func (m *mockSearcher) Search(_ context.Context, _ string, query map[string]interface{}, dest interface{}) error {
	m.lastQuery = query
	if m.err != nil {
		return m.err
	}
	return json.Unmarshal([]byte(m.response), dest)
}

func createTestConfig() *Config {
	return &Config{Timeout: time.Second, ScoreIndex: "credit-scores"}
}

const aggregationResponse = `{
	"hits": {"total": {"value": 7}},
	"aggregations": {
		"score_ranges": {"buckets": [
			{"key": "300-400", "doc_count": 1},
			{"key": "400-500", "doc_count": 0},
			{"key": "500-600", "doc_count": 2},
			{"key": "600-700", "doc_count": 1},
			{"key": "700-800", "doc_count": 1},
			{"key": "800-900", "doc_count": 2}
		]},
		"avg_score": {"value": 628.428571},
		"risk_bands": {"buckets": [
			{"key": "Very_High_Risk", "doc_count": 4},
			{"key": "Very_Low_Risk", "doc_count": 2},
			{"key": "Medium_Risk", "doc_count": 1}
		]},
		"eligibility_labels": {"buckets": [
			{"key": "Not_Eligible", "doc_count": 4},
			{"key": "Eligible_Auto", "doc_count": 2},
			{"key": "Eligible_Manual", "doc_count": 1}
		]}
	}
}`

// ==========================
// Search Index Tests
// ==========================

func TestHandler_Execute_FromSearchIndex(t *testing.T) {
	searcher := &mockSearcher{response: aggregationResponse}
	handler := NewHandler(createTestConfig(), searcher, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.Equal(t, SourceSearchIndex, output.Source)
	assert.Equal(t, 7, output.Total)
	assert.Equal(t, 628.43, output.AverageScore)
	require.Len(t, output.Buckets, 6)
	assert.Equal(t, "300-400", output.Buckets[0].Range)
	assert.Equal(t, 2, output.Buckets[2].Count)
	assert.Equal(t, 2, output.Buckets[5].Count)
	assert.Equal(t, 4, output.RiskBands["Very_High_Risk"])
	assert.Equal(t, 0, output.RiskBands["Low_Risk"])
	assert.Equal(t, 1, output.EligibilityLabels["Eligible_Manual"])
	assert.NotEmpty(t, output.GeneratedAt)
}

func TestHandler_Execute_EmptyIndex(t *testing.T) {
	searcher := &mockSearcher{response: `{"hits":{"total":{"value":0}},"aggregations":{"avg_score":{"value":null}}}`}
	handler := NewHandler(createTestConfig(), searcher, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.Equal(t, 0, output.Total)
	assert.Equal(t, 0.0, output.AverageScore)
	for _, b := range output.Buckets {
		assert.Equal(t, 0, b.Count)
	}
}

func TestBuildQuery(t *testing.T) {
	query := buildQuery(nil)
	assert.Contains(t, query["query"], "match_all")

	aggs := query["aggs"].(map[string]interface{})
	ranges := aggs["score_ranges"].(map[string]interface{})["range"].(map[string]interface{})["ranges"].([]map[string]interface{})
	require.Len(t, ranges, 6)
	assert.Equal(t, 300, ranges[0]["from"])
	assert.Equal(t, 400, ranges[0]["to"])
	assert.Equal(t, 901, ranges[5]["to"])

	since := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	filtered := buildQuery(&since)
	assert.Contains(t, filtered["query"], "range")
}

// ==========================
// Fallback Tests
// ==========================

func TestHandler_Execute_FallsBackToDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT model_score FROM beneficiaries`).
		WithArgs(nil).
		WillReturnRows(sqlmock.NewRows([]string{"model_score"}).
			AddRow(350.0).AddRow(420.0).AddRow(560.0).AddRow(690.0).AddRow(720.0).AddRow(810.0).AddRow(900.0))

	searcher := &mockSearcher{err: errors.New("index_not_found_exception")}
	handler := NewHandler(createTestConfig(), searcher, db, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.Equal(t, SourceDatabase, output.Source)
	assert.Equal(t, 7, output.Total)
	assert.Equal(t, 635.71, output.AverageScore)
	assert.Equal(t, 2, output.Buckets[5].Count)
	assert.Equal(t, 2, output.RiskBands["Very_Low_Risk"])
	assert.Equal(t, 1, output.RiskBands["Medium_Risk"])
	assert.Equal(t, 1, output.RiskBands["High_Risk"])
	assert.Equal(t, 3, output.RiskBands["Very_High_Risk"])
	assert.Equal(t, 4, output.EligibilityLabels["Not_Eligible"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_FallbackWithSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT model_score FROM beneficiaries`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"model_score"}))

	handler := NewHandler(createTestConfig(), nil, db, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{Since: "2024-04-01T00:00:00Z"})

	require.NoError(t, err)
	assert.Equal(t, 0, output.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_NoBackend(t *testing.T) {
	searcher := &mockSearcher{err: errors.New("connection refused")}
	handler := NewHandler(createTestConfig(), searcher, nil, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{})

	stdErr := apperrors.AsStandardError(err)
	assert.Equal(t, apperrors.ErrCodeSearchQueryFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestHandler_Execute_DatabaseFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT model_score`).WillReturnError(errors.New("relation does not exist"))

	handler := NewHandler(createTestConfig(), nil, db, logger.NewTestLogger(t))
	_, err = handler.Execute(context.Background(), &Input{})

	stdErr := apperrors.AsStandardError(err)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, stdErr.Code)
}

func TestHandler_Execute_InvalidSince(t *testing.T) {
	handler := NewHandler(createTestConfig(), &mockSearcher{response: aggregationResponse}, nil, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{Since: "last tuesday"})

	stdErr := apperrors.AsStandardError(err)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
}

func TestHandler_Execute_NoSearchClientNoDatabase(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, nil, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{})

	stdErr := apperrors.AsStandardError(err)
	assert.Equal(t, apperrors.ErrCodeElasticsearchConnectionFailed, stdErr.Code)
}
