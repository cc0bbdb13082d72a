package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func collectNames(t *testing.T, reader *sdkmetric.ManualReader) map[string]bool {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	return names
}

func TestRecordJobAndScore(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	obs := NewWithReader("credit-test", reader)
	defer obs.Shutdown(context.Background())

	ctx := context.Background()
	obs.RecordJob(ctx, "calculate-credit-score", "completed", 15*time.Millisecond)
	obs.RecordScore(ctx, 828, "Very_Low_Risk")

	names := collectNames(t, reader)
	assert.True(t, names["jobs.processed"])
	assert.True(t, names["jobs.duration"])
	assert.True(t, names["credit.score"])
}

func TestStartSpan_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs := NewWithReader("credit-test", nil, recorder)
	defer obs.Shutdown(context.Background())

	_, span := obs.StartSpan(context.Background(), "record-score-result", 42)
	EndSpan(span, errors.New("BENEFICIARY_NOT_FOUND"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "record-score-result", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
}

func TestNilObservabilityIsSafe(t *testing.T) {
	var obs *Observability
	ctx, span := obs.StartSpan(context.Background(), "quick-estimate", 1)
	EndSpan(span, nil)
	obs.RecordJob(ctx, "quick-estimate", "completed", time.Millisecond)
	obs.RecordScore(ctx, 600, "High_Risk")
	assert.NoError(t, obs.Shutdown(ctx))
}
