package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"credit-eligibility-workers/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okCheck(context.Context) error { return nil }

func doGet(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, statusResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body statusResponse
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestRouter_Health(t *testing.T) {
	router := newRouter(nil, func() []string { return nil })

	rec, body := doGet(t, router, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body.Status)
}

func TestRouter_Ready(t *testing.T) {
	router := newRouter(map[string]func(context.Context) error{
		"postgres": okCheck,
		"redis":    okCheck,
	}, func() []string { return nil })

	rec, body := doGet(t, router, "/ready")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, body.Checks)
}

func TestRouter_NotReady(t *testing.T) {
	router := newRouter(map[string]func(context.Context) error{
		"postgres": okCheck,
		"zeebe":    func(context.Context) error { return errors.New("gateway unavailable") },
	}, func() []string { return nil })

	rec, body := doGet(t, router, "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, "gateway unavailable", body.Checks["zeebe"])
}

func TestRouter_Workers(t *testing.T) {
	router := newRouter(nil, func() []string {
		return []string{"record-score-result", "calculate-credit-score"}
	})

	rec, body := doGet(t, router, "/workers")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"calculate-credit-score", "record-score-result"}, body.Workers)
}

func TestRouter_Metrics(t *testing.T) {
	router := newRouter(nil, func() []string { return nil })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHandlerTimeout(t *testing.T) {
	cfg := &config.Config{Workers: map[string]config.WorkerConfig{
		"classify-case-type":  {Enabled: true, Timeout: 2000},
		"send-decision-email": {Enabled: true, Timeout: 60000},
	}}

	assert.Equal(t, 2*time.Second, handlerTimeout(cfg, "classify-case-type", 5*time.Second))
	assert.Equal(t, 5*time.Second, handlerTimeout(cfg, "send-decision-email", 5*time.Second))
	assert.Equal(t, 5*time.Second, handlerTimeout(cfg, "unlisted-task", 5*time.Second))
}
