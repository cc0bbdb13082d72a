package calculatecreditscore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"time"

	"credit-eligibility-workers/internal/common/database"
	"credit-eligibility-workers/internal/common/errors"
	"credit-eligibility-workers/internal/common/logger"
	"credit-eligibility-workers/internal/common/metrics"
	"credit-eligibility-workers/internal/common/observability"
	"credit-eligibility-workers/internal/scoring"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "calculate-credit-score"

	cacheKeyPrefix = "credit:score:"
)

type Handler struct {
	config       *Config
	redis        redis.Cmdable
	obs          *observability.Observability
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	now          func() time.Time
}

// NewHandler builds the handler. rdb may be nil, which disables caching.
func NewHandler(config *Config, rdb redis.Cmdable, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		redis:        rdb,
		obs:          obs,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	done := metrics.TrackJob(TaskType)
	ctx, span := h.obs.StartSpan(context.Background(), TaskType, job.Key)

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	output, err := h.process(ctx, job)
	observability.EndSpan(span, err)
	if err != nil {
		stdErr := errors.AsStandardError(err)
		h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
		done(string(stdErr.Code))
		h.obs.RecordJob(ctx, TaskType, "failed", time.Since(start))
		return
	}

	h.completeJob(client, job, output)
	done("")
	h.obs.RecordJob(ctx, TaskType, "completed", time.Since(start))
}

func (h *Handler) process(ctx context.Context, job entities.Job) (*Output, error) {
	input, err := ParseInput(job.Variables)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	fingerprint := applicantFingerprint(input.Applicant)

	if cached := h.lookupCache(ctx, input, fingerprint); cached != nil {
		return cached, nil
	}

	result := scoring.Compute(input.Applicant)
	output := &Output{
		BeneficiaryID:    input.BeneficiaryID,
		Score:            result.Score,
		RiskBand:         string(result.RiskBand),
		EligibilityLabel: string(result.EligibilityLabel),
		Breakdown:        result.Breakdown,
		ModelUsed:        scoring.ModelName,
		ScoredAt:         h.now().Format(time.RFC3339),
	}

	metrics.CreditScores.Observe(float64(result.Score))
	metrics.CreditScoresByBand.WithLabelValues(output.RiskBand, output.EligibilityLabel).Inc()
	h.obs.RecordScore(ctx, result.Score, output.RiskBand)

	h.storeCache(ctx, input, fingerprint, output)

	h.logger.Info("credit score calculated", map[string]interface{}{
		"beneficiaryId":    input.BeneficiaryID,
		"score":            output.Score,
		"riskBand":         output.RiskBand,
		"eligibilityLabel": output.EligibilityLabel,
		"breakdown":        output.Breakdown,
	})

	return output, nil
}

func (h *Handler) cacheUsable(input *Input) bool {
	return h.config.CacheEnabled && h.redis != nil && input.BeneficiaryID != ""
}

// lookupCache returns the cached output when it was computed from the same
// applicant data. Cache failures only cost a recomputation.
func (h *Handler) lookupCache(ctx context.Context, input *Input, fingerprint string) *Output {
	if !h.cacheUsable(input) || fingerprint == "" || input.ForceRecompute {
		return nil
	}

	var entry cacheEntry
	err := database.GetJSON(ctx, h.redis, cacheKeyPrefix+input.BeneficiaryID, &entry)
	switch {
	case stderrors.Is(err, database.ErrCacheMiss):
		metrics.ScoreCacheLookups.WithLabelValues("miss").Inc()
		return nil
	case err != nil:
		metrics.ScoreCacheLookups.WithLabelValues("error").Inc()
		h.logger.Warn("score cache read failed", map[string]interface{}{
			"beneficiaryId": input.BeneficiaryID,
			"error":         err,
		})
		return nil
	case entry.Fingerprint != fingerprint:
		metrics.ScoreCacheLookups.WithLabelValues("stale").Inc()
		return nil
	}

	metrics.ScoreCacheLookups.WithLabelValues("hit").Inc()
	out := entry.Output
	out.Cached = true
	return &out
}

func (h *Handler) storeCache(ctx context.Context, input *Input, fingerprint string, output *Output) {
	if !h.cacheUsable(input) || fingerprint == "" {
		return
	}
	entry := cacheEntry{Fingerprint: fingerprint, Output: *output}
	if err := database.SetJSON(ctx, h.redis, cacheKeyPrefix+input.BeneficiaryID, entry, h.config.CacheTTL); err != nil {
		h.logger.Warn("score cache write failed", map[string]interface{}{
			"beneficiaryId": input.BeneficiaryID,
			"error":         err,
		})
	}
}

// applicantFingerprint is empty when the applicant cannot be encoded, which
// keeps such results out of the cache.
func applicantFingerprint(a scoring.Applicant) string {
	raw, err := json.Marshal(a)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
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
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
