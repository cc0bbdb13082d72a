package scoredistribution

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"credit-eligibility-workers/internal/common/errors"
	"credit-eligibility-workers/internal/common/logger"
	"credit-eligibility-workers/internal/common/metrics"
	"credit-eligibility-workers/internal/scoring"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "score-distribution"
)

// ScoreSearcher runs aggregation queries. Implemented by
// database.ElasticsearchClient.
type ScoreSearcher interface {
	Search(ctx context.Context, index string, query map[string]interface{}, dest interface{}) error
}

type Handler struct {
	config       *Config
	searcher     ScoreSearcher
	db           *sql.DB
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

// NewHandler builds the handler. The distribution is read from the search
// index; db is the fallback when the index is missing or unreachable.
func NewHandler(config *Config, searcher ScoreSearcher, db *sql.DB, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		searcher:     searcher,
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

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		stdErr := errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
		h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
		done(string(stdErr.Code))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		stdErr := errors.AsStandardError(err)
		h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
		done(string(stdErr.Code))
		return
	}

	h.completeJob(client, job, output)
	done("")
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	var since *time.Time
	if input.Since != "" {
		t, err := time.Parse(time.RFC3339, input.Since)
		if err != nil {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("since must be RFC 3339: %v", err))
		}
		since = &t
	}

	output, err := h.fromSearchIndex(ctx, since)
	if err != nil {
		if h.db == nil {
			return nil, err
		}
		h.logger.Warn("score index unavailable, reading distribution from postgres", map[string]interface{}{
			"index": h.config.ScoreIndex,
			"error": err,
		})
		output, err = h.fromDatabase(ctx, since)
		if err != nil {
			return nil, err
		}
	}

	output.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	h.logger.Info("score distribution built", map[string]interface{}{
		"total":        output.Total,
		"averageScore": output.AverageScore,
		"source":       output.Source,
	})
	return output, nil
}

func (h *Handler) fromSearchIndex(ctx context.Context, since *time.Time) (*Output, error) {
	if h.searcher == nil {
		return nil, errors.NewElasticsearchConnectionFailedError(stderrors.New("no search client configured"))
	}

	var resp searchResponse
	if err := h.searcher.Search(ctx, h.config.ScoreIndex, buildQuery(since), &resp); err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.NewSearchTimeoutError(h.config.ScoreIndex)
		}
		return nil, errors.NewSearchQueryFailedError(h.config.ScoreIndex, err)
	}

	output := &Output{
		Total:             resp.Hits.Total.Value,
		Buckets:           scoring.DistributionBuckets(),
		RiskBands:         emptyBandCounts(),
		EligibilityLabels: emptyLabelCounts(),
		Source:            SourceSearchIndex,
	}
	counts := make(map[string]int, len(resp.Aggregations.ScoreRanges.Buckets))
	for _, b := range resp.Aggregations.ScoreRanges.Buckets {
		counts[b.Key] = b.DocCount
	}
	for i := range output.Buckets {
		output.Buckets[i].Count = counts[output.Buckets[i].Range]
	}
	if avg := resp.Aggregations.AverageScore.Value; avg != nil {
		output.AverageScore = scoring.RoundTo2(*avg)
	}
	for _, b := range resp.Aggregations.RiskBands.Buckets {
		output.RiskBands[b.Key] = b.DocCount
	}
	for _, b := range resp.Aggregations.EligibilityLabels.Buckets {
		output.EligibilityLabels[b.Key] = b.DocCount
	}
	return output, nil
}

// buildQuery mirrors the histogram buckets as a range aggregation. Range
// "to" is exclusive, so the last bucket ends one past the maximum score.
func buildQuery(since *time.Time) map[string]interface{} {
	buckets := scoring.DistributionBuckets()
	ranges := make([]map[string]interface{}, len(buckets))
	for i, b := range buckets {
		to := b.To
		if i == len(buckets)-1 {
			to++
		}
		ranges[i] = map[string]interface{}{"key": b.Range, "from": b.From, "to": to}
	}

	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if since != nil {
		query = map[string]interface{}{
			"range": map[string]interface{}{
				"scoredAt": map[string]interface{}{"gte": since.Format(time.RFC3339)},
			},
		}
	}

	return map[string]interface{}{
		"size":             0,
		"track_total_hits": true,
		"query":            query,
		"aggs": map[string]interface{}{
			"score_ranges":       map[string]interface{}{"range": map[string]interface{}{"field": "score", "ranges": ranges}},
			"avg_score":          map[string]interface{}{"avg": map[string]interface{}{"field": "score"}},
			"risk_bands":         map[string]interface{}{"terms": map[string]interface{}{"field": "riskBand", "size": 10}},
			"eligibility_labels": map[string]interface{}{"terms": map[string]interface{}{"field": "eligibilityLabel", "size": 10}},
		},
	}
}

func (h *Handler) fromDatabase(ctx context.Context, since *time.Time) (*Output, error) {
	var sinceArg interface{}
	if since != nil {
		sinceArg = *since
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT model_score FROM beneficiaries
		WHERE model_score IS NOT NULL
		  AND ($1::timestamptz IS NULL OR updated_at >= $1)`, sinceArg)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.NewQueryTimeoutError("score distribution")
		}
		return nil, errors.NewQueryExecutionFailedError("score distribution", err)
	}
	defer rows.Close()

	var scores []int
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, errors.NewQueryExecutionFailedError("score distribution", err)
		}
		scores = append(scores, int(math.Round(score)))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("score distribution", err)
	}

	dist := scoring.ScoreDistribution(scores)
	output := &Output{
		Total:             dist.Total,
		AverageScore:      dist.AverageScore,
		Buckets:           dist.Buckets,
		RiskBands:         emptyBandCounts(),
		EligibilityLabels: emptyLabelCounts(),
		Source:            SourceDatabase,
	}
	for _, s := range scores {
		band := scoring.BandFor(s)
		output.RiskBands[string(band)]++
		output.EligibilityLabels[string(scoring.LabelFor(band))]++
	}
	return output, nil
}

func emptyBandCounts() map[string]int {
	return map[string]int{
		string(scoring.RiskVeryLow):  0,
		string(scoring.RiskLow):      0,
		string(scoring.RiskMedium):   0,
		string(scoring.RiskHigh):     0,
		string(scoring.RiskVeryHigh): 0,
	}
}

func emptyLabelCounts() map[string]int {
	return map[string]int{
		string(scoring.EligibleAuto):   0,
		string(scoring.EligibleManual): 0,
		string(scoring.NotEligible):    0,
	}
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
