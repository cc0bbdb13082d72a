package recordscoreresult

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"credit-eligibility-workers/internal/common/database"
	"credit-eligibility-workers/internal/common/errors"
	"credit-eligibility-workers/internal/common/logger"
	"credit-eligibility-workers/internal/common/metrics"
	"credit-eligibility-workers/internal/common/observability"
	"credit-eligibility-workers/internal/scoring"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "record-score-result"
)

// ScoreIndexer stores score documents for the dashboard. Implemented by
// database.ElasticsearchClient.
type ScoreIndexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

type Handler struct {
	config       *Config
	db           *sql.DB
	indexer      ScoreIndexer
	obs          *observability.Observability
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

// NewHandler builds the handler. indexer may be nil, in which case scores
// are only written to Postgres.
func NewHandler(config *Config, db *sql.DB, indexer ScoreIndexer, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
		indexer:      indexer,
		obs:          obs,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
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
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()
	return h.execute(ctx, &input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := normalize(input); err != nil {
		return nil, err
	}

	logID := uuid.New().String()
	recordedAt := time.Now().UTC()

	breakdownJSON, err := json.Marshal(input.Breakdown)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("marshal breakdown: %w", err))
	}

	err = database.WithTx(ctx, h.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE beneficiaries
			SET model_score = $2, risk_band = $3, eligibility_label = $4, updated_at = $5
			WHERE id = $1`,
			input.BeneficiaryID,
			input.Score,
			input.RiskBand,
			input.EligibilityLabel,
			recordedAt,
		)
		if err != nil {
			return errors.Wrap(errors.ErrCodeScorePersistFailed, "Failed to update beneficiary score", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return errors.NewBeneficiaryNotFoundError(input.BeneficiaryID)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO credit_score_logs (
				id, beneficiary_id, score, risk_band, eligibility,
				breakdown, model_used, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			logID,
			input.BeneficiaryID,
			input.Score,
			input.RiskBand,
			input.EligibilityLabel,
			breakdownJSON,
			input.ModelUsed,
			recordedAt,
		)
		if err != nil {
			return errors.Wrap(errors.ErrCodeScorePersistFailed, "Failed to insert score log", err)
		}
		return nil
	})
	if err != nil {
		return nil, persistError(ctx, err)
	}

	output := &Output{
		ScoreLogID: logID,
		RecordedAt: recordedAt.Format(time.RFC3339),
	}
	output.Indexed = h.indexScore(ctx, logID, input, output.RecordedAt)

	h.logger.Info("score result recorded", map[string]interface{}{
		"beneficiaryId": input.BeneficiaryID,
		"scoreLogId":    logID,
		"score":         input.Score,
		"riskBand":      input.RiskBand,
		"indexed":       output.Indexed,
	})

	return output, nil
}

// normalize fills the band, label and model from the score and rejects a
// band or label that contradicts it.
func normalize(input *Input) error {
	if input.BeneficiaryID == "" {
		return errors.NewInvalidInputError("beneficiaryId is required")
	}
	if input.Score < scoring.MinScore || input.Score > scoring.MaxScore {
		return errors.NewInvalidInputError(fmt.Sprintf("score %d outside %d-%d", input.Score, scoring.MinScore, scoring.MaxScore))
	}

	band := scoring.BandFor(input.Score)
	label := scoring.LabelFor(band)
	if input.RiskBand == "" {
		input.RiskBand = string(band)
	} else if input.RiskBand != string(band) {
		return errors.NewInvalidInputError(fmt.Sprintf("risk band %s does not match score %d", input.RiskBand, input.Score))
	}
	if input.EligibilityLabel == "" {
		input.EligibilityLabel = string(label)
	} else if input.EligibilityLabel != string(label) {
		return errors.NewInvalidInputError(fmt.Sprintf("eligibility label %s does not match risk band %s", input.EligibilityLabel, input.RiskBand))
	}
	if input.ModelUsed == "" {
		input.ModelUsed = scoring.ModelName
	}
	return nil
}

func persistError(ctx context.Context, err error) error {
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewQueryTimeoutError("record score")
	}
	return errors.Wrap(errors.ErrCodeScorePersistFailed, "Failed to record score", err)
}

// indexScore keeps the latest score per beneficiary in the search index.
// It is best effort: the index can be rebuilt from credit_score_logs.
func (h *Handler) indexScore(ctx context.Context, logID string, input *Input, scoredAt string) bool {
	if h.indexer == nil {
		return false
	}
	doc := ScoreDocument{
		BeneficiaryID:    input.BeneficiaryID,
		Score:            input.Score,
		RiskBand:         input.RiskBand,
		EligibilityLabel: input.EligibilityLabel,
		Breakdown:        input.Breakdown,
		ModelUsed:        input.ModelUsed,
		ScoreLogID:       logID,
		ScoredAt:         scoredAt,
	}
	if err := h.indexer.IndexDocument(ctx, h.config.ScoreIndex, input.BeneficiaryID, doc); err != nil {
		stdErr := errors.NewIndexOperationFailedError(h.config.ScoreIndex, err)
		h.logger.Warn("score index write failed", map[string]interface{}{
			"scoreLogId": logID,
			"code":       stdErr.Code,
			"error":      stdErr.Error(),
		})
		return false
	}
	return true
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
