package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/topiclens/topiclens-backend/internal/config"
)

const (
	ReportBatchSize    = 50
	ReportBatchTimeout = 2 * time.Second
	ReportPollTimeout  = 1 * time.Second
)

// ReportWorker consumes persist_reports_queue and bulk-writes per-topic
// breakdown rows produced by scoring. Writes are upserts keyed by
// (attempt_id, topic_id), so at-least-once delivery is safe.
type ReportWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewReportWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ReportWorker {
	return &ReportWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "report_worker").Logger(),
	}
}

// BreakdownPayload is one per-topic row enqueued by the scoring service.
type BreakdownPayload struct {
	AttemptID      string  `json:"attempt_id"`
	TopicID        string  `json:"topic_id"`
	Total          int     `json:"total"`
	Correct        int     `json:"correct"`
	Percent        float64 `json:"percent"`
	Recommendation string  `json:"recommendation"`
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ReportWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ReportWorker started")

	batch := make([]*BreakdownPayload, 0, ReportBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ReportBatchSize || time.Since(lastFlush) >= ReportBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ReportPollTimeout, config.WorkerKey.PersistReportsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p BreakdownPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// ----------------------------------------------------------------
// Batch upsert wrapper with per-item fallback
// ----------------------------------------------------------------

func (w *ReportWorker) flushSafe(ctx context.Context, batch []*BreakdownPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpsertBreakdowns(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk breakdown upsert failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistReportsQueue, raw)
			}
		}
		return
	}

	// After successful persistence → drop the autosave buffers for the
	// attempts in this batch; the flushed answers are the final record.
	w.bulkClearAutosavedAnswers(ctx, batch)
}

// ----------------------------------------------------------------
// BULK PostgreSQL upsert using UNNEST + alias
// ----------------------------------------------------------------

func (w *ReportWorker) bulkUpsertBreakdowns(ctx context.Context, batch []*BreakdownPayload) error {
	n := len(batch)

	attemptIDs := make([]uuid.UUID, 0, n)
	topicIDs := make([]uuid.UUID, 0, n)
	totals := make([]int, 0, n)
	corrects := make([]int, 0, n)
	percents := make([]float64, 0, n)
	recommendations := make([]string, 0, n)

	for _, p := range batch {
		aID, err := uuid.Parse(p.AttemptID)
		if err != nil {
			return err
		}
		tID, err := uuid.Parse(p.TopicID)
		if err != nil {
			return err
		}
		attemptIDs = append(attemptIDs, aID)
		topicIDs = append(topicIDs, tID)
		totals = append(totals, p.Total)
		corrects = append(corrects, p.Correct)
		percents = append(percents, p.Percent)
		recommendations = append(recommendations, p.Recommendation)
	}

	query := `
		INSERT INTO topic_breakdowns (attempt_id, topic_id, total, correct, percent, recommendation)
		SELECT
			u.attempt_id,
			u.topic_id,
			u.total,
			u.correct,
			u.percent,
			u.recommendation
		FROM UNNEST(
			$1::uuid[],
			$2::uuid[],
			$3::int[],
			$4::int[],
			$5::float8[],
			$6::text[]
		) AS u (attempt_id, topic_id, total, correct, percent, recommendation)
		ON CONFLICT (attempt_id, topic_id) DO UPDATE
		SET total = EXCLUDED.total,
		    correct = EXCLUDED.correct,
		    percent = EXCLUDED.percent,
		    recommendation = EXCLUDED.recommendation,
		    updated_at = NOW()
	`

	_, err := w.pool.Exec(ctx, query, attemptIDs, topicIDs, totals, corrects, percents, recommendations)
	return err
}

// ----------------------------------------------------------------
// BULK Redis DEL for clearing autosaved answers
// ----------------------------------------------------------------

func (w *ReportWorker) bulkClearAutosavedAnswers(ctx context.Context, batch []*BreakdownPayload) {
	pipe := w.rdb.Pipeline()

	seen := make(map[string]struct{}, len(batch))
	for _, p := range batch {
		if _, ok := seen[p.AttemptID]; ok {
			continue
		}
		seen[p.AttemptID] = struct{}{}
		pipe.Del(ctx, config.CacheKey.AttemptAnswersKey(p.AttemptID))
	}

	_, _ = pipe.Exec(ctx)
}

// ----------------------------------------------------------------
// FALLBACK single upsert
// ----------------------------------------------------------------

func (w *ReportWorker) persistSingle(ctx context.Context, p *BreakdownPayload) error {
	aID, err := uuid.Parse(p.AttemptID)
	if err != nil {
		return err
	}
	tID, err := uuid.Parse(p.TopicID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`INSERT INTO topic_breakdowns (attempt_id, topic_id, total, correct, percent, recommendation)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (attempt_id, topic_id) DO UPDATE
		 SET total = EXCLUDED.total,
		     correct = EXCLUDED.correct,
		     percent = EXCLUDED.percent,
		     recommendation = EXCLUDED.recommendation,
		     updated_at = NOW()`,
		aID, tID, p.Total, p.Correct, p.Percent, p.Recommendation,
	)

	return err
}
