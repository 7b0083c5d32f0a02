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

// AutosaveWorker consumes persist_answers_queue and UPSERTs answer
// snapshots to PostgreSQL. Each queue item is a full snapshot of one
// attempt's answers, so replaying an item is harmless.
type AutosaveWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "autosave_worker").Logger(),
	}
}

// AnswerSnapshotPayload is the queue item the attempt service enqueues on
// every debounced autosave flush.
type AnswerSnapshotPayload struct {
	AttemptID string            `json:"attempt_id"`
	Answers   map[string]string `json:"answers"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var payload AnswerSnapshotPayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persistSnapshot(ctx, &payload); err != nil {
		w.log.Error().Err(err).
			Str("attempt_id", payload.AttemptID).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *AutosaveWorker) persistSnapshot(ctx context.Context, p *AnswerSnapshotPayload) error {
	attemptID, err := uuid.Parse(p.AttemptID)
	if err != nil {
		return err
	}
	if len(p.Answers) == 0 {
		return nil
	}

	n := len(p.Answers)
	questionIDs := make([]uuid.UUID, 0, n)
	values := make([]string, 0, n)
	for qid, v := range p.Answers {
		questionID, err := uuid.Parse(qid)
		if err != nil {
			return err
		}
		questionIDs = append(questionIDs, questionID)
		values = append(values, v)
	}

	// Bulk UPSERT — creates or updates without locking. The attempt-status
	// guard drops snapshots that were still queued when the attempt's
	// final flush ran: applying them would roll graded answers back to an
	// older state.
	_, err = w.pool.Exec(ctx,
		`INSERT INTO answers (attempt_id, question_id, value)
		 SELECT $1, u.question_id, u.value
		 FROM UNNEST($2::uuid[], $3::text[]) AS u (question_id, value)
		 WHERE EXISTS (
			SELECT 1 FROM attempts a
			WHERE a.id = $1 AND a.status = 'in_progress'
		 )
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET value = EXCLUDED.value, updated_at = NOW()`,
		attemptID, questionIDs, values,
	)
	return err
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		var payload AnswerSnapshotPayload
		if err := json.Unmarshal([]byte(result), &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistSnapshot(ctx, &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
