package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/topiclens/topiclens-backend/internal/model"
)

// ReportRepository persists scoring output: the narrative report and the
// per-topic breakdown rows. All writes are upserts so re-scoring an
// attempt overwrites prior analysis.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// SaveNarrative upserts an attempt's narrative report.
func (r *ReportRepository) SaveNarrative(ctx context.Context, attemptID uuid.UUID, narrative string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_reports (attempt_id, narrative)
		 VALUES ($1, $2)
		 ON CONFLICT (attempt_id) DO UPDATE
		 SET narrative = EXCLUDED.narrative, updated_at = NOW()`,
		attemptID, narrative)
	return err
}

// GetNarrative retrieves an attempt's narrative report, empty if scoring
// has not produced one yet.
func (r *ReportRepository) GetNarrative(ctx context.Context, attemptID uuid.UUID) (string, error) {
	var narrative string
	err := r.pool.QueryRow(ctx,
		`SELECT narrative FROM attempt_reports WHERE attempt_id = $1`, attemptID,
	).Scan(&narrative)
	if err != nil {
		return "", err
	}
	return narrative, nil
}

// UpsertBreakdowns writes an attempt's per-topic rows in one round trip
// using UNNEST arrays.
func (r *ReportRepository) UpsertBreakdowns(ctx context.Context, breakdowns []model.TopicBreakdown) error {
	if len(breakdowns) == 0 {
		return nil
	}

	n := len(breakdowns)
	attemptIDs := make([]uuid.UUID, 0, n)
	topicIDs := make([]uuid.UUID, 0, n)
	totals := make([]int, 0, n)
	corrects := make([]int, 0, n)
	percents := make([]float64, 0, n)
	recommendations := make([]string, 0, n)
	updatedAts := make([]time.Time, 0, n)

	now := time.Now()
	for _, b := range breakdowns {
		attemptIDs = append(attemptIDs, b.AttemptID)
		topicIDs = append(topicIDs, b.TopicID)
		totals = append(totals, b.Total)
		corrects = append(corrects, b.Correct)
		percents = append(percents, b.Percent)
		recommendations = append(recommendations, b.Recommendation)
		updatedAts = append(updatedAts, now)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO topic_breakdowns (attempt_id, topic_id, total, correct, percent, recommendation, updated_at)
		 SELECT u.attempt_id, u.topic_id, u.total, u.correct, u.percent, u.recommendation, u.updated_at
		 FROM UNNEST(
			$1::uuid[],
			$2::uuid[],
			$3::int[],
			$4::int[],
			$5::float8[],
			$6::text[],
			$7::timestamptz[]
		 ) AS u (attempt_id, topic_id, total, correct, percent, recommendation, updated_at)
		 ON CONFLICT (attempt_id, topic_id) DO UPDATE
		 SET total = EXCLUDED.total,
		     correct = EXCLUDED.correct,
		     percent = EXCLUDED.percent,
		     recommendation = EXCLUDED.recommendation,
		     updated_at = EXCLUDED.updated_at`,
		attemptIDs, topicIDs, totals, corrects, percents, recommendations, updatedAts)
	return err
}

// ListBreakdowns retrieves an attempt's per-topic rows joined with topic
// names.
func (r *ReportRepository) ListBreakdowns(ctx context.Context, attemptID uuid.UUID) ([]model.TopicBreakdown, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT b.attempt_id, b.topic_id, t.name, b.total, b.correct, b.percent, b.recommendation
		 FROM topic_breakdowns b
		 JOIN topics t ON t.id = b.topic_id
		 WHERE b.attempt_id = $1
		 ORDER BY t.name`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breakdowns []model.TopicBreakdown
	for rows.Next() {
		var b model.TopicBreakdown
		if err := rows.Scan(&b.AttemptID, &b.TopicID, &b.TopicName, &b.Total, &b.Correct, &b.Percent, &b.Recommendation); err != nil {
			return nil, err
		}
		breakdowns = append(breakdowns, b)
	}
	return breakdowns, rows.Err()
}
