package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/topiclens/topiclens-backend/internal/model"
)

// AnswerRepository handles answer data access. All writes are upserts
// keyed by (attempt_id, question_id): a later write replaces the value,
// never duplicates.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert writes a single answer.
func (r *AnswerRepository) Upsert(ctx context.Context, attemptID, questionID uuid.UUID, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO answers (attempt_id, question_id, value)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET value = EXCLUDED.value, updated_at = NOW()`,
		attemptID, questionID, value)
	return err
}

// UpsertBatch writes a snapshot of answers in one round trip using
// UNNEST arrays.
func (r *AnswerRepository) UpsertBatch(ctx context.Context, attemptID uuid.UUID, answers map[uuid.UUID]string) error {
	if len(answers) == 0 {
		return nil
	}

	questionIDs := make([]uuid.UUID, 0, len(answers))
	values := make([]string, 0, len(answers))
	for qid, v := range answers {
		questionIDs = append(questionIDs, qid)
		values = append(values, v)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO answers (attempt_id, question_id, value)
		 SELECT $1, u.question_id, u.value
		 FROM UNNEST($2::uuid[], $3::text[]) AS u (question_id, value)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET value = EXCLUDED.value, updated_at = NOW()`,
		attemptID, questionIDs, values)
	return err
}

// ListByAttempt retrieves all answers for an attempt.
func (r *AnswerRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, question_id, value, correct, updated_at
		 FROM answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.AttemptID, &a.QuestionID, &a.Value, &a.Correct, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// SetCorrectness writes the scored correctness flags for an attempt in
// one round trip. Only the scoring step calls this.
func (r *AnswerRepository) SetCorrectness(ctx context.Context, attemptID uuid.UUID, correctness map[uuid.UUID]bool) error {
	if len(correctness) == 0 {
		return nil
	}

	questionIDs := make([]uuid.UUID, 0, len(correctness))
	flags := make([]bool, 0, len(correctness))
	for qid, ok := range correctness {
		questionIDs = append(questionIDs, qid)
		flags = append(flags, ok)
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE answers AS a
		 SET correct = t.correct
		 FROM (
			SELECT u.question_id, u.correct
			FROM UNNEST($2::uuid[], $3::bool[]) AS u (question_id, correct)
		 ) AS t
		 WHERE a.attempt_id = $1 AND a.question_id = t.question_id`,
		attemptID, questionIDs, flags)
	return err
}
