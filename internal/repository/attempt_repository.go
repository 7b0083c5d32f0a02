package repository

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/topiclens/topiclens-backend/internal/model"
	"github.com/topiclens/topiclens-backend/internal/response"
)

// AttemptRepository handles attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, exam_id, student_name, student_email, started_at, completed_at,
	total_questions, correct_count, score, status, elapsed_seconds`

func scanAttempt(row interface{ Scan(...any) error }) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(&a.ID, &a.ExamID, &a.StudentName, &a.StudentEmail, &a.StartedAt,
		&a.CompletedAt, &a.TotalQuestions, &a.CorrectCount, &a.Score, &a.Status, &a.ElapsedSeconds)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an attempt by ID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
}

// Create inserts a new attempt in in_progress status. Exactly one
// attempt row is created per session start.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (exam_id, student_name, student_email, total_questions, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, started_at`,
		a.ExamID, a.StudentName, a.StudentEmail, a.TotalQuestions, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.StartedAt)
}

// Complete marks an attempt completed with its scored aggregates.
// Recomputing overwrites prior scored state, so repeated scoring calls
// converge on the latest result.
func (r *AttemptRepository) Complete(ctx context.Context, id uuid.UUID, correctCount int, score float64, elapsedSeconds int) error {
	now := time.Now()
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, correct_count = $2, score = $3, completed_at = $4, elapsed_seconds = $5
		 WHERE id = $6`,
		model.AttemptStatusCompleted, correctCount, score, now, elapsedSeconds, id)
	return err
}

// ListByExam retrieves attempts for an exam, newest first, paginated.
func (r *AttemptRepository) ListByExam(ctx context.Context, examID uuid.UUID, page, perPage int) ([]model.Attempt, *response.Pagination, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE exam_id = $1`, examID,
	).Scan(&total); err != nil {
		return nil, nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE exam_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2 OFFSET $3`, examID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, nil, err
		}
		attempts = append(attempts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}
	return attempts, pagination, nil
}
