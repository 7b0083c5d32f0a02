package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/topiclens/topiclens-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves all questions for an exam, ordered by their fixed
// sequence index.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, topic_id, text, type, options, correct_answer, seq_num
		 FROM questions WHERE exam_id = $1
		 ORDER BY seq_num`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.TopicID, &q.Text, &q.Type, &q.Options, &q.CorrectAnswer, &q.SeqNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (exam_id, topic_id, text, type, options, correct_answer, seq_num)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		q.ExamID, q.TopicID, q.Text, q.Type, q.Options, q.CorrectAnswer, q.SeqNum,
	).Scan(&q.ID)
}

// ReplaceForExam atomically swaps an exam's question list.
func (r *QuestionRepository) ReplaceForExam(ctx context.Context, examID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_id = $1`, examID); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}

	for i := range questions {
		q := &questions[i]
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (exam_id, topic_id, text, type, options, correct_answer, seq_num)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			examID, q.TopicID, q.Text, q.Type, q.Options, q.CorrectAnswer, q.SeqNum,
		).Scan(&q.ID); err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}

// AnswerKey returns the question -> correct answer map for an exam.
// FREE_TEXT questions have no key entry; the analysis collaborator
// grades those.
func (r *QuestionRepository) AnswerKey(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, correct_answer FROM questions
		 WHERE exam_id = $1 AND correct_answer <> ''`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	key := make(map[uuid.UUID]string)
	for rows.Next() {
		var id uuid.UUID
		var answer string
		if err := rows.Scan(&id, &answer); err != nil {
			return nil, err
		}
		key[id] = answer
	}
	return key, rows.Err()
}
