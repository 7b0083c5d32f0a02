package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/topiclens/topiclens-backend/internal/model"
)

// TopicRepository handles curriculum topic data access.
type TopicRepository struct {
	pool *pgxpool.Pool
}

// NewTopicRepository creates a new TopicRepository.
func NewTopicRepository(pool *pgxpool.Pool) *TopicRepository {
	return &TopicRepository{pool: pool}
}

// ListByCurriculum retrieves all topics for a curriculum.
func (r *TopicRepository) ListByCurriculum(ctx context.Context, curriculumID uuid.UUID) ([]model.Topic, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, curriculum_id, name, summary
		 FROM topics WHERE curriculum_id = $1
		 ORDER BY name`, curriculumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []model.Topic
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.ID, &t.CurriculumID, &t.Name, &t.Summary); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// NamesByIDs resolves topic IDs to names in one query.
func (r *TopicRepository) NamesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]string{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, name FROM topics WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[uuid.UUID]string, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

// ReplaceForCurriculum atomically swaps a curriculum's topic list.
func (r *TopicRepository) ReplaceForCurriculum(ctx context.Context, curriculumID uuid.UUID, topics []model.Topic) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM topics WHERE curriculum_id = $1`, curriculumID); err != nil {
		return fmt.Errorf("delete topics: %w", err)
	}

	for i := range topics {
		t := &topics[i]
		if err := tx.QueryRow(ctx,
			`INSERT INTO topics (curriculum_id, name, summary)
			 VALUES ($1, $2, $3)
			 RETURNING id`,
			curriculumID, t.Name, t.Summary,
		).Scan(&t.ID); err != nil {
			return fmt.Errorf("insert topic %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}
