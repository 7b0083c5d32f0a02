package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/topiclens/topiclens-backend/internal/model"
)

// CurriculumRepository handles curriculum document data access.
type CurriculumRepository struct {
	pool *pgxpool.Pool
}

// NewCurriculumRepository creates a new CurriculumRepository.
func NewCurriculumRepository(pool *pgxpool.Pool) *CurriculumRepository {
	return &CurriculumRepository{pool: pool}
}

// Create inserts a new curriculum.
func (r *CurriculumRepository) Create(ctx context.Context, c *model.Curriculum) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO curricula (owner_id, title, file_path, text)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		c.OwnerID, c.Title, c.FilePath, c.Text,
	).Scan(&c.ID, &c.CreatedAt)
}

// GetByID retrieves a curriculum by ID.
func (r *CurriculumRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Curriculum, error) {
	c := &model.Curriculum{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, title, file_path, text, created_at
		 FROM curricula WHERE id = $1`, id,
	).Scan(&c.ID, &c.OwnerID, &c.Title, &c.FilePath, &c.Text, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListByOwner retrieves an owner's curricula, newest first. The text
// column is omitted to keep list payloads small.
func (r *CurriculumRepository) ListByOwner(ctx context.Context, ownerID int) ([]model.Curriculum, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, title, file_path, created_at
		 FROM curricula WHERE owner_id = $1
		 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var curricula []model.Curriculum
	for rows.Next() {
		var c model.Curriculum
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Title, &c.FilePath, &c.CreatedAt); err != nil {
			return nil, err
		}
		curricula = append(curricula, c)
	}
	return curricula, rows.Err()
}
