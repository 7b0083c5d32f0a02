package model

import (
	"github.com/google/uuid"
)

// Topic is a curriculum topic extracted by the analysis collaborator.
// Questions and result breakdowns both reference topics.
type Topic struct {
	ID           uuid.UUID `json:"id"`
	CurriculumID uuid.UUID `json:"curriculum_id"`
	Name         string    `json:"name"`
	Summary      string    `json:"summary,omitempty"`
}
