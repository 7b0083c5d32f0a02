package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is one student answer keyed by (attempt, question). A later
// write for the same key replaces the value — never duplicates.
// Correctness is assigned exclusively by the scoring step.
type Answer struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Value      string    `json:"value"`
	Correct    *bool     `json:"correct,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}
