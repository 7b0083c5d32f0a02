package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt lifecycle states. An attempt stays
// in_progress server-side until scoring succeeds.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusCompleted  AttemptStatus = "completed"
)

// Attempt represents one student's single run through an exam, from start
// to scored completion. Created at session start, mutated only when
// scoring completes.
type Attempt struct {
	ID             uuid.UUID     `json:"id"`
	ExamID         uuid.UUID     `json:"exam_id"`
	StudentName    string        `json:"student_name"`
	StudentEmail   *string       `json:"student_email,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	TotalQuestions int           `json:"total_questions"`
	CorrectCount   *int          `json:"correct_count,omitempty"`
	Score          *float64      `json:"score,omitempty"`
	Status         AttemptStatus `json:"status"`
	ElapsedSeconds *int          `json:"elapsed_seconds,omitempty"`
}

// StartAttemptRequest is the payload for starting an exam attempt.
// StudentName is required; a missing name is a validation error and no
// attempt row is created.
type StartAttemptRequest struct {
	StudentName  string `json:"student_name" binding:"required,min=1,max=120"`
	StudentEmail string `json:"student_email" binding:"omitempty,email"`
	AccessCode   string `json:"access_code" binding:"omitempty,min=4,max=20"`
}
