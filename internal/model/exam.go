package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam represents a diagnostic exam built from a curriculum.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	OwnerID         int        `json:"owner_id"`
	CurriculumID    *uuid.UUID `json:"curriculum_id,omitempty"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	AccessCode      string     `json:"access_code,omitempty"`
	QuestionCount   int        `json:"question_count"`
	Status          ExamStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string     `json:"title" binding:"required,min=3,max=255"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=1,max=480"`
	CurriculumID    *uuid.UUID `json:"curriculum_id" binding:"omitempty"`
	AccessCode      string     `json:"access_code" binding:"omitempty,min=4,max=20"`
}

// UpdateExamRequest is the payload for updating an existing exam.
type UpdateExamRequest struct {
	Title           string `json:"title" binding:"omitempty,min=3,max=255"`
	DurationMinutes int    `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	AccessCode      string `json:"access_code" binding:"omitempty,min=4,max=20"`
}

// ExamPayload is the Redis-cached payload sent to students (no correct answers).
type ExamPayload struct {
	ExamID    uuid.UUID            `json:"exam_id"`
	Title     string               `json:"title"`
	Duration  int                  `json:"duration_minutes"`
	Questions []QuestionForStudent `json:"questions"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID      uuid.UUID    `json:"id"`
	TopicID uuid.UUID    `json:"topic_id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
	SeqNum  int          `json:"seq_num"`
}
