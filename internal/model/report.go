package model

import (
	"github.com/google/uuid"
)

// TopicBreakdown is the per-topic slice of a scored attempt.
type TopicBreakdown struct {
	AttemptID      uuid.UUID `json:"attempt_id"`
	TopicID        uuid.UUID `json:"topic_id"`
	TopicName      string    `json:"topic_name"`
	Total          int       `json:"total"`
	Correct        int       `json:"correct"`
	Percent        float64   `json:"percent"`
	Recommendation string    `json:"recommendation,omitempty"`
}

// AttemptReport is the full scoring/analysis output for one attempt:
// aggregate score, per-topic breakdowns and the narrative report.
type AttemptReport struct {
	AttemptID      uuid.UUID        `json:"attempt_id"`
	Score          float64          `json:"score"`
	CorrectCount   int              `json:"correct_count"`
	TotalQuestions int              `json:"total_questions"`
	Breakdown      []TopicBreakdown `json:"per_topic_breakdown"`
	Narrative      string           `json:"narrative_report"`
}
