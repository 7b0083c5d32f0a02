package model

import (
	"github.com/google/uuid"
)

// QuestionType enumerates the supported question shapes.
type QuestionType string

const (
	QuestionTypeSingleSelect QuestionType = "SINGLE_SELECT"
	QuestionTypeTrueFalse    QuestionType = "TRUE_FALSE"
	QuestionTypeFreeText     QuestionType = "FREE_TEXT"
)

// HasOptions reports whether the question type carries a fixed option list.
func (t QuestionType) HasOptions() bool {
	return t == QuestionTypeSingleSelect || t == QuestionTypeTrueFalse
}

// Question represents a single exam question. Immutable once loaded into
// a session.
type Question struct {
	ID      uuid.UUID    `json:"id"`
	ExamID  uuid.UUID    `json:"exam_id"`
	TopicID uuid.UUID    `json:"topic_id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	// Options is empty for FREE_TEXT questions.
	Options []string `json:"options,omitempty"`
	// CorrectAnswer is empty for FREE_TEXT questions, which are graded
	// by the analysis collaborator.
	CorrectAnswer string `json:"correct_answer,omitempty"`
	SeqNum        int    `json:"seq_num"`
}

// AddQuestionRequest is the payload for adding a question to an exam.
type AddQuestionRequest struct {
	TopicID       uuid.UUID `json:"topic_id" binding:"required"`
	Text          string    `json:"text" binding:"required,min=1,max=2000"`
	Type          string    `json:"type" binding:"required,oneof=SINGLE_SELECT TRUE_FALSE FREE_TEXT"`
	Options       []string  `json:"options" binding:"omitempty,max=10,dive,min=1"`
	CorrectAnswer string    `json:"correct_answer" binding:"omitempty,max=500"`
	SeqNum        int       `json:"seq_num" binding:"min=0"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing an exam's questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"dive"`
}
