package session

import (
	"github.com/google/uuid"
)

// QuestionState is the per-question visual state derived for rendering.
// Precedence is answered > flagged > unanswered; precedence affects
// rendering only, never submission.
type QuestionState string

const (
	QuestionAnswered   QuestionState = "answered"
	QuestionFlagged    QuestionState = "flagged"
	QuestionUnanswered QuestionState = "unanswered"
)

// Progress returns how far through the question list the given index is,
// as a percentage.
func Progress(questionCount, currentIndex int) float64 {
	if questionCount <= 0 {
		return 0
	}
	return float64(currentIndex+1) / float64(questionCount) * 100
}

// ClampIndex bounds-checks a jump target. Out-of-range targets keep the
// current index: navigation is a pure UI aid and never errors.
func ClampIndex(questionCount, currentIndex, target int) int {
	if target < 0 || target >= questionCount {
		return currentIndex
	}
	return target
}

// NextIndex advances by one, staying in bounds.
func NextIndex(questionCount, currentIndex int) int {
	return ClampIndex(questionCount, currentIndex, currentIndex+1)
}

// PrevIndex steps back by one, staying in bounds.
func PrevIndex(questionCount, currentIndex int) int {
	return ClampIndex(questionCount, currentIndex, currentIndex-1)
}

// StateOf derives one question's visual state from the answer store and
// flagged set.
func StateOf(questionID uuid.UUID, answers map[uuid.UUID]string, flagged map[uuid.UUID]struct{}) QuestionState {
	if _, ok := answers[questionID]; ok {
		return QuestionAnswered
	}
	if _, ok := flagged[questionID]; ok {
		return QuestionFlagged
	}
	return QuestionUnanswered
}
