package session

import (
	"testing"

	"github.com/google/uuid"
)

func TestProgress(t *testing.T) {
	tests := []struct {
		count, index int
		want         float64
	}{
		{10, 0, 10},
		{10, 9, 100},
		{4, 1, 50},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := Progress(tt.count, tt.index); got != tt.want {
			t.Errorf("Progress(%d, %d) = %v, want %v", tt.count, tt.index, got, tt.want)
		}
	}
}

func TestClampIndexOutOfRangeIsNoop(t *testing.T) {
	if got := ClampIndex(10, 4, -1); got != 4 {
		t.Errorf("ClampIndex(10, 4, -1) = %d, want 4", got)
	}
	if got := ClampIndex(10, 4, 10); got != 4 {
		t.Errorf("ClampIndex(10, 4, 10) = %d, want 4", got)
	}
	if got := ClampIndex(10, 4, 7); got != 7 {
		t.Errorf("ClampIndex(10, 4, 7) = %d, want 7", got)
	}
}

func TestNextPrevStayInBounds(t *testing.T) {
	if got := NextIndex(3, 2); got != 2 {
		t.Errorf("NextIndex at last = %d, want 2", got)
	}
	if got := PrevIndex(3, 0); got != 0 {
		t.Errorf("PrevIndex at first = %d, want 0", got)
	}
	if got := NextIndex(3, 0); got != 1 {
		t.Errorf("NextIndex(3, 0) = %d, want 1", got)
	}
}

func TestStateOfPrecedence(t *testing.T) {
	q := uuid.New()
	answers := map[uuid.UUID]string{q: "A"}
	flagged := map[uuid.UUID]struct{}{q: {}}

	// Answered wins over flagged.
	if got := StateOf(q, answers, flagged); got != QuestionAnswered {
		t.Errorf("answered+flagged = %q, want %q", got, QuestionAnswered)
	}
	if got := StateOf(q, nil, flagged); got != QuestionFlagged {
		t.Errorf("flagged only = %q, want %q", got, QuestionFlagged)
	}
	if got := StateOf(q, nil, nil); got != QuestionUnanswered {
		t.Errorf("untouched = %q, want %q", got, QuestionUnanswered)
	}
}
