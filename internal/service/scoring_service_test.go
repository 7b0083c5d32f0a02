package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/topiclens/topiclens-backend/internal/model"
)

func TestGradeOneTrueFalseIsCaseInsensitive(t *testing.T) {
	s := &ScoringService{}
	q := &model.Question{Type: model.QuestionTypeTrueFalse, CorrectAnswer: "true"}

	for _, v := range []string{"true", "True", " TRUE "} {
		correct, err := s.gradeOne(context.Background(), q, v)
		if err != nil {
			t.Fatalf("gradeOne(%q): %v", v, err)
		}
		if !correct {
			t.Errorf("gradeOne(%q) = false, want true", v)
		}
	}

	correct, err := s.gradeOne(context.Background(), q, "false")
	if err != nil {
		t.Fatalf("gradeOne(false): %v", err)
	}
	if correct {
		t.Error("wrong judgement graded correct")
	}
}

func TestOverlayAnswerKey(t *testing.T) {
	q1 := model.Question{ID: uuid.New(), Type: model.QuestionTypeSingleSelect, CorrectAnswer: "stale"}
	q2 := model.Question{ID: uuid.New(), Type: model.QuestionTypeFreeText, CorrectAnswer: "reference"}
	questions := []model.Question{q1, q2}

	overlayAnswerKey(questions, map[string]string{
		q1.ID.String(): "fresh",
		q2.ID.String(): "", // no warmed reference
	})

	if questions[0].CorrectAnswer != "fresh" {
		t.Errorf("keyed question answer = %q, want %q", questions[0].CorrectAnswer, "fresh")
	}
	if questions[1].CorrectAnswer != "reference" {
		t.Errorf("empty key entry overwrote reference: %q", questions[1].CorrectAnswer)
	}
}

func TestGradeOneSingleSelectIsExact(t *testing.T) {
	s := &ScoringService{}
	q := &model.Question{Type: model.QuestionTypeSingleSelect, CorrectAnswer: "Mitochondria"}

	correct, err := s.gradeOne(context.Background(), q, "mitochondria")
	if err != nil {
		t.Fatalf("gradeOne: %v", err)
	}
	if correct {
		t.Error("single select graded case-insensitively, want exact match")
	}
}
