package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/topiclens/topiclens-backend/internal/model"
	"github.com/topiclens/topiclens-backend/internal/session"
)

func TestStudentKey(t *testing.T) {
	cases := []struct {
		name  string
		sname string
		email string
		want  string
	}{
		{"email preferred", "Jane Doe", "Jane@Example.com", "jane@example.com"},
		{"name fallback", "Jane Doe", "", "jane doe"},
		{"trims whitespace", "  Jane  ", "", "jane"},
		{"email trimmed", "Jane", " jane@example.com ", "jane@example.com"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := studentKey(tc.sname, tc.email); got != tc.want {
				t.Errorf("studentKey(%q, %q) = %q, want %q", tc.sname, tc.email, got, tc.want)
			}
		})
	}
}

type stubScorer struct{}

func (stubScorer) Score(ctx context.Context, attemptID uuid.UUID, elapsedSeconds int) (*model.AttemptReport, error) {
	return &model.AttemptReport{AttemptID: attemptID, TotalQuestions: 1}, nil
}

func newCompletedSession(t *testing.T) *session.Session {
	t.Helper()

	q := model.QuestionForStudent{
		ID: uuid.New(), TopicID: uuid.New(), Text: "q",
		Type: model.QuestionTypeSingleSelect, Options: []string{"A", "B"},
	}
	noop := session.AnswerSinkFunc(func(ctx context.Context, attemptID uuid.UUID, answers map[uuid.UUID]string) error {
		return nil
	})
	sess := session.New(session.Config{
		AttemptID:        uuid.New(),
		Exam:             session.NewExam(uuid.New(), "Diag", 30, []model.QuestionForStudent{q}),
		StartedAt:        time.Now(),
		RemainingSeconds: 1800,
		DebounceInterval: time.Hour,
		AutosaveSink:     noop,
		FinalSink:        noop,
		Scorer:           stubScorer{},
		Logger:           zerolog.Nop(),
	})
	if _, err := sess.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	return sess
}

func TestResumeEvictsCompletedSession(t *testing.T) {
	manager := session.NewManager()
	sess := newCompletedSession(t)
	manager.PutIfAbsent(sess)

	svc := &AttemptService{manager: manager, log: zerolog.Nop()}

	_, err := svc.Resume(context.Background(), sess.AttemptID())
	if !errors.Is(err, ErrAttemptCompleted) {
		t.Fatalf("Resume on completed session: err = %v, want ErrAttemptCompleted", err)
	}
	if _, ok := manager.Get(sess.AttemptID()); ok {
		t.Fatal("completed session still resident after Resume")
	}
}
