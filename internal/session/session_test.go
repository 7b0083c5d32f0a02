package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/topiclens/topiclens-backend/internal/model"
)

// fakeScorer counts scoring calls and can fail the first N of them.
type fakeScorer struct {
	mu     sync.Mutex
	calls  int
	failN  int
	onCall func()
}

func (f *fakeScorer) Score(ctx context.Context, attemptID uuid.UUID, elapsedSeconds int) (*model.AttemptReport, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failN > 0
	if fail {
		f.failN--
	}
	cb := f.onCall
	f.mu.Unlock()

	if cb != nil {
		cb()
	}
	if fail {
		return nil, errors.New("analysis service unavailable")
	}
	return &model.AttemptReport{
		AttemptID:      attemptID,
		Score:          70,
		CorrectCount:   7,
		TotalQuestions: 10,
		Narrative:      "solid fundamentals",
	}, nil
}

func (f *fakeScorer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func buildExam(n int) *Exam {
	questions := make([]model.QuestionForStudent, n)
	for i := 0; i < n; i++ {
		questions[i] = model.QuestionForStudent{
			ID:      uuid.New(),
			TopicID: uuid.New(),
			Text:    "question",
			Type:    model.QuestionTypeSingleSelect,
			Options: []string{"A", "B", "C", "D"},
			SeqNum:  i,
		}
	}
	return NewExam(uuid.New(), "Diagnostic", 30, questions)
}

func newTestSession(exam *Exam, autosaveSink, finalSink AnswerSink, scorer Scorer, remaining int) *Session {
	return New(Config{
		AttemptID:        uuid.New(),
		Exam:             exam,
		StartedAt:        time.Now(),
		RemainingSeconds: remaining,
		DebounceInterval: time.Hour, // Never fires on its own in tests.
		AutosaveSink:     autosaveSink,
		FinalSink:        finalSink,
		Scorer:           scorer,
		Logger:           zerolog.Nop(),
	})
}

func TestAnswerLastWriteWins(t *testing.T) {
	exam := buildExam(3)
	s := newTestSession(exam, &recordingSink{}, &recordingSink{}, &fakeScorer{}, 1800)

	q := exam.Questions[0].ID
	for _, v := range []string{"A", "C", "B"} {
		if err := s.Answer(q, v); err != nil {
			t.Fatalf("Answer(%q): %v", v, err)
		}
	}

	snap := s.Snapshot()
	if got := snap.Answers[q]; got != "B" {
		t.Fatalf("answer store holds %q, want last write %q", got, "B")
	}
	if snap.AnsweredCount != 1 {
		t.Fatalf("answered count = %d, want 1 (no duplicates)", snap.AnsweredCount)
	}
}

func TestAnswerShapeValidation(t *testing.T) {
	free := model.QuestionForStudent{
		ID: uuid.New(), TopicID: uuid.New(), Text: "explain", Type: model.QuestionTypeFreeText,
	}
	tf := model.QuestionForStudent{
		ID: uuid.New(), TopicID: uuid.New(), Text: "t/f", Type: model.QuestionTypeTrueFalse,
		Options: []string{"True", "False"},
	}
	exam := NewExam(uuid.New(), "Mixed", 30, []model.QuestionForStudent{free, tf})
	s := newTestSession(exam, &recordingSink{}, &recordingSink{}, &fakeScorer{}, 1800)

	if err := s.Answer(tf.ID, "Maybe"); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("off-option answer: err = %v, want ErrInvalidAnswer", err)
	}
	if err := s.Answer(tf.ID, "True"); err != nil {
		t.Fatalf("valid option rejected: %v", err)
	}
	if err := s.Answer(free.ID, ""); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("empty free text: err = %v, want ErrInvalidAnswer", err)
	}
	if err := s.Answer(free.ID, "because entropy increases"); err != nil {
		t.Fatalf("free text rejected: %v", err)
	}
	if err := s.Answer(uuid.New(), "A"); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("foreign question: err = %v, want ErrUnknownQuestion", err)
	}
}

func TestAnswerTrueFalseAcceptsBinaryPair(t *testing.T) {
	// Option list absent, the shape older generated rows carry.
	bare := model.QuestionForStudent{
		ID: uuid.New(), TopicID: uuid.New(), Text: "t/f", Type: model.QuestionTypeTrueFalse,
	}
	exam := NewExam(uuid.New(), "Binary", 30, []model.QuestionForStudent{bare})
	s := newTestSession(exam, &recordingSink{}, &recordingSink{}, &fakeScorer{}, 1800)

	for _, v := range []string{"true", "false", "True", "FALSE"} {
		if err := s.Answer(bare.ID, v); err != nil {
			t.Fatalf("Answer(%q) on optionless true/false: %v", v, err)
		}
	}
	if err := s.Answer(bare.ID, "maybe"); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("non-binary answer: err = %v, want ErrInvalidAnswer", err)
	}
}

func TestGoToOutOfRangeIsNoop(t *testing.T) {
	exam := buildExam(5)
	s := newTestSession(exam, &recordingSink{}, &recordingSink{}, &fakeScorer{}, 1800)

	s.GoTo(3)
	if got := s.GoTo(-1); got != 3 {
		t.Fatalf("GoTo(-1) moved index to %d, want 3", got)
	}
	if got := s.GoTo(5); got != 3 {
		t.Fatalf("GoTo(questionCount) moved index to %d, want 3", got)
	}
}

func TestSubmitDoubleTriggerScoresOnce(t *testing.T) {
	exam := buildExam(4)
	scorer := &fakeScorer{}
	s := newTestSession(exam, &recordingSink{}, &recordingSink{}, scorer, 1800)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var reports int
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := s.Submit(context.Background())
			mu.Lock()
			defer mu.Unlock()
			if report != nil && err == nil {
				reports++
			} else if !errors.Is(err, ErrSubmitInFlight) {
				t.Errorf("unexpected submit error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := scorer.callCount(); got != 1 {
		t.Fatalf("scoring called %d times for a double trigger, want 1", got)
	}
	if got := reports; got < 1 {
		t.Fatalf("no caller received the report")
	}
	if got := s.Phase(); got != PhaseCompleted {
		t.Fatalf("phase = %q, want %q", got, PhaseCompleted)
	}
}

func TestSubmitFlushesExactlyAnsweredQuestions(t *testing.T) {
	exam := buildExam(10)
	finalSink := &recordingSink{}
	scorer := &fakeScorer{}
	s := newTestSession(exam, &recordingSink{}, finalSink, scorer, 1800)

	// Answer 7 of 10 questions, leave 3 untouched.
	for i := 0; i < 7; i++ {
		if err := s.Answer(exam.Questions[i].ID, "A"); err != nil {
			t.Fatalf("Answer: %v", err)
		}
	}

	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if got := finalSink.count(); got != 1 {
		t.Fatalf("final flush count = %d, want 1", got)
	}
	if got := len(finalSink.last()); got != 7 {
		t.Fatalf("final flush carried %d entries, want exactly 7", got)
	}
	for i := 7; i < 10; i++ {
		if _, ok := finalSink.last()[exam.Questions[i].ID]; ok {
			t.Fatalf("unanswered question %d leaked into the flush", i)
		}
	}
}

func TestSubmitIsTerminalAndIdempotent(t *testing.T) {
	exam := buildExam(2)
	scorer := &fakeScorer{}
	s := newTestSession(exam, &recordingSink{}, &recordingSink{}, scorer, 1800)

	first, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Repeated submit is a no-op returning the cached report.
	second, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("repeat Submit: %v", err)
	}
	if second != first {
		t.Fatalf("repeat Submit produced a different report")
	}
	if got := scorer.callCount(); got != 1 {
		t.Fatalf("scoring called %d times, want 1", got)
	}

	// No further answer mutation is accepted.
	if err := s.Answer(exam.Questions[0].ID, "A"); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("answer after completion: err = %v, want ErrNotRunning", err)
	}
}

func TestSubmitFailureIsRetryable(t *testing.T) {
	exam := buildExam(2)
	scorer := &fakeScorer{failN: 1}
	s := newTestSession(exam, &recordingSink{}, &recordingSink{}, scorer, 1800)

	if _, err := s.Submit(context.Background()); err == nil {
		t.Fatalf("first Submit should surface the scoring failure")
	}
	if got := s.Phase(); got != PhaseSubmitFailed {
		t.Fatalf("phase after failure = %q, want %q", got, PhaseSubmitFailed)
	}

	// The student retries; scoring is at-least-once and idempotent.
	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if got := s.Phase(); got != PhaseCompleted {
		t.Fatalf("phase after retry = %q, want %q", got, PhaseCompleted)
	}
	if got := scorer.callCount(); got != 2 {
		t.Fatalf("scoring called %d times across retry, want 2", got)
	}
}

func TestExpiryFlushesPendingDebounceBeforeScoring(t *testing.T) {
	exam := buildExam(4)

	var mu sync.Mutex
	var order []string

	finalSink := AnswerSinkFunc(func(ctx context.Context, attemptID uuid.UUID, answers map[uuid.UUID]string) error {
		mu.Lock()
		order = append(order, "flush")
		mu.Unlock()
		return nil
	})
	scorer := &fakeScorer{onCall: func() {
		mu.Lock()
		order = append(order, "score")
		mu.Unlock()
	}}

	s := newTestSession(exam, &recordingSink{}, finalSink, scorer, 2)

	// Two answers sit in the debounce window when time runs out.
	if err := s.Answer(exam.Questions[0].ID, "A"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if err := s.Answer(exam.Questions[1].ID, "B"); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	// Drive the countdown to zero; expiry auto-submits synchronously.
	s.countdown.tick()
	s.countdown.tick()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "flush" || order[1] != "score" {
		t.Fatalf("submission order = %v, want [flush score]", order)
	}
	if got := s.Phase(); got != PhaseCompleted {
		t.Fatalf("phase after expiry = %q, want %q", got, PhaseCompleted)
	}

	// The expiry and completion events reached the stream.
	kinds := drainEventKinds(s)
	if !containsKind(kinds, EventExpired) || !containsKind(kinds, EventCompleted) {
		t.Fatalf("events = %v, want expired and completed", kinds)
	}
}

func TestLowTimeEventReachesStream(t *testing.T) {
	exam := buildExam(2)
	s := newTestSession(exam, &recordingSink{}, &recordingSink{}, &fakeScorer{}, 302)

	s.countdown.tick()
	s.countdown.tick()

	kinds := drainEventKinds(s)
	if !containsKind(kinds, EventLowTime) {
		t.Fatalf("events = %v, want low_time", kinds)
	}
}

func drainEventKinds(s *Session) []EventKind {
	var kinds []EventKind
	for {
		select {
		case ev := <-s.Events():
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}

func containsKind(kinds []EventKind, want EventKind) bool {
	for _, k := range kinds {
		if k == want {
			return true
		}
	}
	return false
}
