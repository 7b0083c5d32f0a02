package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/topiclens/topiclens-backend/internal/model"
)

// Phase is the session lifecycle state.
// idle -> running -> submitting -> completed, with submit_failed as the
// recoverable sub-state after a failed scoring call. completed is
// terminal.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseRunning      Phase = "running"
	PhaseSubmitting   Phase = "submitting"
	PhaseSubmitFailed Phase = "submit_failed"
	PhaseCompleted    Phase = "completed"
)

// EventKind identifies a session event pushed to the presentation layer.
type EventKind string

const (
	EventLowTime      EventKind = "low_time"
	EventExpired      EventKind = "expired"
	EventCompleted    EventKind = "completed"
	EventSubmitFailed EventKind = "submit_failed"
)

// Event is pushed over the session's event channel (consumed by the
// WebSocket stream).
type Event struct {
	Kind      EventKind            `json:"kind"`
	Remaining int                  `json:"remaining,omitempty"`
	Report    *model.AttemptReport `json:"report,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// Scorer is the external scoring/analysis collaborator. It computes
// correctness per answer, aggregates a score, produces per-topic
// breakdowns and a narrative report. It must be idempotent: repeated
// calls recompute and overwrite prior scored state.
type Scorer interface {
	Score(ctx context.Context, attemptID uuid.UUID, elapsedSeconds int) (*model.AttemptReport, error)
}

// finalFlushRetries bounds the synchronous flush at submission. The
// flush is an idempotent upsert, so retrying is safe; exhausting retries
// does not abort submission — an exam under time pressure must still
// terminate.
const finalFlushRetries = 3

// Config wires one session's collaborators.
type Config struct {
	AttemptID        uuid.UUID
	Exam             *Exam
	StartedAt        time.Time
	RemainingSeconds int
	DebounceInterval time.Duration

	// AutosaveSink receives debounced snapshots (eventually consistent).
	AutosaveSink AnswerSink
	// FinalSink receives the synchronous flush at submission time and
	// must persist before returning.
	FinalSink AnswerSink
	Scorer    Scorer
	Logger    zerolog.Logger

	// Restored seeds the answer store when resuming after a reload.
	Restored map[uuid.UUID]string
}

// Session is the state machine for one timed exam attempt. It owns the
// answer store and flagged set exclusively; the autosave scheduler and
// navigator only read snapshots. Flags live only here and are never
// persisted.
type Session struct {
	mu sync.Mutex

	attemptID uuid.UUID
	exam      *Exam
	startedAt time.Time

	phase   Phase
	answers map[uuid.UUID]string
	flagged map[uuid.UUID]struct{}
	current int
	report  *model.AttemptReport

	countdown *Countdown
	autosave  *Autosave
	finalSink AnswerSink
	scorer    Scorer
	log       zerolog.Logger

	events chan Event
}

// New creates a session in the running phase. Call Start to begin the
// countdown.
func New(cfg Config) *Session {
	s := &Session{
		attemptID: cfg.AttemptID,
		exam:      cfg.Exam,
		startedAt: cfg.StartedAt,
		phase:     PhaseRunning,
		answers:   make(map[uuid.UUID]string),
		flagged:   make(map[uuid.UUID]struct{}),
		finalSink: cfg.FinalSink,
		scorer:    cfg.Scorer,
		log: cfg.Logger.With().
			Str("component", "session").
			Str("attempt_id", cfg.AttemptID.String()).
			Logger(),
		events: make(chan Event, 8),
	}

	for qid, val := range cfg.Restored {
		if _, ok := cfg.Exam.Question(qid); ok {
			s.answers[qid] = val
		}
	}

	s.autosave = NewAutosave(cfg.AttemptID, cfg.DebounceInterval, s.answerSnapshot, cfg.AutosaveSink, cfg.Logger)

	s.countdown = NewCountdown(cfg.RemainingSeconds,
		func() {
			s.emit(Event{Kind: EventLowTime, Remaining: LowTimeSeconds})
		},
		func() {
			// Expiry is the sole trigger for automatic submission.
			s.emit(Event{Kind: EventExpired})
			if _, err := s.Submit(context.Background()); err != nil {
				s.log.Error().Err(err).Msg("Auto-submission at expiry failed")
			}
		},
	)

	return s
}

// Start begins the countdown.
func (s *Session) Start() {
	s.countdown.Start()
}

// AttemptID returns the owning attempt's identity.
func (s *Session) AttemptID() uuid.UUID {
	return s.attemptID
}

// Exam returns the immutable exam view.
func (s *Session) Exam() *Exam {
	return s.exam
}

// Events is the channel of timer and submission events for this session.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Remaining returns the authoritative remaining seconds.
func (s *Session) Remaining() int {
	return s.countdown.Remaining()
}

// Answer records a value for a question. The session must be running and
// the value must match the question's expected shape. The write is
// last-write-wins; persistence is delegated to the autosave scheduler.
func (s *Session) Answer(questionID uuid.UUID, value string) error {
	s.mu.Lock()
	if s.phase != PhaseRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	q, ok := s.exam.Question(questionID)
	if !ok {
		s.mu.Unlock()
		return ErrUnknownQuestion
	}
	if err := validateAnswer(q, value); err != nil {
		s.mu.Unlock()
		return err
	}
	s.answers[questionID] = value
	s.mu.Unlock()

	s.autosave.Schedule()
	return nil
}

// ToggleFlag adds or removes a question from the flagged set. Purely
// local: flags never reach storage.
func (s *Session) ToggleFlag(questionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseRunning {
		return ErrNotRunning
	}
	if _, ok := s.exam.Question(questionID); !ok {
		return ErrUnknownQuestion
	}
	if _, ok := s.flagged[questionID]; ok {
		delete(s.flagged, questionID)
	} else {
		s.flagged[questionID] = struct{}{}
	}
	return nil
}

// GoTo jumps to a question index, clamped to the question list. Out of
// range targets are a no-op, not an error.
func (s *Session) GoTo(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = ClampIndex(s.exam.QuestionCount(), s.current, index)
	return s.current
}

// Next advances the current question, staying in bounds.
func (s *Session) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = NextIndex(s.exam.QuestionCount(), s.current)
	return s.current
}

// Prev steps back, staying in bounds.
func (s *Session) Prev() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = PrevIndex(s.exam.QuestionCount(), s.current)
	return s.current
}

// State is a snapshot of the session for the presentation layer,
// sufficient to rebuild the UI after a page reload.
type State struct {
	AttemptID      uuid.UUID                   `json:"attempt_id"`
	Phase          Phase                       `json:"phase"`
	Remaining      int                         `json:"remaining_seconds"`
	CurrentIndex   int                         `json:"current_index"`
	Progress       float64                     `json:"progress"`
	AnsweredCount  int                         `json:"answered_count"`
	TotalQuestions int                         `json:"total_questions"`
	Answers        map[uuid.UUID]string        `json:"answers"`
	QuestionStates map[uuid.UUID]QuestionState `json:"question_states"`
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	answers := make(map[uuid.UUID]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	states := make(map[uuid.UUID]QuestionState, s.exam.QuestionCount())
	for i := range s.exam.Questions {
		qid := s.exam.Questions[i].ID
		states[qid] = StateOf(qid, s.answers, s.flagged)
	}

	return State{
		AttemptID:      s.attemptID,
		Phase:          s.phase,
		Remaining:      s.countdown.Remaining(),
		CurrentIndex:   s.current,
		Progress:       Progress(s.exam.QuestionCount(), s.current),
		AnsweredCount:  len(s.answers),
		TotalQuestions: s.exam.QuestionCount(),
		Answers:        answers,
		QuestionStates: states,
	}
}

// Submit drives the submission protocol. Safe to call multiple times
// concurrently: only the first caller wins the transition into
// submitting; later calls while submitting return ErrSubmitInFlight and
// calls after completion return the cached report as a no-op.
//
// Order of operations: stop the countdown (so expiry cannot fire after
// submission began), cancel the pending debounce, flush the full answer
// snapshot synchronously through the final sink, then invoke the scorer.
// A flush failure is retried but never blocks submission; a scorer
// failure moves the session to submit_failed and the student may retry.
func (s *Session) Submit(ctx context.Context) (*model.AttemptReport, error) {
	s.mu.Lock()
	switch s.phase {
	case PhaseCompleted:
		report := s.report
		s.mu.Unlock()
		return report, nil
	case PhaseSubmitting:
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	case PhaseRunning, PhaseSubmitFailed:
		s.phase = PhaseSubmitting
	default:
		s.mu.Unlock()
		return nil, ErrNotRunning
	}
	elapsed := int(time.Since(s.startedAt) / time.Second)
	snapshot := make(map[uuid.UUID]string, len(s.answers))
	for k, v := range s.answers {
		snapshot[k] = v
	}
	s.mu.Unlock()

	s.countdown.Stop()
	s.autosave.Close()

	if len(snapshot) > 0 {
		var flushErr error
		for i := 0; i < finalFlushRetries; i++ {
			if flushErr = s.finalSink.UpsertAnswers(ctx, s.attemptID, snapshot); flushErr == nil {
				break
			}
		}
		if flushErr != nil {
			// Partial answer loss is preferred over blocking submission.
			s.log.Error().Err(flushErr).Msg("Final answer flush failed, continuing to scoring")
		}
	}

	report, err := s.scorer.Score(ctx, s.attemptID, elapsed)
	if err != nil {
		s.mu.Lock()
		s.phase = PhaseSubmitFailed
		s.mu.Unlock()
		s.emit(Event{Kind: EventSubmitFailed, Error: err.Error()})
		return nil, fmt.Errorf("score attempt: %w", err)
	}

	s.mu.Lock()
	s.phase = PhaseCompleted
	s.report = report
	s.mu.Unlock()

	s.log.Info().
		Float64("score", report.Score).
		Int("correct", report.CorrectCount).
		Int("total", report.TotalQuestions).
		Msg("Attempt submitted and scored")
	s.emit(Event{Kind: EventCompleted, Report: report})
	return report, nil
}

// Close flushes pending autosave state and stops the countdown. Used on
// server shutdown and session eviction; idempotent.
func (s *Session) Close(ctx context.Context) {
	s.countdown.Stop()
	if err := s.autosave.FlushNow(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Flush on close failed")
	}
	s.autosave.Close()
}

func (s *Session) answerSnapshot() map[uuid.UUID]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[uuid.UUID]string, len(s.answers))
	for k, v := range s.answers {
		snap[k] = v
	}
	return snap
}

// emit delivers an event without blocking; if nobody is consuming the
// stream the oldest events are simply dropped.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// validateAnswer checks the value shape for a question: non-empty free
// text, a true/false judgement, or exactly one of the option strings for
// single-select.
func validateAnswer(q *model.QuestionForStudent, value string) error {
	if value == "" {
		return ErrInvalidAnswer
	}
	// TRUE_FALSE accepts the binary pair regardless of how the stored
	// option list is cased (or whether older rows carry one at all).
	if q.Type == model.QuestionTypeTrueFalse {
		if strings.EqualFold(value, "true") || strings.EqualFold(value, "false") {
			return nil
		}
		return ErrInvalidAnswer
	}
	if !q.Type.HasOptions() {
		return nil
	}
	for _, opt := range q.Options {
		if opt == value {
			return nil
		}
	}
	return ErrInvalidAnswer
}
