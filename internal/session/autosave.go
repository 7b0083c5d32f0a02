package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AnswerSink persists a snapshot of (question, value) pairs for an
// attempt with upsert semantics keyed by (attempt, question). A write
// for an existing key replaces the prior value, never duplicates.
type AnswerSink interface {
	UpsertAnswers(ctx context.Context, attemptID uuid.UUID, answers map[uuid.UUID]string) error
}

// AnswerSinkFunc adapts a function to the AnswerSink interface.
type AnswerSinkFunc func(ctx context.Context, attemptID uuid.UUID, answers map[uuid.UUID]string) error

func (f AnswerSinkFunc) UpsertAnswers(ctx context.Context, attemptID uuid.UUID, answers map[uuid.UUID]string) error {
	return f(ctx, attemptID, answers)
}

// Autosave debounces persistence of a session's answer store. Edits mark
// the store dirty and re-arm a quiet-period timer; when the timer fires,
// the full current snapshot is written through the sink. Flush failures
// are swallowed and logged — the next edit re-arms the timer and retries
// with the latest state, so persistence is eventually consistent rather
// than at-least-once-per-edit. A crash inside the debounce window loses
// only the edits made in that window.
type Autosave struct {
	mu        sync.Mutex
	attemptID uuid.UUID
	interval  time.Duration
	snapshot  func() map[uuid.UUID]string
	sink      AnswerSink
	log       zerolog.Logger

	timer  *time.Timer
	dirty  bool
	gen    uint64
	closed bool
}

// NewAutosave creates a debounced autosave scheduler for one attempt.
// snapshot must return a copy of the current answer store.
func NewAutosave(attemptID uuid.UUID, interval time.Duration, snapshot func() map[uuid.UUID]string, sink AnswerSink, log zerolog.Logger) *Autosave {
	return &Autosave{
		attemptID: attemptID,
		interval:  interval,
		snapshot:  snapshot,
		sink:      sink,
		log:       log.With().Str("component", "autosave").Str("attempt_id", attemptID.String()).Logger(),
	}
}

// Schedule records that the answer store changed and (re)arms the
// debounce timer. Rapid successive edits coalesce into one flush.
func (a *Autosave) Schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.dirty = true
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.interval, a.timerFlush)
}

func (a *Autosave) timerFlush() {
	if err := a.FlushNow(context.Background()); err != nil {
		// Never surfaced to the student; the next edit retries.
		a.log.Warn().Err(err).Msg("Autosave flush failed, retrying on next edit")
	}
}

// FlushNow cancels any pending debounce and writes the current snapshot
// through the sink. The Submission Coordinator uses it to force a
// synchronous flush without depending on timing internals.
func (a *Autosave) FlushNow(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if !a.dirty {
		a.mu.Unlock()
		return nil
	}
	gen := a.gen
	snap := a.snapshot()
	a.mu.Unlock()

	if len(snap) == 0 {
		return nil
	}

	if err := a.sink.UpsertAnswers(ctx, a.attemptID, snap); err != nil {
		return err
	}

	a.mu.Lock()
	// An edit that landed during the write keeps the store dirty.
	if a.gen == gen {
		a.dirty = false
	}
	a.mu.Unlock()
	return nil
}

// Close cancels the pending debounce and rejects further scheduling.
// Callers that must not drop the pending write flush first.
func (a *Autosave) Close() {
	a.mu.Lock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
}
