package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// recordingSink captures every flush it receives.
type recordingSink struct {
	mu      sync.Mutex
	flushes []map[uuid.UUID]string
	failN   int // fail the first N calls
}

func (r *recordingSink) UpsertAnswers(ctx context.Context, attemptID uuid.UUID, answers map[uuid.UUID]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failN > 0 {
		r.failN--
		return errors.New("storage unreachable")
	}
	snap := make(map[uuid.UUID]string, len(answers))
	for k, v := range answers {
		snap[k] = v
	}
	r.flushes = append(r.flushes, snap)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flushes)
}

func (r *recordingSink) last() map[uuid.UUID]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.flushes) == 0 {
		return nil
	}
	return r.flushes[len(r.flushes)-1]
}

type answerStore struct {
	mu sync.Mutex
	m  map[uuid.UUID]string
}

func newAnswerStore() *answerStore {
	return &answerStore{m: make(map[uuid.UUID]string)}
}

func (s *answerStore) set(q uuid.UUID, v string) {
	s.mu.Lock()
	s.m[q] = v
	s.mu.Unlock()
}

func (s *answerStore) snapshot() map[uuid.UUID]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[uuid.UUID]string, len(s.m))
	for k, v := range s.m {
		snap[k] = v
	}
	return snap
}

func TestAutosaveDebounceCoalescesEdits(t *testing.T) {
	sink := &recordingSink{}
	store := newAnswerStore()
	q := uuid.New()

	a := NewAutosave(uuid.New(), 60*time.Millisecond, store.snapshot, sink, zerolog.Nop())

	// Three rapid edits to the same question inside one debounce window.
	store.set(q, "first")
	a.Schedule()
	time.Sleep(15 * time.Millisecond)
	store.set(q, "second")
	a.Schedule()
	time.Sleep(15 * time.Millisecond)
	store.set(q, "third")
	a.Schedule()

	time.Sleep(200 * time.Millisecond)

	if got := sink.count(); got != 1 {
		t.Fatalf("flush count = %d, want exactly 1", got)
	}
	if got := sink.last()[q]; got != "third" {
		t.Fatalf("flushed value = %q, want the last edit %q", got, "third")
	}
}

func TestAutosaveFlushNowCancelsPendingDebounce(t *testing.T) {
	sink := &recordingSink{}
	store := newAnswerStore()
	q := uuid.New()

	a := NewAutosave(uuid.New(), time.Hour, store.snapshot, sink, zerolog.Nop())

	store.set(q, "v")
	a.Schedule()

	if err := a.FlushNow(context.Background()); err != nil {
		t.Fatalf("FlushNow: %v", err)
	}
	if got := sink.count(); got != 1 {
		t.Fatalf("flush count = %d, want 1", got)
	}

	// The pending timer was cancelled; nothing else should arrive.
	time.Sleep(100 * time.Millisecond)
	if got := sink.count(); got != 1 {
		t.Fatalf("debounce fired after FlushNow: %d flushes", got)
	}
}

func TestAutosaveFlushNowNoopWhenClean(t *testing.T) {
	sink := &recordingSink{}
	store := newAnswerStore()

	a := NewAutosave(uuid.New(), time.Hour, store.snapshot, sink, zerolog.Nop())

	if err := a.FlushNow(context.Background()); err != nil {
		t.Fatalf("FlushNow on clean store: %v", err)
	}
	if got := sink.count(); got != 0 {
		t.Fatalf("flush count = %d, want 0", got)
	}
}

func TestAutosaveRetriesWithLatestStateAfterFailure(t *testing.T) {
	sink := &recordingSink{failN: 1}
	store := newAnswerStore()
	q := uuid.New()

	a := NewAutosave(uuid.New(), 30*time.Millisecond, store.snapshot, sink, zerolog.Nop())

	store.set(q, "lost-to-network")
	a.Schedule()
	time.Sleep(100 * time.Millisecond)

	// First flush failed and was swallowed. The next edit retries with
	// the latest in-memory state.
	if got := sink.count(); got != 0 {
		t.Fatalf("flush count after failure = %d, want 0", got)
	}

	store.set(q, "recovered")
	a.Schedule()
	time.Sleep(100 * time.Millisecond)

	if got := sink.count(); got != 1 {
		t.Fatalf("flush count after retry = %d, want 1", got)
	}
	if got := sink.last()[q]; got != "recovered" {
		t.Fatalf("retried value = %q, want %q", got, "recovered")
	}
}

func TestAutosaveCloseRejectsFurtherScheduling(t *testing.T) {
	sink := &recordingSink{}
	store := newAnswerStore()
	q := uuid.New()

	a := NewAutosave(uuid.New(), 20*time.Millisecond, store.snapshot, sink, zerolog.Nop())
	a.Close()

	store.set(q, "late")
	a.Schedule()
	time.Sleep(80 * time.Millisecond)

	if got := sink.count(); got != 0 {
		t.Fatalf("flush after Close: %d", got)
	}
}
