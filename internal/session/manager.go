package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Manager tracks the live sessions of this process, at most one per
// attempt. Starting twice for the same attempt hands back the existing
// session instead of creating a second one.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[uuid.UUID]*Session)}
}

// PutIfAbsent registers a session unless one already exists for the
// attempt. Returns the session that is live after the call and whether
// the candidate was inserted.
func (m *Manager) PutIfAbsent(s *Session) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[s.AttemptID()]; ok {
		return existing, false
	}
	m.sessions[s.AttemptID()] = s
	return s, true
}

// Get returns the live session for an attempt, if any.
func (m *Manager) Get(attemptID uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[attemptID]
	return s, ok
}

// Remove evicts a session without closing it.
func (m *Manager) Remove(attemptID uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, attemptID)
	m.mu.Unlock()
}

// Shutdown closes every live session, flushing pending autosave state.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close(ctx)
	}
}
