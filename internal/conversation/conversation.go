// Package conversation provides bounded per-session chat history.
package conversation

import (
	"sync"
	"time"
)

// Default limits, overridable via config.
const (
	DefaultMaxHistory = 10
	DefaultSessionTTL = 5 * time.Minute
)

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}

// Session holds the state of a single conversation.
type Session struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) copy() *Session {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	return &c
}

// SessionStats describes one active session.
type SessionStats struct {
	ID       string        `json:"id"`
	Messages int           `json:"messages"`
	Age      time.Duration `json:"age"`
	Idle     time.Duration `json:"idle"`
}

// Manager tracks active sessions in memory. Sessions expire lazily:
// an idle session past the TTL is dropped the next time it is touched
// or the manager is swept.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	maxHistory int
	ttl        time.Duration

	now func() time.Time // stubbed in tests
}

// NewManager creates a session manager. Non-positive limits fall back
// to the defaults.
func NewManager(maxHistory int, ttl time.Duration) *Manager {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Manager{
		sessions:   make(map[string]*Session),
		maxHistory: maxHistory,
		ttl:        ttl,
		now:        time.Now,
	}
}

// expiredLocked reports whether s has idled past the TTL.
func (m *Manager) expiredLocked(s *Session) bool {
	return m.now().Sub(s.UpdatedAt) > m.ttl
}

// History returns a copy of the session's messages, oldest first.
// An unknown or expired session yields nil.
func (m *Manager) History(sessionID string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	if m.expiredLocked(s) {
		delete(m.sessions, sessionID)
		return nil
	}

	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// AddExchange appends a user/assistant pair to the session, creating it
// if needed. History is trimmed oldest-first to the configured limit.
func (m *Manager) AddExchange(sessionID, userMessage, assistantMessage string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s, ok := m.sessions[sessionID]
	if !ok || m.expiredLocked(s) {
		s = &Session{ID: sessionID, CreatedAt: now}
		m.sessions[sessionID] = s
	}

	s.Messages = append(s.Messages,
		Message{Role: "user", Content: userMessage},
		Message{Role: "assistant", Content: assistantMessage},
	)
	if n := len(s.Messages); n > m.maxHistory {
		s.Messages = append([]Message(nil), s.Messages[n-m.maxHistory:]...)
	}
	s.UpdatedAt = now
}

// Session returns a copy of the session, or nil if unknown or expired.
func (m *Manager) Session(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	if m.expiredLocked(s) {
		delete(m.sessions, sessionID)
		return nil
	}
	return s.copy()
}

// Clear empties a session's history without removing the session.
func (m *Manager) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		s.Messages = nil
		s.UpdatedAt = m.now()
	}
}

// Remove drops a session entirely. Used when a client disconnects.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Stats sweeps expired sessions and reports the survivors.
func (m *Manager) Stats() []SessionStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	stats := make([]SessionStats, 0, len(m.sessions))
	for id, s := range m.sessions {
		if m.expiredLocked(s) {
			delete(m.sessions, id)
			continue
		}
		stats = append(stats, SessionStats{
			ID:       id,
			Messages: len(s.Messages),
			Age:      now.Sub(s.CreatedAt),
			Idle:     now.Sub(s.UpdatedAt),
		})
	}
	return stats
}

// Active returns the number of live sessions, sweeping expired ones.
func (m *Manager) Active() int {
	return len(m.Stats())
}
