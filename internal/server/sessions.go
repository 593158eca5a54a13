// Package server tracks live sessions by username and hands routed messages to
// each session's outbound queue.
package server

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Session binds an authenticated username to one connection's outbound queue.
// The registry produces into the queue and the connection's write pump drains it.
type Session struct {
	ID       string
	Username string

	mu     sync.Mutex
	send   chan ChatMessage
	closed bool
}

// NewSession creates a session whose outbound queue holds up to capacity messages.
func NewSession(username string, capacity int) *Session {
	if capacity <= 0 {
		capacity = 1
	}
	return &Session{
		ID:       uuid.NewString(),
		Username: username,
		send:     make(chan ChatMessage, capacity),
	}
}

// Outbound returns the session's outbound queue for the write pump.
// It is closed once the session is removed, replaced, or shut down.
func (s *Session) Outbound() <-chan ChatMessage {
	return s.send
}

// enqueue never blocks: a full queue fails with ErrOutboundFull and a closed
// session with ErrUndeliverable.
func (s *Session) enqueue(msg ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrUndeliverable
	}

	select {
	case s.send <- msg:
		return nil
	default:
		return ErrOutboundFull
	}
}

// close is idempotent.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// SessionRegistry maps each logged-in username to its single live session.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      *slog.Logger
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(log *slog.Logger) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		log:      log,
	}
}

// Insert registers the session for its username. An existing session for the
// same username is superseded: it is dropped from the registry and its queue is
// closed so its write pump ends that connection. The superseded session is
// returned, or nil.
func (r *SessionRegistry) Insert(s *Session) *Session {
	r.mu.Lock()
	previous := r.sessions[s.Username]
	r.sessions[s.Username] = s
	count := len(r.sessions)
	r.mu.Unlock()

	// Close the old queue after releasing the lock
	if previous != nil && previous != s {
		previous.close()
		r.log.Info("Session replaced", "username", s.Username, "old_session", previous.ID, "new_session", s.ID)
	}
	r.log.Info("Session registered", "username", s.Username, "session", s.ID, "total", count)

	if previous == s {
		return nil
	}
	return previous
}

// Remove drops whatever session is registered for username. Removing an
// unknown username is a no-op.
func (r *SessionRegistry) Remove(username string) {
	r.mu.Lock()
	s, ok := r.sessions[username]
	if ok {
		delete(r.sessions, username)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if ok {
		s.close()
		r.log.Info("Session unregistered", "username", username, "session", s.ID, "total", count)
	}
}

// RemoveSession drops s only if it is still the current session for its
// username, so a superseded connection cannot evict its replacement. The queue
// of s is closed either way. It reports whether an entry was deleted.
func (r *SessionRegistry) RemoveSession(s *Session) bool {
	r.mu.Lock()
	current, ok := r.sessions[s.Username]
	removed := ok && current == s
	if removed {
		delete(r.sessions, s.Username)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	s.close()
	if removed {
		r.log.Info("Session unregistered", "username", s.Username, "session", s.ID, "total", count)
	}
	return removed
}

// Lookup returns the live session for username.
func (r *SessionRegistry) Lookup(username string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[username]
	return s, ok
}

// Deliver enqueues msg on the live session for username. It fails with
// ErrUndeliverable when no session exists and ErrOutboundFull when the
// recipient is not keeping up. Only the recipient's queue lock is held while
// enqueueing.
func (r *SessionRegistry) Deliver(username string, msg ChatMessage) error {
	s, ok := r.Lookup(username)
	if !ok {
		return ErrUndeliverable
	}
	return s.enqueue(msg)
}

// Online returns a sorted snapshot of usernames with a live session.
func (r *SessionRegistry) Online() []string {
	r.mu.RLock()
	names := lo.Keys(r.sessions)
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll removes every session and closes their queues, which makes each
// write pump send a close frame to its peer. It returns the number closed.
func (r *SessionRegistry) CloseAll() int {
	r.mu.Lock()
	sessions := lo.Values(r.sessions)
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	r.log.Info("Closed all sessions", "count", len(sessions))
	return len(sessions)
}
