package session

import (
	"log/slog"
	"sync"
)

// Store is the shared session map. All methods are safe for concurrent use;
// reads take the read lock, mutations take the write lock for the duration
// of the single map operation only. No lock is ever held across a blocking
// call, and every Session handed out is a deep copy.
//
// Sessions live for the life of the process: there is no TTL or capacity
// bound, matching the source behavior this service reproduces.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewStore creates an empty Store. A nil logger falls back to slog.Default.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// GetOrCreate returns a snapshot of the session with the given id, inserting
// a new one built from cfg when absent. The check-and-insert happens under
// one write lock, so concurrent callers with the same id never create
// duplicates.
func (st *Store) GetOrCreate(id string, cfg Config) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		s = New(id, cfg)
		st.sessions[id] = s
		st.logger.Debug("created session", "session_id", id, "max_turns", cfg.MaxTurns)
	}
	return s.Clone()
}

// Get returns a snapshot of the session, or nil and false when absent.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Update unconditionally replaces or inserts the session under its own id.
// Last writer wins when two in-flight requests race on one session id.
func (st *Store) Update(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s.Clone()
}

// Sync replaces the session's message list verbatim, re-applies cfg and
// re-trims. Used to reconcile client-held history. Returns a snapshot of
// the result.
func (st *Store) Sync(id string, messages []Message, cfg Config) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		s = New(id, cfg)
		st.sessions[id] = s
	}

	s.Messages = make([]Message, len(messages))
	copy(s.Messages, messages)
	s.Config = cfg
	s.trim()

	return s.Clone()
}

// Remove deletes the session. Returns false when no entry existed; callers
// interpret that as "not found" rather than an error.
func (st *Store) Remove(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	st.logger.Debug("removed session", "session_id", id, "alive", len(st.sessions))
	return true
}

// ClearHistory drops all but the system message, in place. No-op when the
// id is absent.
func (st *Store) ClearHistory(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[id]; ok {
		s.Clear()
	}
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
