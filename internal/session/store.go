package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store owns the live sessions of the API process.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create starts a new session with a fresh ID.
func (st *Store) Create() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.createLocked(uuid.NewString())
}

func (st *Store) createLocked(id string) *Session {
	s := newSession(id, st.now())
	st.sessions[id] = s
	return s
}

// Get returns the session with the given ID.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if ok {
		s.touch(st.now())
	}
	return s, ok
}

// GetOrCreate returns the session with the given ID. An unknown but well
// formed ID is adopted so clients keep their ID across restarts; an empty or
// malformed ID gets a new session. The boolean reports whether a session
// was created.
func (st *Store) GetOrCreate(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[id]; ok {
		s.touch(st.now())
		return s, false
	}
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	return st.createLocked(id), true
}

// Delete tears down a session. It reports whether the session existed.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Prune deletes sessions idle for longer than maxIdle and returns how many were removed.
func (st *Store) Prune(maxIdle time.Duration) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := st.now().Add(-maxIdle)
	removed := 0
	for id, s := range st.sessions {
		if s.idleSince().Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}
