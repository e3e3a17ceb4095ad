// Package session keeps per-session conversation history for the query API.
package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Turn is one answered question. It is encoded as a [question, answer] pair.
type Turn struct {
	Question string
	Answer   string
}

// MarshalJSON encodes the turn as a two-element array.
func (t Turn) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{t.Question, t.Answer})
}

// UnmarshalJSON decodes a [question, answer] pair.
func (t *Turn) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("failed to decode turn: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("turn must have 2 elements, got %d", len(pair))
	}
	t.Question, t.Answer = pair[0], pair[1]
	return nil
}

// Session is the conversation history of one client.
type Session struct {
	id        string
	createdAt time.Time

	mu       sync.Mutex
	turns    []Turn
	lastSeen time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{id: id, createdAt: now, lastSeen: now}
}

// New returns a standalone session with a fresh ID.
func New() *Session {
	return newSession(uuid.NewString(), time.Now())
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Append records a completed turn.
func (s *Session) Append(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Question: question, Answer: answer})
}

// Recent returns up to n of the most recent turns, oldest first.
func (s *Session) Recent(n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return []Turn{}
	}
	start := len(s.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(s.turns)-start)
	copy(out, s.turns[start:])
	return out
}

// History returns a copy of every turn, oldest first.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of recorded turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Clear drops every turn.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
