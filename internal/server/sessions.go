package server

import (
	"sync"

	"github.com/vedanta-labs/vaidya/internal/dialogue"
)

// session pairs a conversation memory with the mutex that serializes its
// turns. Turns of one session never run concurrently; separate sessions
// proceed in parallel.
type session struct {
	mu     sync.Mutex
	memory *dialogue.Memory
}

// sessionStore holds active sessions keyed by memory id.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

func (s *sessionStore) add(memory *dialogue.Memory) *session {
	sess := &session{memory: memory}
	s.mu.Lock()
	s.sessions[memory.ID] = sess
	s.mu.Unlock()
	return sess
}

func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	return sess, ok
}

func (s *sessionStore) remove(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	return ok
}

func (s *sessionStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
