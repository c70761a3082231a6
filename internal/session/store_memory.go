package session

import (
	"context"
	"sync"
	"time"

	id "attester/pkg/domain"
	"attester/pkg/platform/sentinel"
	"attester/pkg/requestcontext"
)

// InMemoryStore keeps sessions in a mutex-guarded map. Expired sessions read
// as not found and are evicted lazily on access.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[id.SessionID]*Session)}
}

func (s *InMemoryStore) Save(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	now := requestcontext.Now(ctx)

	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if session.Expired(now) {
		s.evict(sessionID)
		return nil, sentinel.ErrNotFound
	}

	copied := *session
	return &copied, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *InMemoryStore) Execute(ctx context.Context, sessionID id.SessionID, mutate func(*Session) error) (*Session, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if session.Expired(now) {
		delete(s.sessions, sessionID)
		return nil, sentinel.ErrNotFound
	}

	working := *session
	if err := mutate(&working); err != nil {
		return nil, err
	}
	s.sessions[sessionID] = &working

	copied := working
	return &copied, nil
}

func (s *InMemoryStore) evict(sessionID id.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok && session.Expired(time.Now()) {
		delete(s.sessions, sessionID)
	}
}
