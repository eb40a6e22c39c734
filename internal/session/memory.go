package session

import (
	"context"
	"sync"

	"github.com/replydesk/server/internal/model"
)

// MemoryStore is an in-process Store. Sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]model.Session)}
}

// Get returns a copy of the session stored under key
func (m *MemoryStore) Get(_ context.Context, key string) (model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[HashKey(key)]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return clone(s), nil
}

// Set stores s under key, replacing any previous session
func (m *MemoryStore) Set(_ context.Context, key string, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[HashKey(key)] = clone(s)
	return nil
}

// Clear removes the session under key. Clearing a missing key is not an error.
func (m *MemoryStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, HashKey(key))
	return nil
}

func clone(s model.Session) model.Session {
	if s.Profile == nil {
		return s
	}
	p := *s.Profile
	if p.Business != nil {
		b := *p.Business
		p.Business = &b
	}
	s.Profile = &p
	return s
}
