package storage

import (
	"context"
	"sync"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
)

// MemoryCollection keeps sessions in process memory. It backs local runs and tests.
type MemoryCollection struct {
	mu       sync.RWMutex
	sessions map[string]*chat.Session
}

// NewMemoryCollection returns an empty collection.
func NewMemoryCollection() *MemoryCollection {
	return &MemoryCollection{sessions: make(map[string]*chat.Session)}
}

func (m *MemoryCollection) Get(_ context.Context, sessionID string) (*chat.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *MemoryCollection) FindLatestByUser(_ context.Context, userEmail string) (*chat.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *chat.Session
	for _, s := range m.sessions {
		if s.UserEmail != userEmail {
			continue
		}
		if s.NewerThan(latest) {
			latest = s
		}
	}
	return latest.Clone(), nil
}

func (m *MemoryCollection) Upsert(_ context.Context, session *chat.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.sessions[session.SessionID] = session.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryCollection) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored sessions.
func (m *MemoryCollection) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryCollection) Close(context.Context) error { return nil }
