package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reelvault/apiserver/internal/store"
)

type memoryEntry struct {
	userID    uuid.UUID
	expiresAt time.Time
}

// MemoryStore holds sessions in RAM. Sessions are lost on restart, which is
// acceptable for a single process. Expired entries are invisible to Get
// immediately and are reclaimed by Sweep.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]memoryEntry{},
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, token string) (uuid.UUID, error) {
	m.mu.RLock()
	entry, ok := m.sessions[token]
	m.mu.RUnlock()

	if !ok || !m.now().Before(entry.expiresAt) {
		return uuid.Nil, store.ErrNotFound
	}
	return entry.userID, nil
}

func (m *MemoryStore) Put(_ context.Context, token string, userID uuid.UUID, expiresAt time.Time) error {
	m.mu.Lock()
	m.sessions[token] = memoryEntry{userID: userID, expiresAt: expiresAt}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
	return nil
}

// Sweep drops expired sessions and reports how many were removed.
func (m *MemoryStore) Sweep(_ context.Context) (int, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for token, entry := range m.sessions {
		if !now.Before(entry.expiresAt) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many sessions are held, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
