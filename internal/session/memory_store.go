package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. It exists for development
// setups without Redis and for tests; sessions do not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data      Data
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Save(_ context.Context, idHash string, data Data, expiresAt time.Time) error {
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[idHash] = memoryEntry{data: data, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, idHash string) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[idHash]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(s.entries, idHash)
		return Data{}, ErrNotFound
	}
	data := entry.data
	if data.Role == "" {
		data.Role = "user"
	}
	return data, nil
}

func (s *MemoryStore) Revoke(_ context.Context, idHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, idHash)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
