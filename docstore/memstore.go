package docstore

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store, used by tests and as a reference for
// backend semantics (upsert keeps CreatedAt, Delete ignores absent keys).
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]*Record
	connected bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]*Record{}}
}

func (s *MemoryStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *MemoryStore) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

// Connected reports the connection state, for lifecycle tests.
func (s *MemoryStore) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *MemoryStore) Read(ctx context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	// Return a clone so the caller owns it.
	clone := *rec
	clone.Value = slices.Clone(rec.Value)
	return &clone, nil
}

func (s *MemoryStore) Write(ctx context.Context, key, session string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	created := now
	if old, ok := s.records[key]; ok {
		created = old.CreatedAt
	}
	s.records[key] = &Record{
		ID:        key,
		Value:     slices.Clone(value),
		Session:   session,
		CreatedAt: created,
		UpdatedAt: now,
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *MemoryStore) DeleteNamespace(ctx context.Context, session string, excludeKeys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rec := range s.records {
		if rec.Session == session && !slices.Contains(excludeKeys, key) {
			delete(s.records, key)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteAllNamespace(ctx context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rec := range s.records {
		if rec.Session == session {
			delete(s.records, key)
		}
	}
	return nil
}

// Len reports the number of stored records, for tests.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
