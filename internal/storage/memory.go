package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	seq     uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Name implements Store.
func (s *MemoryStore) Name() string { return "memory" }

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	value := make([]byte, len(entry.Value))
	copy(value, entry.Value)
	return &Entry{Value: value, Revision: entry.Revision}, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(key, value), nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, key string, value []byte, expected uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entries[key]
	switch {
	case !ok && expected != 0:
		return 0, ErrRevisionMismatch
	case ok && current.Revision != expected:
		return 0, ErrRevisionMismatch
	}
	return s.write(key, value), nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) write(key string, value []byte) uint64 {
	s.seq++
	stored := make([]byte, len(value))
	copy(stored, value)
	s.entries[key] = Entry{Value: stored, Revision: s.seq}
	return s.seq
}
