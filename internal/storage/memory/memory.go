package memory

import (
	"context"
	"sync"

	"kanban/internal/storage"
)

// Store keeps preferences in a map. Used for tests and ephemeral boards.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

// New returns an empty in-memory store, optionally seeded with values.
func New(seed map[string]string) *Store {
	values := make(map[string]string, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &Store{values: values}
}

// Get returns the value stored under key.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, storage.ErrClosed
	}
	v, ok := s.values[key]
	return v, ok, nil
}

// Apply writes all values at once.
func (s *Store) Apply(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

// Close marks the store unusable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ storage.Prefs = (*Store)(nil)
