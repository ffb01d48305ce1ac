// Package memory provides a process-local Storage for tests and ephemeral sessions.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Store is a mutex-guarded map.
type Store struct {
	mu    sync.RWMutex
	items map[string]string
}

// New constructs an empty store.
func New() *Store {
	return &Store{items: map[string]string{}}
}

// GetItem returns the value stored under key.
func (s *Store) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	return value, ok, nil
}

// SetItem stores value under key.
func (s *Store) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

// SetItems stores every item under one lock.
func (s *Store) SetItems(_ context.Context, items map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.items, items)
	return nil
}

// RemoveItem deletes key.
func (s *Store) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Keys lists stored keys in lexical order.
func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.items))
	for key := range s.items {
		out = append(out, key)
	}
	slices.Sort(out)
	return out, nil
}
