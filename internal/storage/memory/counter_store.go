package memory

import (
	"context"
	"sync"

	"copy-trader-lab/internal/storage"
)

// CounterStore is an in-memory implementation of storage.CounterStore.
type CounterStore struct {
	mu   sync.RWMutex
	data map[string]int64
}

// NewCounterStore creates a new in-memory counter store.
func NewCounterStore() *CounterStore {
	return &CounterStore{
		data: make(map[string]int64),
	}
}

// Set stores a counter value, creating the key if needed.
func (s *CounterStore) Set(_ context.Context, key string, value int64) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

// Increment adds delta to a counter and returns the new value.
func (s *CounterStore) Increment(_ context.Context, key string, delta int64) (int64, error) {
	if key == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] += delta
	return s.data[key], nil
}

// Get retrieves a counter. Returns ErrNotFound if the key was never set.
func (s *CounterStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.data[key]
	if !exists {
		return 0, storage.ErrNotFound
	}
	return v, nil
}

var _ storage.CounterStore = (*CounterStore)(nil)
