package postgres

import (
	"context"
	"fmt"

	"copy-trader-lab/internal/storage"
)

// CounterStore implements storage.CounterStore using PostgreSQL.
type CounterStore struct {
	pool *Pool
}

// NewCounterStore creates a new CounterStore.
func NewCounterStore(pool *Pool) *CounterStore {
	return &CounterStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CounterStore = (*CounterStore)(nil)

// Set stores a counter value, creating the key if needed.
func (s *CounterStore) Set(ctx context.Context, key string, value int64) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO counters (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set counter: %w", err)
	}
	return nil
}

// Increment adds delta to a counter and returns the new value.
func (s *CounterStore) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	if key == "" {
		return 0, storage.ErrInvalidInput
	}

	var value int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO counters (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = counters.value + EXCLUDED.value
		RETURNING value
	`, key, delta).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}
	return value, nil
}

// Get retrieves a counter. Returns ErrNotFound if the key was never set.
func (s *CounterStore) Get(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.pool.QueryRow(ctx, `SELECT value FROM counters WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get counter: %w", err)
	}
	return value, nil
}
