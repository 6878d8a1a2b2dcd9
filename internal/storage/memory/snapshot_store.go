package memory

import (
	"context"
	"sync"

	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.StrategySnapshot // keyed by strategy, append order
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string][]*domain.StrategySnapshot),
	}
}

// Insert appends a snapshot row.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.StrategySnapshot) error {
	if snap == nil || snap.Strategy == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *snap
	s.data[snap.Strategy] = append(s.data[snap.Strategy], &copied)
	return nil
}

// GetLatest retrieves the most recent snapshot for a strategy.
func (s *SnapshotStore) GetLatest(_ context.Context, strategy string) (*domain.StrategySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.data[strategy]
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}

	latest := rows[0]
	for _, r := range rows[1:] {
		if r.CapturedAtMs >= latest.CapturedAtMs {
			latest = r
		}
	}

	copied := *latest
	return &copied, nil
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
