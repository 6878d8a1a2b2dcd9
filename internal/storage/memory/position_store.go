package memory

import (
	"context"
	"sort"
	"sync"

	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by position_id
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.Position),
	}
}

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(_ context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; exists {
		return storage.ErrDuplicateKey
	}

	copied := clonePosition(p)
	s.data[p.PositionID] = copied
	return nil
}

// Update rewrites a position's mutable state. Returns ErrNotFound if not exists.
func (s *PositionStore) Update(_ context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; !exists {
		return storage.ErrNotFound
	}

	s.data[p.PositionID] = clonePosition(p)
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, positionID string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[positionID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return clonePosition(p), nil
}

// GetOpen retrieves open positions, newest first.
func (s *PositionStore) GetOpen(_ context.Context, strategy string) ([]*domain.Position, error) {
	return s.filter(func(p *domain.Position) bool {
		return p.Status == domain.PositionStatusOpen && (strategy == "" || p.Strategy == strategy)
	}), nil
}

// GetClosed retrieves closed positions, newest first.
func (s *PositionStore) GetClosed(_ context.Context, strategy string) ([]*domain.Position, error) {
	return s.filter(func(p *domain.Position) bool {
		return p.Status == domain.PositionStatusClosed && (strategy == "" || p.Strategy == strategy)
	}), nil
}

// GetClosedSince retrieves positions closed at or after sinceMs.
func (s *PositionStore) GetClosedSince(_ context.Context, sinceMs int64) ([]*domain.Position, error) {
	return s.filter(func(p *domain.Position) bool {
		return p.Status == domain.PositionStatusClosed && p.ClosedAtMs != nil && *p.ClosedAtMs >= sinceMs
	}), nil
}

func (s *PositionStore) filter(keep func(*domain.Position) bool) []*domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, p := range s.data {
		if keep(p) {
			result = append(result, clonePosition(p))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].OpenedAtMs != result[j].OpenedAtMs {
			return result[i].OpenedAtMs > result[j].OpenedAtMs
		}
		return result[i].PositionID < result[j].PositionID
	})

	return result
}

// clonePosition deep-copies a position including its pointer fields.
func clonePosition(p *domain.Position) *domain.Position {
	copied := *p
	copied.ExitPrice = cloneFloat(p.ExitPrice)
	copied.ExitValueUSD = cloneFloat(p.ExitValueUSD)
	copied.PnLUSD = cloneFloat(p.PnLUSD)
	copied.PnLPct = cloneFloat(p.PnLPct)
	if p.ClosedAtMs != nil {
		v := *p.ClosedAtMs
		copied.ClosedAtMs = &v
	}
	return &copied
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

var _ storage.PositionStore = (*PositionStore)(nil)
