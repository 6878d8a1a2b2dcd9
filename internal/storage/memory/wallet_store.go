package memory

import (
	"context"
	"sort"
	"sync"

	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletStore.
type WalletStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Wallet // keyed by address
}

// NewWalletStore creates a new in-memory wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{
		data: make(map[string]*domain.Wallet),
	}
}

// Upsert inserts or replaces a wallet record.
func (s *WalletStore) Upsert(_ context.Context, w *domain.Wallet) error {
	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *w
	s.data[w.Address] = &copied
	return nil
}

// GetByAddress retrieves a wallet. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByAddress(_ context.Context, address string) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copied := *w
	return &copied, nil
}

// GetByStatus retrieves all wallets with the given status, ordered by address.
func (s *WalletStore) GetByStatus(_ context.Context, status domain.WalletStatus) ([]*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Wallet
	for _, w := range s.data {
		if w.Status == status {
			copied := *w
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// SetStatus toggles a wallet's status. Returns ErrNotFound if not exists.
func (s *WalletStore) SetStatus(_ context.Context, address string, status domain.WalletStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.data[address]
	if !exists {
		return storage.ErrNotFound
	}

	w.Status = status
	return nil
}

var _ storage.WalletStore = (*WalletStore)(nil)
