package storage

import (
	"context"

	"copy-trader-lab/internal/domain"
)

// PositionStore provides access to paper-position storage.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
	Insert(ctx context.Context, p *domain.Position) error

	// Update rewrites a position's mutable state. Returns ErrNotFound if not exists.
	Update(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, positionID string) (*domain.Position, error)

	// GetOpen retrieves open positions, newest first. Empty strategy means all strategies.
	GetOpen(ctx context.Context, strategy string) ([]*domain.Position, error)

	// GetClosed retrieves closed positions, newest first. Empty strategy means all strategies.
	GetClosed(ctx context.Context, strategy string) ([]*domain.Position, error)

	// GetClosedSince retrieves positions closed at or after sinceMs.
	GetClosedSince(ctx context.Context, sinceMs int64) ([]*domain.Position, error)
}

// WalletStore provides read access to the wallet registry plus the status
// toggles triggered externally. Records are owned by the discovery service.
type WalletStore interface {
	// Upsert inserts or replaces a wallet record.
	Upsert(ctx context.Context, w *domain.Wallet) error

	// GetByAddress retrieves a wallet. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.Wallet, error)

	// GetByStatus retrieves all wallets with the given status.
	GetByStatus(ctx context.Context, status domain.WalletStatus) ([]*domain.Wallet, error)

	// SetStatus toggles a wallet's status. Returns ErrNotFound if not exists.
	SetStatus(ctx context.Context, address string, status domain.WalletStatus) error
}

// CounterStore provides small key/value counters used for observability
// (cycle timestamps, totals). Not part of decision logic.
type CounterStore interface {
	// Set stores a counter value, creating the key if needed.
	Set(ctx context.Context, key string, value int64) error

	// Increment adds delta to a counter and returns the new value.
	// Missing keys start at zero.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Get retrieves a counter. Returns ErrNotFound if the key was never set.
	Get(ctx context.Context, key string) (int64, error)
}

// SnapshotStore provides append-only access to per-cycle strategy
// performance snapshots (analytics storage).
type SnapshotStore interface {
	// Insert appends a snapshot row.
	Insert(ctx context.Context, s *domain.StrategySnapshot) error

	// GetLatest retrieves the most recent snapshot for a strategy.
	// Returns ErrNotFound when the strategy has no snapshots.
	GetLatest(ctx context.Context, strategy string) (*domain.StrategySnapshot, error)
}
