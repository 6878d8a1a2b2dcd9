package clickhouse

import (
	"context"
	"fmt"

	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
// Snapshots are analytics rows: append-only, keyed by (strategy, captured_at).
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert appends a snapshot row.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.StrategySnapshot) error {
	if snap == nil || snap.Strategy == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO strategy_snapshots (
			strategy, captured_at_ms,
			trades, wins, losses, open_positions,
			win_rate, total_pnl_usd, open_value_usd, roi, profit_factor
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		snap.Strategy, snap.CapturedAtMs,
		int32(snap.Trades), int32(snap.Wins), int32(snap.Losses), int32(snap.OpenPositions),
		snap.WinRate, snap.TotalPnLUSD, snap.OpenValueUSD, snap.ROI, snap.ProfitFactor,
	)
	if err != nil {
		return fmt.Errorf("insert strategy snapshot: %w", err)
	}
	return nil
}

// GetLatest retrieves the most recent snapshot for a strategy.
func (s *SnapshotStore) GetLatest(ctx context.Context, strategy string) (*domain.StrategySnapshot, error) {
	query := `
		SELECT strategy, captured_at_ms,
			trades, wins, losses, open_positions,
			win_rate, total_pnl_usd, open_value_usd, roi, profit_factor
		FROM strategy_snapshots
		WHERE strategy = ?
		ORDER BY captured_at_ms DESC
		LIMIT 1
	`

	var snap domain.StrategySnapshot
	var trades, wins, losses, open int32

	row := s.conn.QueryRow(ctx, query, strategy)
	err := row.Scan(
		&snap.Strategy, &snap.CapturedAtMs,
		&trades, &wins, &losses, &open,
		&snap.WinRate, &snap.TotalPnLUSD, &snap.OpenValueUSD, &snap.ROI, &snap.ProfitFactor,
	)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	snap.Trades = int(trades)
	snap.Wins = int(wins)
	snap.Losses = int(losses)
	snap.OpenPositions = int(open)
	return &snap, nil
}
