package postgres

import (
	"context"
	"fmt"

	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

const walletColumns = `
	address, chain, strategy_tag, win_rate, total_pnl_usd,
	trade_count, win_count, status, first_seen_ms, last_seen_ms
`

// Upsert inserts or replaces a wallet record.
func (s *WalletStore) Upsert(ctx context.Context, w *domain.Wallet) error {
	query := `
		INSERT INTO wallets (` + walletColumns + `) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (address) DO UPDATE SET
			chain = EXCLUDED.chain,
			strategy_tag = EXCLUDED.strategy_tag,
			win_rate = EXCLUDED.win_rate,
			total_pnl_usd = EXCLUDED.total_pnl_usd,
			trade_count = EXCLUDED.trade_count,
			win_count = EXCLUDED.win_count,
			status = EXCLUDED.status,
			first_seen_ms = EXCLUDED.first_seen_ms,
			last_seen_ms = EXCLUDED.last_seen_ms
	`

	_, err := s.pool.Exec(ctx, query,
		w.Address, w.Chain, w.StrategyTag, w.WinRate, w.TotalPnLUSD,
		w.TradeCount, w.WinCount, string(w.Status), w.FirstSeenMs, w.LastSeenMs,
	)
	if err != nil {
		return fmt.Errorf("upsert wallet: %w", err)
	}
	return nil
}

// GetByAddress retrieves a wallet. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByAddress(ctx context.Context, address string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE address = $1`

	var w domain.Wallet
	var status string
	err := s.pool.QueryRow(ctx, query, address).Scan(
		&w.Address, &w.Chain, &w.StrategyTag, &w.WinRate, &w.TotalPnLUSD,
		&w.TradeCount, &w.WinCount, &status, &w.FirstSeenMs, &w.LastSeenMs,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet by address: %w", err)
	}

	w.Status = domain.WalletStatus(status)
	return &w, nil
}

// GetByStatus retrieves all wallets with the given status, ordered by address.
func (s *WalletStore) GetByStatus(ctx context.Context, status domain.WalletStatus) ([]*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE status = $1 ORDER BY address ASC`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("query wallets by status: %w", err)
	}
	defer rows.Close()

	var result []*domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		var st string
		if err := rows.Scan(
			&w.Address, &w.Chain, &w.StrategyTag, &w.WinRate, &w.TotalPnLUSD,
			&w.TradeCount, &w.WinCount, &st, &w.FirstSeenMs, &w.LastSeenMs,
		); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		w.Status = domain.WalletStatus(st)
		result = append(result, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallets: %w", err)
	}
	return result, nil
}

// SetStatus toggles a wallet's status. Returns ErrNotFound if not exists.
func (s *WalletStore) SetStatus(ctx context.Context, address string, status domain.WalletStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE wallets SET status = $2 WHERE address = $1`,
		address, string(status),
	)
	if err != nil {
		return fmt.Errorf("set wallet status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
