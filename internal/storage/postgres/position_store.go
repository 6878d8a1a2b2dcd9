package postgres

import (
	"context"
	"fmt"

	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	position_id, token_address, token_symbol, chain, strategy,
	source_wallet, source_tx_hash,
	entry_price, entry_value_usd, opened_at_ms,
	amount, realized_usd, annotation, peak_price, status,
	exit_price, exit_value_usd, pnl_usd, pnl_pct, exit_reason, closed_at_ms
`

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(ctx context.Context, p *domain.Position) error {
	query := `
		INSERT INTO positions (` + positionColumns + `) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21
		)
	`

	_, err := s.pool.Exec(ctx, query,
		p.PositionID, p.TokenAddress, p.TokenSymbol, p.Chain, p.Strategy,
		p.SourceWallet, p.SourceTxHash,
		p.EntryPrice, p.EntryValueUSD, p.OpenedAtMs,
		p.Amount, p.RealizedUSD, p.Annotation, p.PeakPrice, string(p.Status),
		p.ExitPrice, p.ExitValueUSD, p.PnLUSD, p.PnLPct, p.ExitReason, p.ClosedAtMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Update rewrites a position's mutable state. Returns ErrNotFound if not exists.
func (s *PositionStore) Update(ctx context.Context, p *domain.Position) error {
	query := `
		UPDATE positions SET
			amount = $2, realized_usd = $3, annotation = $4, peak_price = $5, status = $6,
			exit_price = $7, exit_value_usd = $8, pnl_usd = $9, pnl_pct = $10,
			exit_reason = $11, closed_at_ms = $12
		WHERE position_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		p.PositionID,
		p.Amount, p.RealizedUSD, p.Annotation, p.PeakPrice, string(p.Status),
		p.ExitPrice, p.ExitValueUSD, p.PnLUSD, p.PnLPct,
		p.ExitReason, p.ClosedAtMs,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, positionID string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE position_id = $1`

	row := s.pool.QueryRow(ctx, query, positionID)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// GetOpen retrieves open positions, newest first.
func (s *PositionStore) GetOpen(ctx context.Context, strategy string) ([]*domain.Position, error) {
	return s.getByStatus(ctx, domain.PositionStatusOpen, strategy)
}

// GetClosed retrieves closed positions, newest first.
func (s *PositionStore) GetClosed(ctx context.Context, strategy string) ([]*domain.Position, error) {
	return s.getByStatus(ctx, domain.PositionStatusClosed, strategy)
}

func (s *PositionStore) getByStatus(ctx context.Context, status domain.PositionStatus, strategy string) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status = $1`
	args := []any{string(status)}
	if strategy != "" {
		query += ` AND strategy = $2`
		args = append(args, strategy)
	}
	query += ` ORDER BY opened_at_ms DESC, position_id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query positions by status: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetClosedSince retrieves positions closed at or after sinceMs.
func (s *PositionStore) GetClosedSince(ctx context.Context, sinceMs int64) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions
		WHERE status = $1 AND closed_at_ms >= $2
		ORDER BY opened_at_ms DESC, position_id ASC`

	rows, err := s.pool.Query(ctx, query, string(domain.PositionStatusClosed), sinceMs)
	if err != nil {
		return nil, fmt.Errorf("query closed positions since: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// rowScanner abstracts pgx.Row and pgx.Rows for scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (*domain.Position, error) {
	var p domain.Position
	var status string

	err := row.Scan(
		&p.PositionID, &p.TokenAddress, &p.TokenSymbol, &p.Chain, &p.Strategy,
		&p.SourceWallet, &p.SourceTxHash,
		&p.EntryPrice, &p.EntryValueUSD, &p.OpenedAtMs,
		&p.Amount, &p.RealizedUSD, &p.Annotation, &p.PeakPrice, &status,
		&p.ExitPrice, &p.ExitValueUSD, &p.PnLUSD, &p.PnLPct, &p.ExitReason, &p.ClosedAtMs,
	)
	if err != nil {
		return nil, err
	}

	p.Status = domain.PositionStatus(status)
	return &p, nil
}

type pgxRows interface {
	rowScanner
	Next() bool
	Err() error
}

func scanPositions(rows pgxRows) ([]*domain.Position, error) {
	var result []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return result, nil
}
