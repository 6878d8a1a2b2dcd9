package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/storage"
	"copy-trader-lab/internal/storage/postgres"
)

func TestWalletStore_UpsertAndStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewWalletStore(pool)
	ctx := context.Background()

	w := &domain.Wallet{
		Address:     "Wallet111111111111111111111111",
		Chain:       domain.ChainSolana,
		StrategyTag: "smart_money",
		WinRate:     0.62,
		TotalPnLUSD: 15000,
		TradeCount:  50,
		WinCount:    31,
		Status:      domain.WalletStatusActive,
		FirstSeenMs: 1000,
		LastSeenMs:  2000,
	}
	require.NoError(t, store.Upsert(ctx, w))

	// Upsert replaces
	w.WinRate = 0.70
	require.NoError(t, store.Upsert(ctx, w))

	got, err := store.GetByAddress(ctx, w.Address)
	require.NoError(t, err)
	assert.Equal(t, 0.70, got.WinRate)
	assert.Equal(t, domain.WalletStatusActive, got.Status)

	require.NoError(t, store.SetStatus(ctx, w.Address, domain.WalletStatusPaused))
	paused, err := store.GetByStatus(ctx, domain.WalletStatusPaused)
	require.NoError(t, err)
	assert.Len(t, paused, 1)

	err = store.SetStatus(ctx, "unknown", domain.WalletStatusArchived)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetByAddress(ctx, "unknown")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCounterStore_Roundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewCounterStore(pool)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Set(ctx, "last_cycle", 1234))
	v, err := store.Get(ctx, "last_cycle")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), v)

	n, err := store.Increment(ctx, "trades", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = store.Increment(ctx, "trades", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
