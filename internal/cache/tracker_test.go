package cache

import (
	"context"
	"errors"
	"testing"
)

func TestRecentTradeTracker_DistinctBuyers(t *testing.T) {
	tracker := NewRecentTradeTracker(100, 60_000)

	tracker.RecordBuy("tok", "w1", 1000)
	tracker.RecordBuy("tok", "w2", 2000)
	tracker.RecordBuy("tok", "w1", 3000) // same wallet again

	if got := tracker.DistinctBuyers("tok", 3000); got != 2 {
		t.Errorf("DistinctBuyers = %d, want 2", got)
	}
	if got := tracker.DistinctBuyers("other", 3000); got != 0 {
		t.Errorf("DistinctBuyers(unknown) = %d, want 0", got)
	}
}

func TestRecentTradeTracker_DistinctBuyersExcluding(t *testing.T) {
	tracker := NewRecentTradeTracker(100, 60_000)

	tracker.RecordBuy("tok", "w1", 1000)
	tracker.RecordBuy("tok", "w1", 2000)
	tracker.RecordBuy("tok", "w2", 3000)

	if got := tracker.DistinctBuyersExcluding("tok", "w1", 3000); got != 1 {
		t.Errorf("DistinctBuyersExcluding(w1) = %d, want 1", got)
	}
	if got := tracker.DistinctBuyersExcluding("tok", "w3", 3000); got != 2 {
		t.Errorf("DistinctBuyersExcluding(w3) = %d, want 2", got)
	}
	if got := tracker.DistinctBuyersExcluding("other", "w1", 3000); got != 0 {
		t.Errorf("DistinctBuyersExcluding(unknown) = %d, want 0", got)
	}
}

func TestRecentTradeTracker_WindowExpiry(t *testing.T) {
	tracker := NewRecentTradeTracker(100, 10_000)

	tracker.RecordBuy("tok", "w1", 1000)
	tracker.RecordBuy("tok", "w2", 20_000)

	// At t=25000 the w1 buy (t=1000) is outside the 10s window.
	if got := tracker.DistinctBuyers("tok", 25_000); got != 1 {
		t.Errorf("DistinctBuyers after expiry = %d, want 1", got)
	}
}

func TestRecentTradeTracker_HasSoldSince(t *testing.T) {
	tracker := NewRecentTradeTracker(100, 60_000)

	tracker.RecordSell("tok", "w1", 5000)

	if !tracker.HasSoldSince("tok", "w1", 4000) {
		t.Error("Expected sell at 5000 to match since=4000")
	}
	if tracker.HasSoldSince("tok", "w1", 6000) {
		t.Error("Sell before since must not match")
	}
	if tracker.HasSoldSince("tok", "w2", 0) {
		t.Error("Different wallet must not match")
	}
}

func TestRecentTradeTracker_FirstSeen(t *testing.T) {
	tracker := NewRecentTradeTracker(100, 60_000)

	tracker.RecordBuy("tok", "w1", 1234)
	tracker.RecordBuy("tok", "w2", 9999)

	ts, ok := tracker.FirstSeenMs("tok")
	if !ok || ts != 1234 {
		t.Errorf("FirstSeenMs = %d, %v; want 1234, true", ts, ok)
	}
	if _, ok := tracker.FirstSeenMs("unknown"); ok {
		t.Error("Unknown token reported as seen")
	}
}

func TestBalanceCache_FetchOncePerTTL(t *testing.T) {
	fetches := 0
	cache := NewBalanceCache(10, 60_000, func(_ context.Context, _, _ string) (float64, error) {
		fetches++
		return 5000, nil
	})
	now := int64(1_000_000)
	cache.now = func() int64 { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		balance, err := cache.BalanceUSD(ctx, "w1", "solana")
		if err != nil {
			t.Fatalf("BalanceUSD failed: %v", err)
		}
		if balance != 5000 {
			t.Fatalf("Balance = %f, want 5000", balance)
		}
	}
	if fetches != 1 {
		t.Errorf("Fetches = %d, want 1 within TTL", fetches)
	}

	now += 120_000 // past TTL
	if _, err := cache.BalanceUSD(ctx, "w1", "solana"); err != nil {
		t.Fatalf("BalanceUSD after expiry failed: %v", err)
	}
	if fetches != 2 {
		t.Errorf("Fetches = %d, want 2 after expiry", fetches)
	}
}

func TestBalanceCache_FetchRunsUnlocked(t *testing.T) {
	// The fetcher may touch the cache itself (an indexer response carrying
	// several wallets). Holding a cache-wide lock across the fetch would
	// deadlock here.
	var cache *BalanceCache
	cache = NewBalanceCache(10, 60_000, func(_ context.Context, _, _ string) (float64, error) {
		cache.Set("w2", "solana", 1234)
		return 5000, nil
	})

	ctx := context.Background()
	balance, err := cache.BalanceUSD(ctx, "w1", "solana")
	if err != nil {
		t.Fatalf("BalanceUSD failed: %v", err)
	}
	if balance != 5000 {
		t.Fatalf("Balance = %f, want 5000", balance)
	}
	sideloaded, err := cache.BalanceUSD(ctx, "w2", "solana")
	if err != nil {
		t.Fatalf("BalanceUSD(w2) failed: %v", err)
	}
	if sideloaded != 1234 {
		t.Errorf("Sideloaded balance = %f, want 1234", sideloaded)
	}
}

func TestBalanceCache_StaleOnFetchError(t *testing.T) {
	calls := 0
	cache := NewBalanceCache(10, 1000, func(_ context.Context, _, _ string) (float64, error) {
		calls++
		if calls > 1 {
			return 0, errors.New("rpc down")
		}
		return 777, nil
	})
	now := int64(0)
	cache.now = func() int64 { return now }

	ctx := context.Background()
	if _, err := cache.BalanceUSD(ctx, "w1", "solana"); err != nil {
		t.Fatalf("Initial fetch failed: %v", err)
	}

	now += 5000 // expired, refetch fails
	balance, err := cache.BalanceUSD(ctx, "w1", "solana")
	if err != nil {
		t.Fatalf("Expected stale fallback, got error: %v", err)
	}
	if balance != 777 {
		t.Errorf("Stale balance = %f, want 777", balance)
	}
}
