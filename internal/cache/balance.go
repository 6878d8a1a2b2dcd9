package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNoBalanceSource is returned on a cache miss when no fetcher is wired.
var ErrNoBalanceSource = errors.New("no balance source configured")

// BalanceFunc fetches the current USD balance of a wallet from an external
// source (chain RPC or an indexer).
type BalanceFunc func(ctx context.Context, wallet, chain string) (float64, error)

// balanceEntry is a cached balance with its fetch time.
type balanceEntry struct {
	BalanceUSD float64
	FetchedMs  int64
}

// BalanceCache is a TTL + LRU cache over a BalanceFunc. The whale-tracker
// evaluator reads it on every candidate event, so lookups must not hit the
// external source more than once per wallet per TTL. The fetch runs outside
// any lock: a slow RPC never blocks lookups for other wallets, at the cost
// of concurrent misses on one wallet fetching more than once.
type BalanceCache struct {
	lru   *LRU
	ttlMs int64
	fetch BalanceFunc
	now   func() int64
}

// NewBalanceCache creates a cache bounded to capacity wallets with entries
// valid for ttlMs milliseconds.
func NewBalanceCache(capacity int, ttlMs int64, fetch BalanceFunc) *BalanceCache {
	return &BalanceCache{
		lru:   NewLRU(capacity),
		ttlMs: ttlMs,
		fetch: fetch,
		now:   func() int64 { return time.Now().UnixMilli() },
	}
}

// BalanceUSD returns the wallet's balance, fetching through on miss or
// expiry. A fetch error is returned only when no stale value exists.
func (c *BalanceCache) BalanceUSD(ctx context.Context, wallet, chain string) (float64, error) {
	key := chain + "|" + wallet
	nowMs := c.now()

	if v, ok := c.lru.Get(key); ok {
		entry := v.(*balanceEntry)
		if nowMs-entry.FetchedMs < c.ttlMs {
			return entry.BalanceUSD, nil
		}
		// Expired: refetch, fall back to the stale value on error.
		if c.fetch == nil {
			return entry.BalanceUSD, nil
		}
		balance, err := c.fetch(ctx, wallet, chain)
		if err != nil {
			return entry.BalanceUSD, nil
		}
		c.lru.Put(key, &balanceEntry{BalanceUSD: balance, FetchedMs: nowMs})
		return balance, nil
	}

	if c.fetch == nil {
		return 0, ErrNoBalanceSource
	}
	balance, err := c.fetch(ctx, wallet, chain)
	if err != nil {
		return 0, err
	}
	c.lru.Put(key, &balanceEntry{BalanceUSD: balance, FetchedMs: nowMs})
	return balance, nil
}

// Set stores a balance directly, bypassing the fetcher. Used when the
// ingestion layer already knows the wallet's holdings.
func (c *BalanceCache) Set(wallet, chain string, balanceUSD float64) {
	c.lru.Put(chain+"|"+wallet, &balanceEntry{BalanceUSD: balanceUSD, FetchedMs: c.now()})
}
