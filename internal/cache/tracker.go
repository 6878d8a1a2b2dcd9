package cache

import "sync"

// tradeMark is one observed buy or sell of a token.
type tradeMark struct {
	Wallet      string
	TimestampMs int64
}

// tokenActivity is the per-token record held by the tracker.
type tokenActivity struct {
	FirstSeenMs int64
	Buys        []tradeMark
	Sells       []tradeMark
}

// RecentTradeTracker remembers which wallets recently bought or sold each
// token. It feeds the momentum evaluator's coordinated-buyer check, the
// copycat token-age check, the source-wallet exit signal and the
// trend-reversal exit rule. Token entries are evicted least-recently-used;
// marks older than the window are pruned on write.
type RecentTradeTracker struct {
	mu       sync.Mutex
	tokens   *LRU
	windowMs int64
}

// NewRecentTradeTracker creates a tracker bounded to capacity tokens,
// keeping marks for windowMs milliseconds.
func NewRecentTradeTracker(capacity int, windowMs int64) *RecentTradeTracker {
	return &RecentTradeTracker{
		tokens:   NewLRU(capacity),
		windowMs: windowMs,
	}
}

// RecordBuy records a buy of token by wallet at nowMs.
func (t *RecentTradeTracker) RecordBuy(token, wallet string, nowMs int64) {
	t.record(token, wallet, nowMs, true)
}

// RecordSell records a sell of token by wallet at nowMs.
func (t *RecentTradeTracker) RecordSell(token, wallet string, nowMs int64) {
	t.record(token, wallet, nowMs, false)
}

func (t *RecentTradeTracker) record(token, wallet string, nowMs int64, buy bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	act := t.activity(token, nowMs)
	mark := tradeMark{Wallet: wallet, TimestampMs: nowMs}
	if buy {
		act.Buys = append(prune(act.Buys, nowMs-t.windowMs), mark)
	} else {
		act.Sells = append(prune(act.Sells, nowMs-t.windowMs), mark)
	}
	t.tokens.Put(token, act)
}

// DistinctBuyers returns the number of distinct wallets that bought token
// within the window ending at nowMs.
func (t *RecentTradeTracker) DistinctBuyers(token string, nowMs int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.tokens.Get(token)
	if !ok {
		return 0
	}
	return distinct(v.(*tokenActivity).Buys, nowMs-t.windowMs)
}

// DistinctBuyersExcluding returns the number of distinct wallets other than
// wallet that bought token within the window ending at nowMs. Used when the
// caller accounts for wallet's own buy separately.
func (t *RecentTradeTracker) DistinctBuyersExcluding(token, wallet string, nowMs int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.tokens.Get(token)
	if !ok {
		return 0
	}
	seen := make(map[string]struct{})
	for _, m := range v.(*tokenActivity).Buys {
		if m.TimestampMs >= nowMs-t.windowMs && m.Wallet != wallet {
			seen[m.Wallet] = struct{}{}
		}
	}
	return len(seen)
}

// DistinctSellers returns the number of distinct wallets that sold token
// within the window ending at nowMs.
func (t *RecentTradeTracker) DistinctSellers(token string, nowMs int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.tokens.Get(token)
	if !ok {
		return 0
	}
	return distinct(v.(*tokenActivity).Sells, nowMs-t.windowMs)
}

// HasSoldSince reports whether wallet sold token at or after sinceMs.
func (t *RecentTradeTracker) HasSoldSince(token, wallet string, sinceMs int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.tokens.Get(token)
	if !ok {
		return false
	}
	for _, m := range v.(*tokenActivity).Sells {
		if m.Wallet == wallet && m.TimestampMs >= sinceMs {
			return true
		}
	}
	return false
}

// FirstSeenMs returns when the tracker first saw token.
// The second return is false for unknown tokens.
func (t *RecentTradeTracker) FirstSeenMs(token string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.tokens.Get(token)
	if !ok {
		return 0, false
	}
	return v.(*tokenActivity).FirstSeenMs, true
}

// activity returns the existing record for token or creates one.
// Caller holds t.mu.
func (t *RecentTradeTracker) activity(token string, nowMs int64) *tokenActivity {
	if v, ok := t.tokens.Get(token); ok {
		return v.(*tokenActivity)
	}
	return &tokenActivity{FirstSeenMs: nowMs}
}

// prune drops marks older than cutoffMs, keeping order.
func prune(marks []tradeMark, cutoffMs int64) []tradeMark {
	kept := marks[:0]
	for _, m := range marks {
		if m.TimestampMs >= cutoffMs {
			kept = append(kept, m)
		}
	}
	return kept
}

// distinct counts unique wallets among marks at or after cutoffMs.
func distinct(marks []tradeMark, cutoffMs int64) int {
	seen := make(map[string]struct{}, len(marks))
	for _, m := range marks {
		if m.TimestampMs >= cutoffMs {
			seen[m.Wallet] = struct{}{}
		}
	}
	return len(seen)
}
