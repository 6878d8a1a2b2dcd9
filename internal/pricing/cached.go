package pricing

import (
	"context"
	"time"

	"copy-trader-lab/internal/cache"
)

// cachedQuote is an LRU entry with its fetch time.
type cachedQuote struct {
	Quote     *Quote
	FetchedMs int64
}

// CachedSource memoizes quotes from an inner source for a TTL, bounded by an
// LRU on token|chain. The exit evaluator asks for the same token every cycle;
// this keeps it from hammering the price service.
type CachedSource struct {
	inner Source
	lru   *cache.LRU
	ttlMs int64
	now   func() int64
}

// NewCachedSource wraps inner with a capacity-bounded TTL cache.
func NewCachedSource(inner Source, capacity int, ttl time.Duration) *CachedSource {
	return &CachedSource{
		inner: inner,
		lru:   cache.NewLRU(capacity),
		ttlMs: ttl.Milliseconds(),
		now:   func() int64 { return time.Now().UnixMilli() },
	}
}

// Quote returns a cached quote when fresh, otherwise fetches through.
func (s *CachedSource) Quote(ctx context.Context, tokenAddress, chainID string) (*Quote, error) {
	key := chainID + "|" + tokenAddress
	nowMs := s.now()

	if v, ok := s.lru.Get(key); ok {
		entry := v.(*cachedQuote)
		if nowMs-entry.FetchedMs < s.ttlMs {
			return entry.Quote, nil
		}
	}

	quote, err := s.inner.Quote(ctx, tokenAddress, chainID)
	if err != nil {
		return nil, err
	}
	s.lru.Put(key, &cachedQuote{Quote: quote, FetchedMs: nowMs})
	return quote, nil
}

var _ Source = (*CachedSource)(nil)
