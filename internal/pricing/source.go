// Package pricing wraps the external price lookup collaborator and the
// fallback chain the engine needs when that collaborator fails: derive the
// price from the event's own value, then fall back to a per-chain floor.
package pricing

import (
	"context"
	"errors"
	"sync"
)

// Quote is one price observation for a token.
type Quote struct {
	Price       float64 `json:"price"`
	Source      string  `json:"source"`
	TimestampMs int64   `json:"timestamp"`
}

// ErrUnavailable is returned when a source has no usable price.
var ErrUnavailable = errors.New("price unavailable")

// Source supplies the current price for a token on a chain.
type Source interface {
	Quote(ctx context.Context, tokenAddress, chainID string) (*Quote, error)
}

// StaticSource serves prices from a fixed map, keyed by token address.
// Used by tests and the offline replay command.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// NewStaticSource creates a source over a copy of prices.
func NewStaticSource(prices map[string]float64) *StaticSource {
	copied := make(map[string]float64, len(prices))
	for k, v := range prices {
		copied[k] = v
	}
	return &StaticSource{prices: copied}
}

// Quote returns the mapped price or ErrUnavailable.
func (s *StaticSource) Quote(_ context.Context, tokenAddress, _ string) (*Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	price, ok := s.prices[tokenAddress]
	if !ok || price <= 0 {
		return nil, ErrUnavailable
	}
	return &Quote{Price: price, Source: "static"}, nil
}

// Set updates the price for a token.
func (s *StaticSource) Set(tokenAddress string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[tokenAddress] = price
}

var _ Source = (*StaticSource)(nil)
