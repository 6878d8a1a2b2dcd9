package pricing

import (
	"context"
	"log"

	"copy-trader-lab/internal/chain"
	"copy-trader-lab/internal/domain"
)

// Resolver turns possibly-missing price data into a guaranteed-positive
// price. Order: live source, then the event's own data (unit price, or
// value/amount), then the chain floor. It never returns zero and never
// propagates a source error.
type Resolver struct {
	source Source
	logger *log.Logger
}

// NewResolver creates a Resolver over source. Logger may be nil.
func NewResolver(source Source, logger *log.Logger) *Resolver {
	return &Resolver{source: source, logger: logger}
}

// EntryPrice resolves the price at which a copied buy is booked.
func (r *Resolver) EntryPrice(ctx context.Context, ev *domain.TransactionEvent) float64 {
	if quote, err := r.source.Quote(ctx, ev.TokenAddress, ev.Chain); err == nil && quote.Price > 0 {
		return quote.Price
	}

	if ev.PriceUSD > 0 {
		return ev.PriceUSD
	}
	if ev.ValueUSD > 0 && ev.Amount > 0 {
		return ev.ValueUSD / ev.Amount
	}

	floor := chain.FloorPriceUSD(ev.Chain)
	r.logf("no price for %s on %s, using chain floor %g", ev.TokenAddress, ev.Chain, floor)
	return floor
}

// CurrentPrice resolves the price used to evaluate an open position.
// When the source fails, the supplied fallback (normally the entry price,
// or the tracked peak) is used so exit math stays well-defined.
func (r *Resolver) CurrentPrice(ctx context.Context, tokenAddress, chainID string, fallback float64) float64 {
	if quote, err := r.source.Quote(ctx, tokenAddress, chainID); err == nil && quote.Price > 0 {
		return quote.Price
	}

	if fallback > 0 {
		r.logf("no price for %s on %s, holding at fallback %g", tokenAddress, chainID, fallback)
		return fallback
	}
	return chain.FloorPriceUSD(chainID)
}

func (r *Resolver) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}
