package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"copy-trader-lab/internal/cache"
	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/idhash"
	"copy-trader-lab/internal/pricing"
	"copy-trader-lab/internal/storage"
	"copy-trader-lab/internal/strategy"
)

// ErrDuplicateEvent is returned by Open when the event was already applied.
// Callers treat it as a skip, not a failure.
var ErrDuplicateEvent = errors.New("event already applied")

// Ledger owns the only mutation path for positions: open, partial exit,
// close. Every accepted event is applied at most once; redeliveries are
// absorbed by the dedup cache and, behind it, the store's unique key.
type Ledger struct {
	positions storage.PositionStore
	dedup     *cache.LRU
	prices    *pricing.Resolver
	logger    *log.Logger
}

// New creates a Ledger. dedupCapacity bounds the redelivery window; oldest
// keys are evicted first. Logger may be nil.
func New(positions storage.PositionStore, prices *pricing.Resolver, dedupCapacity int, logger *log.Logger) *Ledger {
	return &Ledger{
		positions: positions,
		dedup:     cache.NewLRU(dedupCapacity),
		prices:    prices,
		logger:    logger,
	}
}

// Seen reports whether the event was already applied, without touching
// recency.
func (l *Ledger) Seen(ev *domain.TransactionEvent) bool {
	return l.dedup.Contains(idhash.DedupKey(ev.WalletAddress, ev.TxHash))
}

// Open books a new paper position for an approved candidate. The entry
// price is resolved through the pricing fallback chain, so the amount
// denominator is always positive. Returns ErrDuplicateEvent when the event
// was applied before.
func (l *Ledger) Open(ctx context.Context, ev *domain.TransactionEvent, cand *strategy.TradeDecision, strategyName string) (*domain.Position, error) {
	key := idhash.DedupKey(ev.WalletAddress, ev.TxHash)
	if l.dedup.Contains(key) {
		return nil, ErrDuplicateEvent
	}

	entryPrice := l.prices.EntryPrice(ctx, ev)
	if entryPrice <= 0 {
		return nil, fmt.Errorf("resolved entry price %g for %s is not positive", entryPrice, ev.TokenAddress)
	}

	p := &domain.Position{
		PositionID:    idhash.ComputePositionID(ev.WalletAddress, ev.TxHash, strategyName),
		TokenAddress:  ev.TokenAddress,
		TokenSymbol:   ev.TokenSymbol,
		Chain:         ev.Chain,
		Strategy:      strategyName,
		SourceWallet:  ev.WalletAddress,
		SourceTxHash:  ev.TxHash,
		EntryPrice:    entryPrice,
		EntryValueUSD: cand.SizeUSD,
		Amount:        cand.SizeUSD / entryPrice,
		PeakPrice:     entryPrice,
		OpenedAtMs:    ev.TimestampMs,
		Status:        domain.PositionStatusOpen,
	}

	if err := l.positions.Insert(ctx, p); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Redelivery that outlived the cache window.
			l.dedup.Put(key, struct{}{})
			return nil, ErrDuplicateEvent
		}
		return nil, fmt.Errorf("insert position: %w", err)
	}
	l.dedup.Put(key, struct{}{})

	l.logf("opened %s: %s %s size %.2f @ %.6g", strategyName, p.TokenSymbol, p.PositionID[:12], p.EntryValueUSD, p.EntryPrice)
	return p, nil
}

// ApplyExit executes an exit decision against an open position. A fraction
// below 1 reduces the amount and accrues realized proceeds; a fraction of 1
// (or a remainder too small to matter) closes the position and books PnL.
func (l *Ledger) ApplyExit(ctx context.Context, p *domain.Position, currentPrice float64, dec strategy.ExitDecision, nowMs int64) error {
	if !dec.Exit || !p.IsOpen() {
		return nil
	}
	f := dec.SellFraction
	if f <= 0 {
		return fmt.Errorf("exit %s with non-positive fraction %g", dec.Type, f)
	}
	if f > 1 {
		f = 1
	}

	if f < 1 {
		proceeds := p.Amount * f * currentPrice
		p.RealizedUSD += proceeds
		p.Amount *= 1 - f
		if dec.Tag != "" {
			p.Annotation += dec.Tag + ";"
		}
		if err := l.positions.Update(ctx, p); err != nil {
			return fmt.Errorf("apply partial exit: %w", err)
		}
		l.logf("partial exit %s %s: sold %.0f%% for %.2f (%s)", p.Strategy, p.TokenSymbol, f*100, proceeds, dec.Type)
		return nil
	}

	exitValue := p.Amount * currentPrice
	pnl := p.RealizedUSD + exitValue - p.EntryValueUSD
	pnlPct := 0.0
	if p.EntryValueUSD > 0 {
		pnlPct = pnl / p.EntryValueUSD
	}

	p.Amount = 0
	p.Status = domain.PositionStatusClosed
	p.ExitPrice = &currentPrice
	p.ExitValueUSD = &exitValue
	p.PnLUSD = &pnl
	p.PnLPct = &pnlPct
	p.ExitReason = dec.Type
	p.ClosedAtMs = &nowMs

	if err := l.positions.Update(ctx, p); err != nil {
		return fmt.Errorf("apply close: %w", err)
	}
	l.logf("closed %s %s: pnl %.2f (%.1f%%) reason %s", p.Strategy, p.TokenSymbol, pnl, pnlPct*100, dec.Type)
	return nil
}

// TouchPeak raises the position's tracked peak price when the current price
// exceeds it. Persisted so trailing stops survive restarts.
func (l *Ledger) TouchPeak(ctx context.Context, p *domain.Position, currentPrice float64) error {
	if !p.IsOpen() || currentPrice <= p.PeakPrice {
		return nil
	}
	p.PeakPrice = currentPrice
	if err := l.positions.Update(ctx, p); err != nil {
		return fmt.Errorf("update peak: %w", err)
	}
	return nil
}

func (l *Ledger) logf(format string, args ...any) {
	if l.logger != nil {
		l.logger.Printf(format, args...)
	}
}
