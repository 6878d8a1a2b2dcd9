package exits

import (
	"context"
	"fmt"
	"log"
	"time"

	"copy-trader-lab/internal/cache"
	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/ledger"
	"copy-trader-lab/internal/pricing"
	"copy-trader-lab/internal/storage"
	"copy-trader-lab/internal/strategy"
)

// Config holds the strategy-agnostic overrides the evaluator applies around
// each strategy's own exit rules.
type Config struct {
	// StaleAfterMs is the sanity horizon: positions held longer with less
	// than StaleMoveThreshold price movement are closed.
	StaleAfterMs       int64
	StaleMoveThreshold float64

	// ReversalSellerCount is how many distinct wallets must have recently
	// sold a token before open positions in it are closed defensively.
	ReversalSellerCount int

	// Now overrides the cycle clock. Replays drive it from event
	// timestamps so hold-time rules judge positions against stream time,
	// not wall time. Nil means time.Now.
	Now func() int64
}

// DefaultConfig returns the stock overrides: a one-week staleness horizon
// at 5% movement, and three recent sellers for a reversal.
func DefaultConfig() Config {
	return Config{
		StaleAfterMs:        7 * 24 * 3600 * 1000,
		StaleMoveThreshold:  0.05,
		ReversalSellerCount: 3,
	}
}

// CycleResult summarizes one management pass over the open book.
type CycleResult struct {
	Evaluated int
	Closed    int
	Partials  int
	Errors    int
}

// Evaluator walks every open position each cycle, resolves a current price
// and applies exit rules in strict priority order: source-wallet sell,
// strategy rules, staleness, trend reversal. First match wins; decisions go
// straight to the ledger. A failing position is logged and skipped so the
// rest of the book is still managed.
type Evaluator struct {
	cfg        Config
	positions  storage.PositionStore
	evaluators map[string]strategy.Evaluator
	trades     *cache.RecentTradeTracker
	prices     *pricing.Resolver
	book       *ledger.Ledger
	logger     *log.Logger
	now        func() int64
}

// New creates an Evaluator. Logger may be nil.
func New(cfg Config, positions storage.PositionStore, evaluators map[string]strategy.Evaluator, trades *cache.RecentTradeTracker, prices *pricing.Resolver, book *ledger.Ledger, logger *log.Logger) *Evaluator {
	now := cfg.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Evaluator{
		cfg:        cfg,
		positions:  positions,
		evaluators: evaluators,
		trades:     trades,
		prices:     prices,
		book:       book,
		logger:     logger,
		now:        now,
	}
}

// Cycle manages every open position once.
func (e *Evaluator) Cycle(ctx context.Context) (CycleResult, error) {
	open, err := e.positions.GetOpen(ctx, "")
	if err != nil {
		return CycleResult{}, fmt.Errorf("load open positions: %w", err)
	}

	var res CycleResult
	nowMs := e.now()
	for _, p := range open {
		res.Evaluated++
		closed, partial, err := e.managePosition(ctx, p, nowMs)
		if err != nil {
			res.Errors++
			e.logf("manage %s %s: %v", p.Strategy, p.PositionID[:12], err)
			continue
		}
		if closed {
			res.Closed++
		}
		if partial {
			res.Partials++
		}
	}
	return res, nil
}

func (e *Evaluator) managePosition(ctx context.Context, p *domain.Position, nowMs int64) (closed, partial bool, err error) {
	price := e.prices.CurrentPrice(ctx, p.TokenAddress, p.Chain, p.EntryPrice)
	if err := e.book.TouchPeak(ctx, p, price); err != nil {
		return false, false, err
	}

	dec := e.decide(p, price, nowMs)
	if !dec.Exit {
		return false, false, nil
	}
	if err := e.book.ApplyExit(ctx, p, price, dec, nowMs); err != nil {
		return false, false, err
	}
	return dec.SellFraction >= 1, dec.SellFraction < 1, nil
}

// decide applies the priority ladder.
func (e *Evaluator) decide(p *domain.Position, price float64, nowMs int64) strategy.ExitDecision {
	// 1. The wallet we copied has sold this token since entry.
	if e.trades.HasSoldSince(p.TokenAddress, p.SourceWallet, p.OpenedAtMs) {
		return strategy.ExitDecision{
			Exit:         true,
			SellFraction: 1,
			Type:         domain.ExitReasonSourceSell,
			Reason:       fmt.Sprintf("source wallet %s sold %s", p.SourceWallet, p.TokenSymbol),
		}
	}

	// 2. The owning strategy's own rules.
	if eval, ok := e.evaluators[p.Strategy]; ok {
		if dec := eval.ExitSignal(p, price, nowMs); dec.Exit {
			return dec
		}
	} else {
		e.logf("no evaluator registered for strategy %s, using overrides only", p.Strategy)
	}

	// 3. Staleness: held far beyond the horizon and going nowhere.
	if e.cfg.StaleAfterMs > 0 && nowMs-p.OpenedAtMs >= e.cfg.StaleAfterMs && p.EntryPrice > 0 {
		move := price/p.EntryPrice - 1
		if move < 0 {
			move = -move
		}
		if move < e.cfg.StaleMoveThreshold {
			return strategy.ExitDecision{
				Exit:         true,
				SellFraction: 1,
				Type:         domain.ExitReasonStale,
				Reason:       fmt.Sprintf("held %dms with %.1f%% movement", nowMs-p.OpenedAtMs, move*100),
			}
		}
	}

	// 4. Trend reversal: too many tracked wallets dumping the token.
	if e.cfg.ReversalSellerCount > 0 {
		if sellers := e.trades.DistinctSellers(p.TokenAddress, nowMs); sellers >= e.cfg.ReversalSellerCount {
			return strategy.ExitDecision{
				Exit:         true,
				SellFraction: 1,
				Type:         domain.ExitReasonTrendReversal,
				Reason:       fmt.Sprintf("%d wallets sold %s recently", sellers, p.TokenSymbol),
			}
		}
	}

	return strategy.ExitDecision{}
}

func (e *Evaluator) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
