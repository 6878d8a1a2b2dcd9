// Package engine is the service layer over the decision core: it walks event
// batches through the arbiter and risk gate into the ledger, runs the
// position-management cycle, and summarizes performance and risk.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"copy-trader-lab/internal/arbiter"
	"copy-trader-lab/internal/cache"
	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/exits"
	"copy-trader-lab/internal/ledger"
	"copy-trader-lab/internal/observability"
	"copy-trader-lab/internal/risk"
	"copy-trader-lab/internal/storage"
)

// Options configures an Engine. Positions, Wallets, Arbiter, Gate, Ledger
// and Exits are required; the rest may be nil.
type Options struct {
	StartingCapitalUSD float64
	Configs            []domain.StrategyConfig

	Positions storage.PositionStore
	Wallets   storage.WalletStore
	Counters  storage.CounterStore
	Snapshots storage.SnapshotStore

	Arbiter  *arbiter.Arbiter
	Adaptive *arbiter.Adaptive // when set, used instead of Arbiter for selection
	Gate     *risk.Gate
	Ledger   *ledger.Ledger
	Exits    *exits.Evaluator
	Trades   *cache.RecentTradeTracker

	Metrics *observability.Metrics
	Logger  *log.Logger

	// Now overrides the engine clock (cycle counters, the daily-loss
	// midnight boundary). Replays drive it from event timestamps.
	// Nil means time.Now.
	Now func() int64
}

// Engine drives the trade-decision pipeline. The risk gate's capital check
// and the ledger's open read portfolio state captured per event; concurrent
// batches racing on one strategy's allocation can both see stale figures
// (two-phase check). The scheduler keeps ingestion single-flight, which is
// the only guard.
type Engine struct {
	opts        Options
	allocations map[string]float64
	logger      *log.Logger
	now         func() int64
}

// New creates an Engine.
func New(opts Options) *Engine {
	allocations := make(map[string]float64, len(opts.Configs))
	for _, cfg := range opts.Configs {
		allocations[cfg.Variant] = cfg.AllocationUSD
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Engine{
		opts:        opts,
		allocations: allocations,
		logger:      opts.Logger,
		now:         now,
	}
}

// ProcessEvents runs one ingestion batch. Returns the number of positions
// opened. One failing event never aborts the rest of the batch.
func (e *Engine) ProcessEvents(ctx context.Context, events []*domain.TransactionEvent) (int, error) {
	opened := 0
	for _, ev := range events {
		ok, err := e.processEvent(ctx, ev)
		if err != nil {
			e.logf("event %s/%s: %v", ev.WalletAddress, ev.TxHash, err)
			e.countMetric(func(m *observability.Metrics) { m.EventErrors.Inc() })
			continue
		}
		if ok {
			opened++
		}
	}

	e.countMetric(func(m *observability.Metrics) {
		m.EventsProcessed.Add(float64(len(events)))
		m.TradesOpened.Add(float64(opened))
	})
	if e.opts.Counters != nil {
		if _, err := e.opts.Counters.Increment(ctx, "events_processed", int64(len(events))); err != nil {
			e.logf("counter events_processed: %v", err)
		}
		if _, err := e.opts.Counters.Increment(ctx, "trades_opened", int64(opened)); err != nil {
			e.logf("counter trades_opened: %v", err)
		}
		if err := e.opts.Counters.Set(ctx, "last_ingest_cycle_ms", e.now()); err != nil {
			e.logf("counter last_ingest_cycle_ms: %v", err)
		}
	}
	return opened, nil
}

// processEvent runs one event through wallet lookup, arbitration, the risk
// gate and the ledger. Returns true when a position was opened.
func (e *Engine) processEvent(ctx context.Context, ev *domain.TransactionEvent) (bool, error) {
	if ev.Action == domain.ActionSell {
		// Sells never open positions, but they feed the source-sell and
		// trend-reversal exit signals.
		if e.opts.Trades != nil {
			e.opts.Trades.RecordSell(ev.TokenAddress, ev.WalletAddress, ev.TimestampMs)
		}
		return false, nil
	}

	if e.opts.Ledger.Seen(ev) {
		return false, nil
	}

	wallet, err := e.opts.Wallets.GetByAddress(ctx, ev.WalletAddress)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.recordBuy(ev)
			return false, nil
		}
		return false, fmt.Errorf("wallet lookup: %w", err)
	}

	state, err := e.portfolioState(ctx)
	if err != nil {
		return false, fmt.Errorf("portfolio state: %w", err)
	}

	cand := e.choose(ctx, ev, wallet, state)
	if cand == nil {
		e.recordBuy(ev)
		return false, nil
	}

	approval := e.opts.Gate.Check(&risk.Proposed{
		Strategy:      cand.Strategy,
		TokenAddress:  ev.TokenAddress,
		Chain:         ev.Chain,
		SizeUSD:       cand.Decision.SizeUSD,
		AllocationUSD: e.allocations[cand.Strategy],
	}, state)
	if !approval.Approved {
		// Expected control flow, not a failure.
		e.logf("risk gate rejected %s for %s: %s", cand.Strategy, ev.TokenSymbol, approval.RejectionReason)
		e.countMetric(func(m *observability.Metrics) { m.RiskRejections.Inc() })
		e.recordBuy(ev)
		return false, nil
	}

	if _, err := e.opts.Ledger.Open(ctx, ev, &cand.Decision, cand.Strategy); err != nil {
		if errors.Is(err, ledger.ErrDuplicateEvent) {
			return false, nil
		}
		return false, err
	}
	e.recordBuy(ev)
	e.countMetric(func(m *observability.Metrics) { m.TradesByStrategy.WithLabelValues(cand.Strategy).Inc() })
	return true, nil
}

func (e *Engine) choose(ctx context.Context, ev *domain.TransactionEvent, w *domain.Wallet, state *domain.PortfolioState) *arbiter.Candidate {
	if e.opts.Adaptive != nil {
		roi := 0.0
		if state.StartingCapitalUSD > 0 {
			roi = (state.CurrentCapitalUSD - state.StartingCapitalUSD) / state.StartingCapitalUSD
		}
		return e.opts.Adaptive.Choose(ctx, ev, w, state, roi)
	}
	return e.opts.Arbiter.Choose(ctx, ev, w, state)
}

func (e *Engine) recordBuy(ev *domain.TransactionEvent) {
	if e.opts.Trades != nil && ev.Action == domain.ActionBuy {
		e.opts.Trades.RecordBuy(ev.TokenAddress, ev.WalletAddress, ev.TimestampMs)
	}
}

// ManagePositions runs one exit cycle over the open book, then captures a
// per-strategy snapshot for analytics.
func (e *Engine) ManagePositions(ctx context.Context) (exits.CycleResult, error) {
	res, err := e.opts.Exits.Cycle(ctx)
	if err != nil {
		return res, err
	}

	e.countMetric(func(m *observability.Metrics) {
		m.PositionsClosed.Add(float64(res.Closed))
		m.PartialExits.Add(float64(res.Partials))
	})
	if e.opts.Counters != nil {
		if err := e.opts.Counters.Set(ctx, "last_manage_cycle_ms", e.now()); err != nil {
			e.logf("counter last_manage_cycle_ms: %v", err)
		}
	}
	if err := e.captureSnapshots(ctx); err != nil {
		e.logf("capture snapshots: %v", err)
	}
	return res, nil
}

// Performance aggregates closed positions. Empty strategyName means every
// registered strategy.
func (e *Engine) Performance(ctx context.Context, strategyName string) ([]domain.StrategyPerformance, error) {
	names := e.strategyNames(strategyName)

	out := make([]domain.StrategyPerformance, 0, len(names))
	for _, name := range names {
		perf, err := e.strategyPerformance(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, perf)
	}
	return out, nil
}

// RiskStatus summarizes portfolio health for the service layer.
func (e *Engine) RiskStatus(ctx context.Context) (domain.RiskStatus, error) {
	state, err := e.portfolioState(ctx)
	if err != nil {
		return domain.RiskStatus{}, err
	}

	utilization := 0.0
	if state.CurrentCapitalUSD > 0 {
		utilization = state.OpenValueTotalUSD / state.CurrentCapitalUSD
	}
	drawdown := state.Drawdown()

	limits := e.opts.Gate.Limits()
	score := riskScore(drawdown, utilization, state, limits)

	status := domain.RiskStatus{
		Score:              score,
		Drawdown:           drawdown,
		CapitalUtilization: utilization,
		RealizedTodayUSD:   state.RealizedTodayUSD,
		EmergencyStop:      limits.EmergencyStop,
	}
	switch {
	case limits.EmergencyStop || score >= 75:
		status.Level = domain.RiskLevelCritical
	case score >= 50:
		status.Level = domain.RiskLevelHigh
	case score >= 25:
		status.Level = domain.RiskLevelModerate
	default:
		status.Level = domain.RiskLevelLow
	}
	return status, nil
}

// SetEmergencyStop flips the gate's emergency stop.
func (e *Engine) SetEmergencyStop(on bool) {
	e.opts.Gate.SetEmergencyStop(on)
	e.logf("emergency stop set to %v", on)
}

// SetWalletStatus toggles a registry wallet's tracking status.
func (e *Engine) SetWalletStatus(ctx context.Context, address string, status domain.WalletStatus) error {
	return e.opts.Wallets.SetStatus(ctx, address, status)
}

// riskScore folds drawdown, utilization and the daily loss into 0..100.
// Each component saturates at its configured limit.
func riskScore(drawdown, utilization float64, state *domain.PortfolioState, limits domain.RiskLimits) float64 {
	score := 0.0
	if limits.MaxDrawdown > 0 {
		score += 40 * clamp01(drawdown/limits.MaxDrawdown)
	}
	score += 30 * clamp01(utilization)
	if limits.MaxDailyLossFraction > 0 && state.StartingCapitalUSD > 0 {
		loss := -state.RealizedTodayUSD / state.StartingCapitalUSD
		score += 30 * clamp01(loss/limits.MaxDailyLossFraction)
	}
	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

func (e *Engine) countMetric(fn func(*observability.Metrics)) {
	if e.opts.Metrics != nil {
		fn(e.opts.Metrics)
	}
}
