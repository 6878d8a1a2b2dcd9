package engine

import (
	"context"
	"fmt"
	"time"

	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/strategy"
)

// portfolioState reads the current book into a point-in-time snapshot.
// Capital is starting capital plus realized PnL over all closed positions;
// open positions count at their entry value.
func (e *Engine) portfolioState(ctx context.Context) (*domain.PortfolioState, error) {
	open, err := e.opts.Positions.GetOpen(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}
	closed, err := e.opts.Positions.GetClosed(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load closed positions: %w", err)
	}

	state := &domain.PortfolioState{
		StartingCapitalUSD:  e.opts.StartingCapitalUSD,
		OpenValueByStrategy: make(map[string]float64),
		OpenCountByStrategy: make(map[string]int),
		OpenValueByToken:    make(map[string]float64),
		OpenValueByChain:    make(map[string]float64),
	}

	for _, p := range open {
		state.OpenValueTotalUSD += p.EntryValueUSD
		state.OpenValueByStrategy[p.Strategy] += p.EntryValueUSD
		state.OpenCountByStrategy[p.Strategy]++
		state.OpenValueByToken[p.TokenAddress] += p.EntryValueUSD
		state.OpenValueByChain[p.Chain] += p.EntryValueUSD
	}

	realized := 0.0
	for _, p := range closed {
		if p.PnLUSD != nil {
			realized += *p.PnLUSD
		}
	}
	state.CurrentCapitalUSD = e.opts.StartingCapitalUSD + realized

	// Today's realized PnL comes from a bounded store scan, not a filter
	// over the full history.
	today, err := e.opts.Positions.GetClosedSince(ctx, utcMidnightMs(e.now()))
	if err != nil {
		return nil, fmt.Errorf("load positions closed today: %w", err)
	}
	for _, p := range today {
		if p.PnLUSD != nil {
			state.RealizedTodayUSD += *p.PnLUSD
		}
	}
	return state, nil
}

// strategyPerformance aggregates one strategy's closed positions.
func (e *Engine) strategyPerformance(ctx context.Context, name string) (domain.StrategyPerformance, error) {
	closed, err := e.opts.Positions.GetClosed(ctx, name)
	if err != nil {
		return domain.StrategyPerformance{}, fmt.Errorf("load closed positions for %s: %w", name, err)
	}
	return strategy.ComputePerformance(name, closed, e.allocations[name]), nil
}

// captureSnapshots writes one analytics row per strategy. Skipped when no
// snapshot store is wired.
func (e *Engine) captureSnapshots(ctx context.Context) error {
	if e.opts.Snapshots == nil {
		return nil
	}

	nowMs := e.now()
	for _, name := range e.strategyNames("") {
		perf, err := e.strategyPerformance(ctx, name)
		if err != nil {
			return err
		}
		open, err := e.opts.Positions.GetOpen(ctx, name)
		if err != nil {
			return fmt.Errorf("load open positions for %s: %w", name, err)
		}
		openValue := 0.0
		for _, p := range open {
			openValue += p.EntryValueUSD
		}

		snap := &domain.StrategySnapshot{
			Strategy:      name,
			CapturedAtMs:  nowMs,
			Trades:        perf.Trades,
			Wins:          perf.Wins,
			Losses:        perf.Losses,
			OpenPositions: len(open),
			WinRate:       perf.WinRate,
			TotalPnLUSD:   perf.TotalPnLUSD,
			OpenValueUSD:  openValue,
			ROI:           perf.ROI,
			ProfitFactor:  perf.ProfitFactor,
		}
		if err := e.opts.Snapshots.Insert(ctx, snap); err != nil {
			return fmt.Errorf("insert snapshot for %s: %w", name, err)
		}
	}
	return nil
}

// strategyNames expands an optional filter into the configured variants.
func (e *Engine) strategyNames(filter string) []string {
	if filter != "" {
		return []string{filter}
	}
	names := make([]string, 0, len(e.opts.Configs))
	for _, cfg := range e.opts.Configs {
		names = append(names, cfg.Variant)
	}
	return names
}

// utcMidnightMs returns the start of the UTC day containing tsMs.
func utcMidnightMs(tsMs int64) int64 {
	t := time.UnixMilli(tsMs).UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.UnixMilli()
}
