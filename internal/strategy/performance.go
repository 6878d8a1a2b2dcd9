package strategy

import (
	"math"

	"github.com/samber/lo"

	"copy-trader-lab/internal/domain"
)

// ComputePerformance aggregates a strategy's closed positions. Positions
// missing a recorded PnL (should not happen for closed rows) count as zero.
func ComputePerformance(name string, closed []*domain.Position, allocationUSD float64) domain.StrategyPerformance {
	perf := domain.StrategyPerformance{Strategy: name, Trades: len(closed)}
	if len(closed) == 0 {
		return perf
	}

	pnl := func(p *domain.Position) float64 {
		if p.PnLUSD == nil {
			return 0
		}
		return *p.PnLUSD
	}

	wins := lo.Filter(closed, func(p *domain.Position, _ int) bool { return pnl(p) > 0 })
	losses := lo.Filter(closed, func(p *domain.Position, _ int) bool { return pnl(p) <= 0 })

	perf.Wins = len(wins)
	perf.Losses = len(losses)
	perf.WinRate = float64(perf.Wins) / float64(perf.Trades)
	perf.TotalPnLUSD = lo.SumBy(closed, pnl)

	grossWin := lo.SumBy(wins, pnl)
	grossLoss := lo.SumBy(losses, pnl)

	if perf.Wins > 0 {
		perf.AvgWinUSD = grossWin / float64(perf.Wins)
	}
	if perf.Losses > 0 {
		perf.AvgLossUSD = grossLoss / float64(perf.Losses)
	}
	if allocationUSD > 0 {
		perf.ROI = perf.TotalPnLUSD / allocationUSD
	}
	if grossLoss != 0 {
		perf.ProfitFactor = grossWin / math.Abs(grossLoss)
	} else if grossWin > 0 {
		perf.ProfitFactor = math.Inf(1)
	}
	return perf
}
