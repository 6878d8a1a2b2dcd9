package arbiter

import (
	"context"
	"log"
	"math"

	"copy-trader-lab/internal/domain"
)

// Adaptive-mode constants. The blend favors current eligibility over recent
// performance; the floor keeps cold or losing strategies from trading on
// eligibility alone.
const (
	performanceBlend = 0.4
	eligibilityBlend = 0.6
	combinedFloor    = 0.25

	portfolioDrawROI   = -0.2 // portfolio ROI below this halves sizing
	strongStrategyROI  = 0.1
	strongWinRate      = 0.6
	capitalHealthyMult = 1.25
	capitalWeakMult    = 0.5
)

// PerformanceFunc supplies a strategy's aggregate over its recent closed
// positions.
type PerformanceFunc func(ctx context.Context, strategyName string) (domain.StrategyPerformance, error)

// Adaptive wraps an Arbiter with performance-aware selection: candidate
// scores are blended with each strategy's recent results, a floor is applied
// to the winner, and the chosen size is rescaled by capital health.
type Adaptive struct {
	inner  *Arbiter
	perf   PerformanceFunc
	logger *log.Logger
}

// NewAdaptive creates an adaptive arbiter. Logger may be nil.
func NewAdaptive(inner *Arbiter, perf PerformanceFunc, logger *log.Logger) *Adaptive {
	return &Adaptive{inner: inner, perf: perf, logger: logger}
}

// Choose picks at most one candidate using the blended score
// 0.4*performance + 0.6*eligibility. The winner must clear the combined
// floor or no trade is placed. portfolioROI is realized PnL over starting
// capital for the whole book.
func (a *Adaptive) Choose(ctx context.Context, ev *domain.TransactionEvent, w *domain.Wallet, state *domain.PortfolioState, portfolioROI float64) *Candidate {
	candidates := a.inner.collect(ctx, ev, w, state)
	if len(candidates) == 0 {
		return nil
	}

	maxScore := 0.0
	for _, c := range candidates {
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}
	if maxScore <= 0 {
		return nil
	}

	perfByStrategy := make(map[string]domain.StrategyPerformance, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		perf, err := a.perf(ctx, c.Strategy)
		if err != nil {
			// Missing history scores as neutral, not disqualifying.
			if a.logger != nil {
				a.logger.Printf("performance lookup failed for %s: %v", c.Strategy, err)
			}
			perf = domain.StrategyPerformance{Strategy: c.Strategy}
		}
		perfByStrategy[c.Strategy] = perf

		eligibility := c.Score / maxScore
		c.Score = performanceBlend*performanceScore(perf) + eligibilityBlend*eligibility
	}

	best := pick(candidates)
	if best == nil || best.Score < combinedFloor {
		return nil
	}

	mult := capitalHealthMultiplier(portfolioROI, perfByStrategy[best.Strategy])
	best.Decision.SizeUSD *= mult
	return best
}

// performanceScore folds win rate, ROI and profit factor into 0..1.
// A strategy with no closed trades scores a neutral 0.5.
func performanceScore(perf domain.StrategyPerformance) float64 {
	if perf.Trades == 0 {
		return 0.5
	}
	roi := clamp01((perf.ROI + 0.5) / 1.0)
	pf := perf.ProfitFactor
	if math.IsInf(pf, 1) {
		pf = 3
	}
	factor := clamp01(pf / 3)
	return (perf.WinRate + roi + factor) / 3
}

// capitalHealthMultiplier shrinks sizing when the whole book is deep in
// drawdown and grows it when the chosen strategy is demonstrably hot.
func capitalHealthMultiplier(portfolioROI float64, perf domain.StrategyPerformance) float64 {
	if portfolioROI < portfolioDrawROI {
		return capitalWeakMult
	}
	if perf.Trades > 0 && perf.ROI > strongStrategyROI && perf.WinRate > strongWinRate {
		return capitalHealthyMult
	}
	return 1.0
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
