package arbiter

import (
	"context"
	"log"

	"github.com/samber/lo"

	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/strategy"
)

// Specificity weights. Behavioral constants: tuned against recorded event
// streams, do not re-derive.
const (
	weightSmartMoneyLarge = 2.0
	weightWhaleTracker    = 1.5
	weightMomentum        = 1.3
	weightCopycat         = 0.8
	weightDefault         = 1.0
)

// Candidate is one evaluator's accepted decision plus its arbitration score.
type Candidate struct {
	Strategy string
	Decision strategy.TradeDecision
	Score    float64
}

// Arbiter runs every registered evaluator against one event and picks at
// most one candidate by score. A panicking evaluator is logged and skipped;
// it must not take the other variants down with it.
type Arbiter struct {
	evaluators map[string]strategy.Evaluator
	logger     *log.Logger
}

// New creates an Arbiter over the evaluator registry. Logger may be nil.
func New(evaluators map[string]strategy.Evaluator, logger *log.Logger) *Arbiter {
	return &Arbiter{evaluators: evaluators, logger: logger}
}

// Evaluator returns the registered evaluator for a strategy name.
func (a *Arbiter) Evaluator(name string) (strategy.Evaluator, bool) {
	ev, ok := a.evaluators[name]
	return ev, ok
}

// Evaluators returns the registry.
func (a *Arbiter) Evaluators() map[string]strategy.Evaluator {
	return a.evaluators
}

// Choose returns the best-scoring accepting candidate for the event, or nil
// when no evaluator accepts or every score is zero.
func (a *Arbiter) Choose(ctx context.Context, ev *domain.TransactionEvent, w *domain.Wallet, state *domain.PortfolioState) *Candidate {
	candidates := a.collect(ctx, ev, w, state)
	return pick(candidates)
}

// collect gathers accepting decisions from every evaluator with per-variant
// panic isolation.
func (a *Arbiter) collect(ctx context.Context, ev *domain.TransactionEvent, w *domain.Wallet, state *domain.PortfolioState) []Candidate {
	candidates := make([]Candidate, 0, len(a.evaluators))
	for name, eval := range a.evaluators {
		dec, ok := a.evaluateSafe(ctx, name, eval, ev, w, state)
		if !ok || !dec.Copy {
			continue
		}
		candidates = append(candidates, Candidate{
			Strategy: name,
			Decision: dec,
			Score:    dec.SizeUSD * specificityWeight(name, ev),
		})
	}
	return candidates
}

func (a *Arbiter) evaluateSafe(ctx context.Context, name string, eval strategy.Evaluator, ev *domain.TransactionEvent, w *domain.Wallet, state *domain.PortfolioState) (dec strategy.TradeDecision, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if a.logger != nil {
				a.logger.Printf("evaluator %s panicked on tx %s: %v", name, ev.TxHash, r)
			}
			ok = false
		}
	}()
	return eval.EvaluateTrade(ctx, ev, w, state), true
}

// pick selects the maximum-score candidate. Ties and all-zero scores yield
// no trade: ambiguity is treated as a skip, not a coin flip.
func pick(candidates []Candidate) *Candidate {
	if len(candidates) == 0 {
		return nil
	}
	best := lo.MaxBy(candidates, func(a, b Candidate) bool { return a.Score > b.Score })
	if best.Score <= 0 {
		return nil
	}
	for _, c := range candidates {
		if c.Strategy != best.Strategy && c.Score == best.Score {
			return nil
		}
	}
	return &best
}

// specificityWeight returns the per-strategy arbitration multiplier.
// smart_money earns its boost only on large trades.
func specificityWeight(name string, ev *domain.TransactionEvent) float64 {
	switch name {
	case domain.StrategySmartMoney:
		if ev.TradeValueUSD() >= strategy.LargeTradeUSD {
			return weightSmartMoneyLarge
		}
		return weightDefault
	case domain.StrategyWhaleTracker:
		return weightWhaleTracker
	case domain.StrategyMomentum:
		return weightMomentum
	case domain.StrategyCopycat:
		return weightCopycat
	default:
		return weightDefault
	}
}
