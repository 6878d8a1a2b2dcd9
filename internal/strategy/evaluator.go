package strategy

import (
	"context"

	"copy-trader-lab/internal/domain"
)

// TradeDecision is one evaluator's answer to a candidate buy event.
type TradeDecision struct {
	Copy       bool
	SizeUSD    float64 // requested position size, already clamped to caps
	Confidence float64 // 0..1, evaluator's conviction beyond bare eligibility
	Reason     string  // rejection reason, or a short note on acceptance
}

// ExitDecision is one evaluator's answer for an open position.
// SellFraction is the fraction of the remaining amount to sell; 1 closes.
type ExitDecision struct {
	Exit         bool
	SellFraction float64
	Reason       string
	Type         string // one of the domain.ExitReason* codes
	Tag          string // annotation tag recorded on partial exits, "" otherwise
}

// Evaluator is one strategy variant. Implementations are registered once at
// startup; the arbiter iterates the registry and never dispatches by name.
type Evaluator interface {
	// Name returns the variant constant, e.g. domain.StrategySmartMoney.
	Name() string

	// Config returns the variant's policy bundle.
	Config() domain.StrategyConfig

	// EvaluateTrade decides whether to copy an observed buy, and at what
	// size. Pure with respect to portfolio state: it reads the supplied
	// snapshot and never mutates anything.
	EvaluateTrade(ctx context.Context, ev *domain.TransactionEvent, w *domain.Wallet, state *domain.PortfolioState) TradeDecision

	// ExitSignal applies the variant's exit rules to an open position at
	// the given price. nowMs is the evaluation time.
	ExitSignal(p *domain.Position, currentPrice float64, nowMs int64) ExitDecision
}

// hold returns a non-exit decision.
func hold() ExitDecision {
	return ExitDecision{}
}

// reject returns a non-copy decision carrying the failed check.
func reject(reason string) TradeDecision {
	return TradeDecision{Reason: reason}
}
