package strategy

import (
	"context"
	"fmt"

	"copy-trader-lab/internal/cache"
	"copy-trader-lab/internal/domain"
)

// momentum copies into tokens that several tracked wallets are buying at
// once. The distinct-buyer count comes from the shared trade tracker, whose
// window is sized from this variant's BuyerWindowMs at wiring time.
type momentum struct {
	base
	trades *cache.RecentTradeTracker
}

var _ Evaluator = (*momentum)(nil)

func (s *momentum) EvaluateTrade(_ context.Context, ev *domain.TransactionEvent, w *domain.Wallet, state *domain.PortfolioState) TradeDecision {
	if dec, ok := s.commonReject(ev, w, state); !ok {
		return dec
	}

	minBuyers := 0
	if s.cfg.MinDistinctBuyers != nil {
		minBuyers = *s.cfg.MinDistinctBuyers
	}
	// The current event's buy is recorded by the caller after evaluation,
	// so count this wallet here and exclude its earlier buys from the
	// tracker count, or a repeat buyer would count twice.
	buyers := s.trades.DistinctBuyersExcluding(ev.TokenAddress, ev.WalletAddress, ev.TimestampMs) + 1
	if buyers < minBuyers {
		return reject(fmt.Sprintf("%d distinct buyers, need %d", buyers, minBuyers))
	}

	confidence := 0.4
	if minBuyers > 0 && buyers >= 2*minBuyers {
		confidence = 0.8
	}
	return s.accept(w, state, confidence, fmt.Sprintf("%d coordinated buyers", buyers))
}

func (s *momentum) ExitSignal(p *domain.Position, currentPrice float64, nowMs int64) ExitDecision {
	return evaluateExit(&s.cfg, p, currentPrice, nowMs)
}
