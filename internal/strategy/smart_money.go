package strategy

import (
	"context"
	"fmt"

	"copy-trader-lab/internal/domain"
)

// LargeTradeUSD is the trade value above which a smart-money wallet's buy is
// treated as a high-conviction signal. The arbiter uses the same threshold
// when weighting smart-money candidates.
const LargeTradeUSD = 10_000

// smartMoney copies wallets with a proven profit history. Beyond the common
// gate it requires a minimum rolling total PnL, and raises its confidence on
// large trades.
type smartMoney struct {
	base
}

var _ Evaluator = (*smartMoney)(nil)

func (s *smartMoney) EvaluateTrade(_ context.Context, ev *domain.TransactionEvent, w *domain.Wallet, state *domain.PortfolioState) TradeDecision {
	if dec, ok := s.commonReject(ev, w, state); !ok {
		return dec
	}
	if s.cfg.MinWalletPnLUSD != nil && w.TotalPnLUSD < *s.cfg.MinWalletPnLUSD {
		return reject(fmt.Sprintf("wallet pnl %.2f below %.2f", w.TotalPnLUSD, *s.cfg.MinWalletPnLUSD))
	}

	confidence := 0.5
	note := "proven wallet"
	if ev.TradeValueUSD() >= LargeTradeUSD {
		confidence = 0.9
		note = "proven wallet, large trade"
	}
	return s.accept(w, state, confidence, note)
}

func (s *smartMoney) ExitSignal(p *domain.Position, currentPrice float64, nowMs int64) ExitDecision {
	return evaluateExit(&s.cfg, p, currentPrice, nowMs)
}
