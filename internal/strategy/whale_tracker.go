package strategy

import (
	"context"
	"fmt"

	"copy-trader-lab/internal/cache"
	"copy-trader-lab/internal/domain"
)

// whaleTracker copies wallets holding a large balance, on the theory that
// size moves markets. It also skips thin pools where a whale-sized entry
// would be the liquidity.
type whaleTracker struct {
	base
	balances *cache.BalanceCache
}

var _ Evaluator = (*whaleTracker)(nil)

func (s *whaleTracker) EvaluateTrade(ctx context.Context, ev *domain.TransactionEvent, w *domain.Wallet, state *domain.PortfolioState) TradeDecision {
	if dec, ok := s.commonReject(ev, w, state); !ok {
		return dec
	}

	var balance float64
	if s.cfg.WhaleBalanceUSD != nil {
		b, err := s.balances.BalanceUSD(ctx, ev.WalletAddress, ev.Chain)
		if err != nil {
			return reject(fmt.Sprintf("balance lookup failed: %v", err))
		}
		if b < *s.cfg.WhaleBalanceUSD {
			return reject(fmt.Sprintf("balance %.0f below whale threshold %.0f", b, *s.cfg.WhaleBalanceUSD))
		}
		balance = b
	}
	// Unknown liquidity is a degraded-but-handled path: the watcher could
	// not report it, so the check is skipped rather than failed.
	if s.cfg.MinLiquidityUSD != nil && ev.LiquidityUSD > 0 && ev.LiquidityUSD < *s.cfg.MinLiquidityUSD {
		return reject(fmt.Sprintf("pool liquidity %.0f below %.0f", ev.LiquidityUSD, *s.cfg.MinLiquidityUSD))
	}

	confidence := 0.5
	if s.cfg.WhaleBalanceUSD != nil && *s.cfg.WhaleBalanceUSD > 0 && balance >= 2**s.cfg.WhaleBalanceUSD {
		confidence = 0.8
	}
	return s.accept(w, state, confidence, "whale wallet")
}

func (s *whaleTracker) ExitSignal(p *domain.Position, currentPrice float64, nowMs int64) ExitDecision {
	return evaluateExit(&s.cfg, p, currentPrice, nowMs)
}
