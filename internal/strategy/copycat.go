package strategy

import (
	"context"
	"fmt"

	"copy-trader-lab/internal/cache"
	"copy-trader-lab/internal/domain"
)

// copycat is the catch-all variant: per-wallet mirroring with loose entry
// requirements but small sizing. It avoids freshly launched tokens by
// requiring the tracker to have seen the token for a minimum age.
type copycat struct {
	base
	trades *cache.RecentTradeTracker
}

var _ Evaluator = (*copycat)(nil)

func (s *copycat) EvaluateTrade(_ context.Context, ev *domain.TransactionEvent, w *domain.Wallet, state *domain.PortfolioState) TradeDecision {
	if dec, ok := s.commonReject(ev, w, state); !ok {
		return dec
	}

	if s.cfg.MinTokenAgeMs != nil {
		firstSeen, seen := s.trades.FirstSeenMs(ev.TokenAddress)
		if !seen {
			return reject("token not seen before")
		}
		if age := ev.TimestampMs - firstSeen; age < *s.cfg.MinTokenAgeMs {
			return reject(fmt.Sprintf("token age %dms below %dms", age, *s.cfg.MinTokenAgeMs))
		}
	}

	return s.accept(w, state, 0.2, "mirrored buy")
}

func (s *copycat) ExitSignal(p *domain.Position, currentPrice float64, nowMs int64) ExitDecision {
	return evaluateExit(&s.cfg, p, currentPrice, nowMs)
}
