package strategy

import (
	"fmt"
	"strings"

	"copy-trader-lab/internal/domain"
)

// timeDecayMoveThreshold is the absolute price movement below which a
// position held past its max hold time is considered dead money. Positions
// moving more than this are left to the price-based rules.
const timeDecayMoveThreshold = 0.05

// evaluateExit applies the variant exit rules shared by every strategy, in
// order: stop loss, tiered take profit, single take profit, trailing stop,
// time decay. First match wins.
func evaluateExit(cfg *domain.StrategyConfig, p *domain.Position, currentPrice float64, nowMs int64) ExitDecision {
	if p.EntryPrice <= 0 {
		return hold()
	}
	ratio := currentPrice / p.EntryPrice

	if cfg.StopLossPct > 0 && ratio <= 1-cfg.StopLossPct {
		return ExitDecision{
			Exit:         true,
			SellFraction: 1,
			Type:         domain.ExitReasonStopLoss,
			Reason:       fmt.Sprintf("price %.6g down %.1f%% from entry %.6g", currentPrice, (1-ratio)*100, p.EntryPrice),
		}
	}

	if len(cfg.ProfitTiers) > 0 {
		for _, tier := range cfg.ProfitTiers {
			if ratio < tier.Multiple || TierFired(p.Annotation, tier.Multiple) {
				continue
			}
			return ExitDecision{
				Exit:         true,
				SellFraction: tier.SellFraction,
				Type:         domain.ExitReasonProfitTier,
				Tag:          TierTag(tier.Multiple),
				Reason:       fmt.Sprintf("hit %gx tier at price %.6g", tier.Multiple, currentPrice),
			}
		}
	} else if cfg.TakeProfitPct > 0 && ratio >= 1+cfg.TakeProfitPct {
		return ExitDecision{
			Exit:         true,
			SellFraction: 1,
			Type:         domain.ExitReasonTakeProfit,
			Reason:       fmt.Sprintf("price %.6g up %.1f%% from entry %.6g", currentPrice, (ratio-1)*100, p.EntryPrice),
		}
	}

	if cfg.TrailingStopPct > 0 {
		peak := p.PeakPrice
		if currentPrice > peak {
			peak = currentPrice
		}
		armed := peak >= p.EntryPrice*(1+cfg.TrailingActivationPct)
		if armed && currentPrice <= peak*(1-cfg.TrailingStopPct) {
			return ExitDecision{
				Exit:         true,
				SellFraction: 1,
				Type:         domain.ExitReasonTrailingStop,
				Reason:       fmt.Sprintf("price %.6g retraced %.1f%% from peak %.6g", currentPrice, (1-currentPrice/peak)*100, peak),
			}
		}
	}

	if cfg.MaxHoldMs > 0 && nowMs-p.OpenedAtMs >= cfg.MaxHoldMs {
		move := ratio - 1
		if move < 0 {
			move = -move
		}
		if move < timeDecayMoveThreshold {
			return ExitDecision{
				Exit:         true,
				SellFraction: 1,
				Type:         domain.ExitReasonTimeDecay,
				Reason:       fmt.Sprintf("held %dms past horizon with %.1f%% movement", nowMs-p.OpenedAtMs, move*100),
			}
		}
	}

	return hold()
}

// TierTag formats the annotation tag recorded when a take-profit tier fires.
func TierTag(multiple float64) string {
	return fmt.Sprintf("tier:%g", multiple)
}

// TierFired reports whether the annotation already records the tier for the
// given multiple. Annotation entries are joined by ";".
func TierFired(annotation string, multiple float64) bool {
	tag := TierTag(multiple)
	for _, part := range strings.Split(annotation, ";") {
		if strings.TrimSpace(part) == tag {
			return true
		}
	}
	return false
}
