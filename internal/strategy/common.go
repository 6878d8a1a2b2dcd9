package strategy

import (
	"fmt"
	"math"

	"copy-trader-lab/internal/domain"
)

// Wallet-quality multiplier bounds. A wallet at the 50% win-rate midpoint
// scales the base size by 1.0; every point of win rate above or below moves
// the multiplier by 2x that distance.
const (
	qualityMultMin = 0.5
	qualityMultMax = 2.0

	confidenceMultMax = 1.5
)

// base carries the config and the checks every variant shares. Variants embed
// it and layer their own eligibility extras on top.
type base struct {
	cfg domain.StrategyConfig
}

func (b *base) Name() string                 { return b.cfg.Variant }
func (b *base) Config() domain.StrategyConfig { return b.cfg }

// commonReject runs the checks shared by all variants, in order. Returns a
// rejection decision and false when any check fails.
func (b *base) commonReject(ev *domain.TransactionEvent, w *domain.Wallet, state *domain.PortfolioState) (TradeDecision, bool) {
	if ev.Action != domain.ActionBuy {
		return reject("not a buy"), false
	}
	if w == nil {
		return reject("unknown wallet"), false
	}
	if !w.IsActive() {
		return reject(fmt.Sprintf("wallet status %s", w.Status)), false
	}
	if w.WinRate < b.cfg.MinWalletWinRate {
		return reject(fmt.Sprintf("win rate %.2f below %.2f", w.WinRate, b.cfg.MinWalletWinRate)), false
	}

	// Trade-size floor. With no price data at all we cannot value the
	// trade, so fall back to a raw token-amount floor instead of dividing
	// by a missing price.
	if v := ev.TradeValueUSD(); v > 0 {
		if v < b.cfg.MinTradeValueUSD {
			return reject(fmt.Sprintf("trade value %.2f below %.2f", v, b.cfg.MinTradeValueUSD)), false
		}
	} else if ev.Amount < b.cfg.NoPriceAmountFloor {
		return reject(fmt.Sprintf("no price data and amount %.2f below floor %.2f", ev.Amount, b.cfg.NoPriceAmountFloor)), false
	}

	if state.OpenCountByStrategy[b.cfg.Variant] >= b.cfg.MaxOpenPositions {
		return reject(fmt.Sprintf("open positions at cap %d", b.cfg.MaxOpenPositions)), false
	}
	if state.AvailableUSD(b.cfg.Variant, b.cfg.AllocationUSD) <= 0 {
		return reject("allocation exhausted"), false
	}
	return TradeDecision{}, true
}

// accept computes the final sized decision for a wallet that passed every
// check. Size is the base size scaled by wallet quality and confidence, then
// clamped to [0, min(maxPerTrade, availableCapital)].
func (b *base) accept(w *domain.Wallet, state *domain.PortfolioState, confidence float64, note string) TradeDecision {
	size := b.cfg.BasePositionUSD * qualityMultiplier(w.WinRate) * confidenceMultiplier(confidence)

	available := state.AvailableUSD(b.cfg.Variant, b.cfg.AllocationUSD)
	ceiling := math.Min(b.cfg.MaxPositionUSD, available)
	if size > ceiling {
		size = ceiling
	}
	if size <= 0 {
		return reject("no capital available for requested size")
	}
	return TradeDecision{Copy: true, SizeUSD: size, Confidence: confidence, Reason: note}
}

// qualityMultiplier maps a rolling win rate onto a sizing multiplier centered
// at 1.0 for a 50% win rate, clamped to [0.5, 2.0].
func qualityMultiplier(winRate float64) float64 {
	m := 1 + 2*(winRate-0.5)
	if m < qualityMultMin {
		return qualityMultMin
	}
	if m > qualityMultMax {
		return qualityMultMax
	}
	return m
}

// confidenceMultiplier maps a 0..1 confidence onto a [1.0, 1.5] multiplier.
func confidenceMultiplier(confidence float64) float64 {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	m := 1 + 0.5*confidence
	if m > confidenceMultMax {
		return confidenceMultMax
	}
	return m
}
