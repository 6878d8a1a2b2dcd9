package strategy

import (
	"errors"
	"fmt"

	"copy-trader-lab/internal/cache"
	"copy-trader-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownVariant = errors.New("unknown strategy variant")
	ErrMissingDep     = errors.New("missing strategy dependency")
)

// Deps are the shared stateful components the variants read. Constructed once
// at startup and passed by reference; each owns its own bounded eviction.
type Deps struct {
	Balances *cache.BalanceCache      // whale_tracker
	Trades   *cache.RecentTradeTracker // momentum, copycat
}

// FromConfig builds the evaluator for cfg.Variant.
func FromConfig(cfg domain.StrategyConfig, deps Deps) (Evaluator, error) {
	switch cfg.Variant {
	case domain.StrategySmartMoney:
		return &smartMoney{base: base{cfg: cfg}}, nil
	case domain.StrategyWhaleTracker:
		if deps.Balances == nil {
			return nil, fmt.Errorf("%w: %s needs a balance cache", ErrMissingDep, cfg.Variant)
		}
		return &whaleTracker{base: base{cfg: cfg}, balances: deps.Balances}, nil
	case domain.StrategyMomentum:
		if deps.Trades == nil {
			return nil, fmt.Errorf("%w: %s needs a trade tracker", ErrMissingDep, cfg.Variant)
		}
		return &momentum{base: base{cfg: cfg}, trades: deps.Trades}, nil
	case domain.StrategyCopycat:
		if deps.Trades == nil {
			return nil, fmt.Errorf("%w: %s needs a trade tracker", ErrMissingDep, cfg.Variant)
		}
		return &copycat{base: base{cfg: cfg}, trades: deps.Trades}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, cfg.Variant)
	}
}

// Registry builds every evaluator in cfgs, keyed by variant name.
func Registry(cfgs []domain.StrategyConfig, deps Deps) (map[string]Evaluator, error) {
	out := make(map[string]Evaluator, len(cfgs))
	for _, cfg := range cfgs {
		ev, err := FromConfig(cfg, deps)
		if err != nil {
			return nil, err
		}
		out[ev.Name()] = ev
	}
	return out, nil
}

// DefaultConfigs returns the stock policy bundles for all four variants.
func DefaultConfigs() []domain.StrategyConfig {
	return []domain.StrategyConfig{
		{
			Variant:            domain.StrategySmartMoney,
			AllocationUSD:      25_000,
			MaxPositionUSD:     2_500,
			BasePositionUSD:    1_000,
			MaxOpenPositions:   10,
			MinWalletWinRate:   0.60,
			MinTradeValueUSD:   1_000,
			NoPriceAmountFloor: 100,
			StopLossPct:        0.15,
			ProfitTiers: []domain.ProfitTier{
				{Multiple: 2, SellFraction: 0.5},
				{Multiple: 10, SellFraction: 0.3},
			},
			TrailingStopPct:       0.20,
			TrailingActivationPct: 0.50,
			MaxHoldMs:             72 * 3600 * 1000,
			MinWalletPnLUSD:       ptr(10_000.0),
		},
		{
			Variant:            domain.StrategyWhaleTracker,
			AllocationUSD:      20_000,
			MaxPositionUSD:     2_000,
			BasePositionUSD:    800,
			MaxOpenPositions:   8,
			MinWalletWinRate:   0.55,
			MinTradeValueUSD:   5_000,
			NoPriceAmountFloor: 500,
			StopLossPct:        0.12,
			TakeProfitPct:      0.40,
			TrailingStopPct:    0.15,
			TrailingActivationPct: 0.25,
			MaxHoldMs:          48 * 3600 * 1000,
			WhaleBalanceUSD:    ptr(500_000.0),
			MinLiquidityUSD:    ptr(50_000.0),
		},
		{
			Variant:            domain.StrategyMomentum,
			AllocationUSD:      15_000,
			MaxPositionUSD:     1_500,
			BasePositionUSD:    600,
			MaxOpenPositions:   12,
			MinWalletWinRate:   0.50,
			MinTradeValueUSD:   500,
			NoPriceAmountFloor: 100,
			StopLossPct:        0.10,
			TakeProfitPct:      0.30,
			MaxHoldMs:          12 * 3600 * 1000,
			MinDistinctBuyers:  ptrInt(3),
			BuyerWindowMs:      ptrInt64(30 * 60 * 1000),
		},
		{
			Variant:            domain.StrategyCopycat,
			AllocationUSD:      10_000,
			MaxPositionUSD:     500,
			BasePositionUSD:    250,
			MaxOpenPositions:   20,
			MinWalletWinRate:   0.50,
			MinTradeValueUSD:   250,
			NoPriceAmountFloor: 100,
			StopLossPct:        0.20,
			TakeProfitPct:      0.50,
			MaxHoldMs:          24 * 3600 * 1000,
			MinTokenAgeMs:      ptrInt64(60 * 60 * 1000),
		},
	}
}

func ptr(v float64) *float64 { return &v }
func ptrInt(v int) *int      { return &v }
func ptrInt64(v int64) *int64 { return &v }
