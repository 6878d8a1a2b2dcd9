package domain

// Strategy variant constants. The set is closed: evaluators are registered
// once at startup and the arbiter iterates that registry.
const (
	StrategySmartMoney   = "smart_money"
	StrategyWhaleTracker = "whale_tracker"
	StrategyMomentum     = "momentum"
	StrategyCopycat      = "copycat"
)

// ProfitTier is one step of a tiered take-profit ladder. Each tier fires at
// most once per position; fired tiers are recorded in the position annotation.
type ProfitTier struct {
	Multiple     float64 // price multiple over entry that triggers the tier
	SellFraction float64 // fraction of the remaining amount to sell
}

// StrategyConfig holds the policy bundle for one strategy variant.
// Optional pointer fields are variant-specific eligibility extras; the
// factory validates that a variant's required extras are present.
type StrategyConfig struct {
	Variant string // one of the Strategy* constants

	// Capital and sizing
	AllocationUSD    float64 // capital ceiling for this strategy
	MaxPositionUSD   float64 // per-trade cap
	BasePositionUSD  float64 // sizing base before quality/confidence scaling
	MaxOpenPositions int     // concurrency cap

	// Entry eligibility
	MinWalletWinRate   float64
	MinTradeValueUSD   float64
	NoPriceAmountFloor float64 // token-amount floor used when price data is absent

	// Exit rules
	StopLossPct           float64      // drop from entry forcing a full exit
	TakeProfitPct         float64      // single target; ignored when tiers are set
	ProfitTiers           []ProfitTier // ordered take-profit ladder
	TrailingStopPct       float64      // retracement from peak, 0 disables
	TrailingActivationPct float64      // unrealized gain that arms the trailing stop
	MaxHoldMs             int64        // time-decay horizon, 0 disables

	// smart_money extras
	MinWalletPnLUSD *float64

	// whale_tracker extras
	WhaleBalanceUSD *float64
	MinLiquidityUSD *float64

	// momentum extras
	MinDistinctBuyers *int
	BuyerWindowMs     *int64

	// copycat extras
	MinTokenAgeMs *int64
}
