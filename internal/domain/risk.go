package domain

// RiskLimits are the portfolio-wide limits the risk gate enforces before a
// proposed trade is committed.
type RiskLimits struct {
	MaxPositionFraction      float64 // max fraction of current capital per position
	MaxDrawdown              float64 // max fractional decline from starting capital
	MaxDailyLossFraction     float64 // max realized loss per UTC day, as fraction of starting capital
	MaxTokenExposureFraction float64 // max open exposure to one token
	MaxChainExposureFraction float64 // max open exposure to one chain
	EmergencyStop            bool    // rejects every trade when set
}

// DefaultRiskLimits returns the limits used when the operator supplies none.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionFraction:      0.10,
		MaxDrawdown:              0.25,
		MaxDailyLossFraction:     0.05,
		MaxTokenExposureFraction: 0.15,
		MaxChainExposureFraction: 0.50,
	}
}

// Risk level constants
const (
	RiskLevelLow      = "low"
	RiskLevelModerate = "moderate"
	RiskLevelHigh     = "high"
	RiskLevelCritical = "critical"
)

// RiskStatus is the summarized portfolio risk exposed to the service layer.
type RiskStatus struct {
	Level              string
	Score              float64 // 0..100, higher is riskier
	Drawdown           float64
	CapitalUtilization float64 // open entry value / current capital
	RealizedTodayUSD   float64
	EmergencyStop      bool
}

// PortfolioState is a point-in-time read of portfolio aggregates used by the
// evaluators, arbiter and risk gate. It is a snapshot: values may be stale by
// the time a position is committed (see the documented two-phase check race).
type PortfolioState struct {
	StartingCapitalUSD float64
	CurrentCapitalUSD  float64 // starting capital + realized PnL
	RealizedTodayUSD   float64 // PnL booked since UTC midnight
	OpenValueTotalUSD  float64 // sum of entry values over all open positions

	OpenValueByStrategy map[string]float64
	OpenCountByStrategy map[string]int
	OpenValueByToken    map[string]float64
	OpenValueByChain    map[string]float64
}

// AvailableUSD returns the capital left for a strategy under its allocation.
func (s *PortfolioState) AvailableUSD(strategy string, allocation float64) float64 {
	return allocation - s.OpenValueByStrategy[strategy]
}

// Drawdown returns the fractional decline of current capital from starting
// capital. Never negative.
func (s *PortfolioState) Drawdown() float64 {
	if s.StartingCapitalUSD <= 0 {
		return 0
	}
	d := (s.StartingCapitalUSD - s.CurrentCapitalUSD) / s.StartingCapitalUSD
	if d < 0 {
		return 0
	}
	return d
}
