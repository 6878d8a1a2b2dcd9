package domain

// StrategyPerformance aggregates the closed positions of one strategy.
type StrategyPerformance struct {
	Strategy string

	Trades int
	Wins   int
	Losses int

	WinRate      float64 // wins / trades
	AvgWinUSD    float64
	AvgLossUSD   float64 // negative or zero
	TotalPnLUSD  float64
	ROI          float64 // total PnL / allocation
	ProfitFactor float64 // gross wins / |gross losses|
}

// StrategySnapshot is a per-cycle performance row written to analytics
// storage after each position-management cycle.
type StrategySnapshot struct {
	Strategy     string
	CapturedAtMs int64

	Trades        int
	Wins          int
	Losses        int
	OpenPositions int

	WinRate      float64
	TotalPnLUSD  float64
	OpenValueUSD float64
	ROI          float64
	ProfitFactor float64
}
