package domain

// PositionStatus is the lifecycle state of a paper position.
type PositionStatus string

// Position status constants
const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// Exit reason codes recorded when a position is reduced or closed.
const (
	ExitReasonStopLoss      = "STOP_LOSS"
	ExitReasonTakeProfit    = "TAKE_PROFIT"
	ExitReasonProfitTier    = "TAKE_PROFIT_TIER"
	ExitReasonTrailingStop  = "TRAILING_STOP"
	ExitReasonTimeDecay     = "TIME_DECAY"
	ExitReasonSourceSell    = "SOURCE_SELL"
	ExitReasonStale         = "STALE"
	ExitReasonTrendReversal = "TREND_REVERSAL"
)

// Position is a simulated holding opened in response to an observed wallet
// buy. Created only by the ledger after risk approval, mutated only by the
// ledger on exit decisions, never deleted.
type Position struct {
	PositionID   string // deterministic hash
	TokenAddress string
	TokenSymbol  string
	Chain        string
	Strategy     string // owning strategy name
	SourceWallet string // wallet whose buy was copied
	SourceTxHash string

	// Entry (immutable after Open)
	EntryPrice    float64
	EntryValueUSD float64
	OpenedAtMs    int64

	// Mutable lifecycle state
	Amount      float64 // token units remaining, only ever decreases
	RealizedUSD float64 // proceeds accumulated from partial exits
	Annotation  string  // fired take-profit tiers and partial-exit notes
	PeakPrice   float64 // highest price seen while open, for trailing stops
	Status      PositionStatus

	// Exit (set at close)
	ExitPrice    *float64
	ExitValueUSD *float64
	PnLUSD       *float64
	PnLPct       *float64
	ExitReason   string
	ClosedAtMs   *int64
}

// IsOpen reports whether the position is still held.
func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}
