package domain

// Action is the side of an observed wallet transaction.
type Action string

// Action constants
const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Chain identifiers for supported networks.
const (
	ChainSolana   = "solana"
	ChainEthereum = "ethereum"
	ChainBase     = "base"
	ChainBSC      = "bsc"
)

// TransactionEvent is a normalized buy/sell observed from a tracked wallet.
// Produced by the event ingestion collaborator (per-chain watchers).
type TransactionEvent struct {
	WalletAddress string // source wallet
	Chain         string // chain identifier
	TokenAddress  string // token mint / contract address
	TokenSymbol   string
	Action        Action
	Amount        float64 // token units
	PriceUSD      float64 // unit price in USD, 0 when the watcher had no quote
	ValueUSD      float64 // total value in USD, 0 when unknown
	LiquidityUSD  float64 // pool liquidity reported by the watcher, 0 when unknown
	TimestampMs   int64   // event time (ms)
	TxHash        string  // transaction hash, dedup key together with wallet
}

// TradeValueUSD returns the best-known USD value of the event.
// Falls back to price*amount when the watcher supplied no total value.
// Returns 0 when no price data is available at all.
func (e *TransactionEvent) TradeValueUSD() float64 {
	if e.ValueUSD > 0 {
		return e.ValueUSD
	}
	if e.PriceUSD > 0 && e.Amount > 0 {
		return e.PriceUSD * e.Amount
	}
	return 0
}
