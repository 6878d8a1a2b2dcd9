package domain

// WalletStatus is the tracking state of a registry wallet.
type WalletStatus string

// Wallet status constants
const (
	WalletStatusActive   WalletStatus = "active"
	WalletStatusPaused   WalletStatus = "paused"
	WalletStatusArchived WalletStatus = "archived"
)

// Wallet is a read-only view of a registry wallet. The discovery and
// clustering service owns these records; this engine only reads them and
// toggles status on external request.
type Wallet struct {
	Address     string
	Chain       string
	StrategyTag string  // affinity hint from the clustering service
	WinRate     float64 // rolling fraction of profitable trades, 0..1
	TotalPnLUSD float64 // rolling realized profit and loss
	TradeCount  int
	WinCount    int
	Status      WalletStatus
	FirstSeenMs int64
	LastSeenMs  int64
}

// IsActive reports whether the wallet should be copied from.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}
