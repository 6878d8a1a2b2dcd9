package chain

// Per-chain floor prices in USD, used when neither the price service nor the
// event itself yields a price. Long-tail tokens on cheap chains trade far
// below a cent; the floor only has to keep position-size arithmetic away
// from zero denominators.
var floorPriceUSD = map[string]float64{
	"solana":   0.0000001,
	"ethereum": 0.000001,
	"base":     0.0000005,
	"bsc":      0.0000005,
}

const defaultFloorPriceUSD = 0.000001

// FloorPriceUSD returns the guaranteed-positive fallback price for chain.
func FloorPriceUSD(chainID string) float64 {
	if floor, ok := floorPriceUSD[chainID]; ok {
		return floor
	}
	return defaultFloorPriceUSD
}
