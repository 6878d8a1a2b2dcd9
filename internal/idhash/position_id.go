package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePositionID computes a deterministic position id using SHA256.
// Formula: SHA256(wallet|tx_hash|strategy)
// Returns hex-encoded hash (64 characters).
func ComputePositionID(wallet, txHash, strategy string) string {
	data := fmt.Sprintf("%s|%s|%s", wallet, txHash, strategy)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// DedupKey computes the dedup cache key for an observed event.
// The pair (wallet, tx_hash) identifies one event across redeliveries.
func DedupKey(wallet, txHash string) string {
	return wallet + "|" + txHash
}
