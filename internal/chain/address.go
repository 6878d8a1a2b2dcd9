// Package chain holds per-chain address validation and price floors.
package chain

import (
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidateTokenAddress checks that address is well-formed for chain.
// Solana addresses are base58-encoded 32-byte values; EVM addresses are
// 0x-prefixed 20-byte hex.
func ValidateTokenAddress(chainID, address string) error {
	switch chainID {
	case "solana":
		return validateSolana(address, false)
	default:
		return validateEVM(address)
	}
}

// ValidateWalletAddress checks that address is a plausible signing wallet.
// On Solana that additionally requires the key to be on the ed25519 curve:
// program-derived addresses are off-curve and cannot originate transactions.
func ValidateWalletAddress(chainID, address string) error {
	switch chainID {
	case "solana":
		return validateSolana(address, true)
	default:
		return validateEVM(address)
	}
}

func validateSolana(address string, requireOnCurve bool) error {
	decoded, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("decode base58 address: %w", err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("solana address must decode to 32 bytes, got %d", len(decoded))
	}
	if requireOnCurve && !isOnCurve(decoded) {
		return fmt.Errorf("address is not on the ed25519 curve")
	}
	return nil
}

func validateEVM(address string) error {
	if !strings.HasPrefix(address, "0x") {
		return fmt.Errorf("evm address must start with 0x")
	}
	hex := address[2:]
	if len(hex) != 40 {
		return fmt.Errorf("evm address must be 20 bytes of hex, got %d chars", len(hex))
	}
	for _, c := range hex {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return fmt.Errorf("evm address contains non-hex character %q", c)
		}
	}
	return nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
