package domain

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidateMint checks that s is a well-formed Solana mint address:
// base58 text decoding to exactly 32 bytes.
func ValidateMint(s string) error {
	if s == "" {
		return fmt.Errorf("empty mint address")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("decode mint address: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("mint address must decode to 32 bytes, got %d", len(raw))
	}
	return nil
}

// MintOnCurve reports whether the mint address is a valid ed25519 point.
// Off-curve mints are program-derived (e.g. launchpad vanity mints) and
// are still tradeable; the distinction is informational.
func MintOnCurve(s string) bool {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}
