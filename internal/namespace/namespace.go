// Package namespace validates namespace strings used as container seeds.
package namespace

import (
	"fmt"

	"github.com/meigma/dataanchor/core"
)

// MaxLen is the longest namespace accepted, bounded by the ledger's maximum
// length of a single address derivation seed.
const MaxLen = 32

// Validate checks that ns can seed a container address.
// Returns core.ErrInvalidIdentifier if it is empty, too long, or contains
// bytes outside printable ASCII.
func Validate(ns string) error {
	if ns == "" {
		return fmt.Errorf("%w: empty namespace", core.ErrInvalidIdentifier)
	}
	if len(ns) > MaxLen {
		return fmt.Errorf("%w: namespace is %d bytes, max %d", core.ErrInvalidIdentifier, len(ns), MaxLen)
	}
	for i := 0; i < len(ns); i++ {
		if !isPrintable(ns[i]) {
			return fmt.Errorf("%w: namespace byte %d (0x%02x) is not printable ASCII", core.ErrInvalidIdentifier, i, ns[i])
		}
	}
	return nil
}

// isPrintable excludes space and control characters.
func isPrintable(b byte) bool {
	return b >= 0x21 && b <= 0x7e
}
