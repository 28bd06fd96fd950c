// Package pda derives program-owned addresses.
//
// A program address is derived from seeds and the owning program so that it
// does not decode to a point on the ed25519 curve, and no private key can sign
// for it. FindProgramAddress searches bump seeds from 255 downward and returns
// the first off-curve result.
package pda

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"

	"github.com/meigma/dataanchor/core"
)

// Derivation limits enforced by the ledger.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

var (
	// ErrOnCurve indicates the candidate address is a valid public key.
	ErrOnCurve = errors.New("pda: address is on curve")

	// ErrNoBump indicates no bump seed produced an off-curve address.
	ErrNoBump = errors.New("pda: no viable bump seed")
)

// CreateProgramAddress derives the address for seeds under program.
// Returns ErrOnCurve if the digest is a valid curve point.
func CreateProgramAddress(seeds [][]byte, program core.Pubkey) (core.Pubkey, error) {
	if err := checkSeeds(seeds, MaxSeeds); err != nil {
		return core.Pubkey{}, err
	}
	addr, err := solana.CreateProgramAddress(seeds, solana.PublicKey(program))
	if err != nil {
		return core.Pubkey{}, fmt.Errorf("%w: %v", ErrOnCurve, err)
	}
	return core.Pubkey(addr), nil
}

// FindProgramAddress derives the canonical address for seeds under program,
// returning it with the bump seed that produced it.
func FindProgramAddress(seeds [][]byte, program core.Pubkey) (core.Pubkey, uint8, error) {
	// One seed slot is taken by the bump.
	if err := checkSeeds(seeds, MaxSeeds-1); err != nil {
		return core.Pubkey{}, 0, err
	}
	addr, bump, err := solana.FindProgramAddress(seeds, solana.PublicKey(program))
	if err != nil {
		return core.Pubkey{}, 0, fmt.Errorf("%w: %v", ErrNoBump, err)
	}
	return core.Pubkey(addr), bump, nil
}

func checkSeeds(seeds [][]byte, maxSeeds int) error {
	if len(seeds) > maxSeeds {
		return fmt.Errorf("pda: %d seeds exceeds max %d", len(seeds), maxSeeds)
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return fmt.Errorf("pda: seed %d is %d bytes, max %d", i, len(seed), MaxSeedLen)
		}
	}
	return nil
}

// IsOnCurve reports whether b is the encoding of an ed25519 curve point.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
