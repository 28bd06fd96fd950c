// Package keypair loads payer keys and signs with them.
//
// Key files use the ledger CLI's format: a JSON array of the 64 bytes of an
// ed25519 private key (32-byte seed followed by the 32-byte public key).
package keypair

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"

	"github.com/meigma/dataanchor/core"
)

// Compile-time interface implementation check.
var _ core.Signer = (*Keypair)(nil)

// ErrInvalidKey indicates key material that is malformed or inconsistent.
var ErrInvalidKey = errors.New("keypair: invalid key")

// Keypair is an ed25519 payer key.
type Keypair struct {
	priv solana.PrivateKey
	pub  core.Pubkey
}

// Generate creates a random keypair.
func Generate() (*Keypair, error) {
	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return fromPrivate(priv), nil
}

// FromSeed derives a keypair from a 32-byte seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed is %d bytes, want %d", ErrInvalidKey, len(seed), ed25519.SeedSize)
	}
	return fromPrivate(solana.PrivateKey(ed25519.NewKeyFromSeed(seed))), nil
}

// Load reads a keypair file.
func Load(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair: %w", err)
	}
	kp, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse keypair %s: %w", path, err)
	}
	return kp, nil
}

// Parse decodes a JSON byte-array keypair.
func Parse(data []byte) (*Keypair, error) {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidKey, len(ints), ed25519.PrivateKeySize)
	}
	raw := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range: %d", ErrInvalidKey, i, v)
		}
		raw[i] = byte(v)
	}
	priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(priv[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidKey)
	}
	return fromPrivate(solana.PrivateKey(priv)), nil
}

// Marshal encodes the keypair in the JSON byte-array format.
func (k *Keypair) Marshal() []byte {
	ints := make([]int, len(k.priv))
	for i, b := range k.priv {
		ints[i] = int(b)
	}
	//nolint:errchkjson // []int always marshals
	data, _ := json.Marshal(ints)
	return data
}

// PublicKey returns the payer address.
func (k *Keypair) PublicKey() core.Pubkey { return k.pub }

// Sign signs message.
func (k *Keypair) Sign(_ context.Context, message []byte) (core.Signature, error) {
	sig, err := k.priv.Sign(message)
	if err != nil {
		return core.Signature{}, fmt.Errorf("sign: %w", err)
	}
	return core.Signature(sig), nil
}

func fromPrivate(priv solana.PrivateKey) *Keypair {
	return &Keypair{priv: priv, pub: core.Pubkey(priv.PublicKey())}
}
