package dataanchor

import (
	"github.com/meigma/dataanchor/internal/keypair"
)

// Compile-time interface implementation check.
var _ Signer = (*keypair.Keypair)(nil)

// LoadKeypair reads a payer keypair file: a JSON array of the 64 bytes of an
// ed25519 private key, as written by the ledger CLI.
func LoadKeypair(path string) (Signer, error) {
	kp, err := keypair.Load(path)
	if err != nil {
		return nil, err
	}
	return kp, nil
}

// ParseKeypair decodes keypair file contents.
func ParseKeypair(data []byte) (Signer, error) {
	kp, err := keypair.Parse(data)
	if err != nil {
		return nil, err
	}
	return kp, nil
}

// GenerateKeypair creates a random payer and returns it with its file encoding.
func GenerateKeypair() (Signer, []byte, error) {
	kp, err := keypair.Generate()
	if err != nil {
		return nil, nil, err
	}
	return kp, kp.Marshal(), nil
}
