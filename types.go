package dataanchor

import "github.com/meigma/dataanchor/core"

// Ledger value types.
// Re-exported from core package.
type (
	Pubkey      = core.Pubkey
	Signature   = core.Signature
	Hash        = core.Hash
	Slot        = core.Slot
	Commitment  = core.Commitment
	Compression = core.Compression
	FeeParams   = core.FeeParams
	BlobRecord  = core.BlobRecord
	Proof       = core.Proof

	Account              = core.Account
	ConfirmedTransaction = core.ConfirmedTransaction
)

// External services consumed by the client.
// Re-exported from core package.
type (
	Signer  = core.Signer
	Ledger  = core.Ledger
	Indexer = core.Indexer
)

// Commitment levels.
const (
	CommitmentProcessed = core.CommitmentProcessed
	CommitmentConfirmed = core.CommitmentConfirmed
	CommitmentFinalized = core.CommitmentFinalized
)

// Payload codecs.
const (
	CompressionNone = core.CompressionNone
	CompressionZstd = core.CompressionZstd
)

// ParsePubkey decodes a base58 address.
func ParsePubkey(s string) (Pubkey, error) { return core.PubkeyFromBase58(s) }

// ParseSignature decodes a base58 transaction signature.
func ParseSignature(s string) (Signature, error) { return core.SignatureFromBase58(s) }
