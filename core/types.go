// Package core provides the shared types and interfaces for dataanchor.
//
// This package exists to break import cycles between the root dataanchor package
// and internal implementation packages. The dataanchor package re-exports the
// public types from this package, so external users should import dataanchor
// directly, not dataanchor/core.
package core

import (
	"context"
	"fmt"

	"github.com/mr-tron/base58"
)

// Sizes of the fixed-width ledger values.
const (
	PubkeySize    = 32
	SignatureSize = 64
	HashSize      = 32
)

// Pubkey is a ledger account address.
type Pubkey [PubkeySize]byte

// PubkeyFromBase58 decodes a base58 account address.
func PubkeyFromBase58(s string) (Pubkey, error) {
	var p Pubkey
	if err := decodeFixed(s, p[:]); err != nil {
		return Pubkey{}, fmt.Errorf("decode address %q: %w", s, err)
	}
	return p, nil
}

// MustPubkey is like PubkeyFromBase58 but panics on malformed input.
// Intended for package-level constants.
func MustPubkey(s string) Pubkey {
	p, err := PubkeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the base58 form of the address.
func (p Pubkey) String() string { return base58.Encode(p[:]) }

// IsZero reports whether p is the all-zero address.
func (p Pubkey) IsZero() bool { return p == Pubkey{} }

// MarshalText implements encoding.TextMarshaler.
func (p Pubkey) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	v, err := PubkeyFromBase58(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Signature identifies a submitted transaction.
type Signature [SignatureSize]byte

// SignatureFromBase58 decodes a base58 transaction signature.
func SignatureFromBase58(s string) (Signature, error) {
	var sig Signature
	if err := decodeFixed(s, sig[:]); err != nil {
		return Signature{}, fmt.Errorf("decode signature %q: %w", s, err)
	}
	return sig, nil
}

// String returns the base58 form of the signature.
func (s Signature) String() string { return base58.Encode(s[:]) }

// IsZero reports whether s is the all-zero signature.
func (s Signature) IsZero() bool { return s == Signature{} }

// MarshalText implements encoding.TextMarshaler.
func (s Signature) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signature) UnmarshalText(text []byte) error {
	v, err := SignatureFromBase58(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Hash is a 32-byte digest: a recent blockhash or a container state hash.
type Hash [HashSize]byte

// HashFromBase58 decodes a base58 hash.
func HashFromBase58(s string) (Hash, error) {
	var h Hash
	if err := decodeFixed(s, h[:]); err != nil {
		return Hash{}, fmt.Errorf("decode hash %q: %w", s, err)
	}
	return h, nil
}

// String returns the base58 form of the hash.
func (h Hash) String() string { return base58.Encode(h[:]) }

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	v, err := HashFromBase58(string(text))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

func decodeFixed(s string, dst []byte) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("expected %d bytes, got %d", len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}

// Slot is the ledger's unit of block height.
type Slot uint64

// Commitment is the confirmation level awaited for submitted transactions.
type Commitment string

// Commitment levels, weakest first.
const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// Satisfies reports whether an observed status meets the wanted level.
func (c Commitment) Satisfies(want Commitment) bool {
	return c.rank() >= want.rank()
}

func (c Commitment) rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	default:
		return 0
	}
}

// Compression identifies the codec applied to a payload before chunking.
type Compression uint8

// Supported payload codecs.
const (
	CompressionNone Compression = 0
	CompressionZstd Compression = 1
)

// String returns the codec name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// FeeParams are the pricing parameters attached to every transaction of
// one logical operation.
type FeeParams struct {
	// ComputeUnitPrice is the priority fee in micro-lamports per compute unit.
	ComputeUnitPrice uint64
	// ComputeUnitLimit overrides the per-instruction default when non-zero.
	ComputeUnitLimit uint32
}

// Account is the state of a ledger account.
type Account struct {
	Address  Pubkey
	Owner    Pubkey
	Lamports uint64
	Data     []byte
}

// ConfirmedTransaction is a transaction as recorded by the ledger.
type ConfirmedTransaction struct {
	Signature Signature
	Slot      Slot
	// Raw is the wire-encoded transaction (signatures followed by message).
	Raw []byte
	// Err is non-nil when the transaction landed but failed execution.
	Err *TransactionError
}

// BlobRecord is a blob as reported by the indexer.
type BlobRecord struct {
	Container   Pubkey      `json:"container"`
	Slot        Slot        `json:"slot"`
	Signatures  []Signature `json:"signatures"`
	Compression Compression `json:"compression"`
	// Chunks holds the chunk bytes in position order.
	Chunks [][]byte `json:"chunks"`
}

// Proof binds the chunks appended to a container during one slot to the
// container's state hash before and after that slot.
type Proof struct {
	Container    Pubkey `json:"container"`
	Slot         Slot   `json:"slot"`
	InitialHash  Hash   `json:"initial_hash"`
	ChunkDigests []Hash `json:"chunk_digests"`
	FinalHash    Hash   `json:"final_hash"`
}

// Signer signs transaction messages on behalf of the payer.
// Implementations never expose key material beyond the public key.
type Signer interface {
	// PublicKey returns the payer address.
	PublicKey() Pubkey

	// Sign signs a serialized transaction message.
	Sign(ctx context.Context, message []byte) (Signature, error)
}

// Ledger handles ledger RPC operations.
// This interface is implemented by internal/solana.
type Ledger interface {
	// LatestBlockhash returns a recent blockhash for transaction construction.
	LatestBlockhash(ctx context.Context) (Hash, error)

	// Submit sends a signed, wire-encoded transaction.
	// Returns a *TransactionError if the ledger rejects it outright. A
	// transaction the ledger has already processed returns its signature.
	Submit(ctx context.Context, raw []byte) (Signature, error)

	// Confirm waits until the transaction reaches the configured commitment
	// and returns its slot. It returns the context error when ctx ends first,
	// and a *TransactionError when the transaction landed but failed.
	Confirm(ctx context.Context, sig Signature) (Slot, error)

	// GetTransaction fetches a confirmed transaction.
	// Returns ErrSignatureNotFound if the ledger has no record of it.
	GetTransaction(ctx context.Context, sig Signature) (*ConfirmedTransaction, error)

	// GetAccount fetches account state.
	// Returns ErrAccountNotFound if the account does not exist.
	GetAccount(ctx context.Context, addr Pubkey) (*Account, error)

	// RecentPrioritizationFees returns recently paid priority fees
	// (micro-lamports per compute unit) for transactions locking accounts.
	RecentPrioritizationFees(ctx context.Context, accounts []Pubkey) ([]uint64, error)
}

// Indexer queries an off-ledger indexer.
// This interface is implemented by internal/indexer.
type Indexer interface {
	// Blobs returns the blobs anchored to container at slot.
	// ok is false when the indexer has not processed the slot yet.
	Blobs(ctx context.Context, container Pubkey, slot Slot) (blobs []BlobRecord, ok bool, err error)

	// Proof returns the inclusion proof for container at slot.
	// ok is false when no proof is available yet.
	Proof(ctx context.Context, container Pubkey, slot Slot) (proof *Proof, ok bool, err error)
}
