package dataanchor

import (
	"fmt"

	"github.com/meigma/dataanchor/core"
)

// Sentinel errors for common failure conditions.
// Re-exported from core package.
var (
	// ErrContainerNotFound indicates the identifier's container is not initialized.
	ErrContainerNotFound = core.ErrContainerNotFound

	// ErrContainerAlreadyExists indicates Create found an existing container.
	// Initialize treats this condition as success.
	ErrContainerAlreadyExists = core.ErrContainerAlreadyExists

	// ErrInvalidIdentifier indicates a namespace or address cannot designate a container.
	ErrInvalidIdentifier = core.ErrInvalidIdentifier

	// ErrTransactionRejected indicates the ledger refused or failed a transaction.
	ErrTransactionRejected = core.ErrTransactionRejected

	// ErrTimeout indicates confirmation was not observed in time.
	// The transaction may still land.
	ErrTimeout = core.ErrTimeout

	// ErrIncompleteChunkSet indicates chunk positions are missing or duplicated.
	ErrIncompleteChunkSet = core.ErrIncompleteChunkSet

	// ErrDecode indicates a transaction or chunk could not be parsed.
	ErrDecode = core.ErrDecode

	// ErrSignatureNotFound indicates the ledger has no transaction for a signature.
	ErrSignatureNotFound = core.ErrSignatureNotFound

	// ErrAccountNotFound indicates the ledger has no account at an address.
	ErrAccountNotFound = core.ErrAccountNotFound

	// ErrIndexerUnavailable indicates the indexer could not be reached or failed.
	ErrIndexerUnavailable = core.ErrIndexerUnavailable

	// ErrUnauthorized indicates a service refused the configured credentials.
	ErrUnauthorized = core.ErrUnauthorized

	// ErrPayloadTooLarge indicates a payload needs more chunks than one upload allows.
	ErrPayloadTooLarge = core.ErrPayloadTooLarge

	// ErrNoIndexer indicates GetBlobs or GetProof on a client without an indexer.
	ErrNoIndexer = core.ErrNoIndexer

	// ErrNoPayer indicates a write operation on a client without a payer.
	ErrNoPayer = core.ErrNoPayer

	// ErrProofMismatch indicates a proof does not verify.
	ErrProofMismatch = core.ErrProofMismatch
)

// TransactionError is a structured transaction failure reported by the ledger.
// Re-exported from core package.
type TransactionError = core.TransactionError

// UploadError reports an upload that did not fully confirm. It carries the
// status of every chunk and the outcomes confirmed before the upload stopped.
//
// errors.Is reports ErrTimeout when chunks were left unconfirmed, and
// ErrTransactionRejected when a chunk was refused.
type UploadError struct {
	Container Pubkey
	// Chunks holds one entry per chunk, ordered by position.
	Chunks []ChunkResult
	// Outcomes holds the confirmed chunks, ordered by position.
	Outcomes []UploadOutcome
	Err      error
}

// Error implements error.
func (e *UploadError) Error() string {
	return fmt.Sprintf("upload to %s: %d of %d chunks confirmed: %v", e.Container, len(e.Outcomes), len(e.Chunks), e.Err)
}

// Unwrap returns the underlying failure.
func (e *UploadError) Unwrap() error { return e.Err }
