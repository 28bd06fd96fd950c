package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions.
var (
	// ErrContainerNotFound indicates the identifier's container is not initialized.
	ErrContainerNotFound = errors.New("dataanchor: container not found")

	// ErrContainerAlreadyExists indicates a create-only path found an existing container.
	ErrContainerAlreadyExists = errors.New("dataanchor: container already exists")

	// ErrInvalidIdentifier indicates a namespace or address cannot designate a container.
	ErrInvalidIdentifier = errors.New("dataanchor: invalid identifier")

	// ErrTransactionRejected indicates the ledger refused or failed a transaction.
	ErrTransactionRejected = errors.New("dataanchor: transaction rejected")

	// ErrTimeout indicates confirmation was not observed in time.
	// The transaction may still land; it is not known to have failed.
	ErrTimeout = errors.New("dataanchor: confirmation timed out")

	// ErrIncompleteChunkSet indicates chunk positions are missing or duplicated.
	ErrIncompleteChunkSet = errors.New("dataanchor: incomplete chunk set")

	// ErrDecode indicates a transaction or chunk could not be parsed.
	ErrDecode = errors.New("dataanchor: decode error")

	// ErrSignatureNotFound indicates the ledger has no transaction for a signature.
	ErrSignatureNotFound = errors.New("dataanchor: signature not found")

	// ErrAccountNotFound indicates the ledger has no account at an address.
	ErrAccountNotFound = errors.New("dataanchor: account not found")

	// ErrIndexerUnavailable indicates the indexer could not be reached or failed.
	ErrIndexerUnavailable = errors.New("dataanchor: indexer unavailable")

	// ErrUnauthorized indicates a service refused the configured credentials.
	ErrUnauthorized = errors.New("dataanchor: unauthorized")

	// ErrPayloadTooLarge indicates a payload needs more chunks than the wire format allows.
	ErrPayloadTooLarge = errors.New("dataanchor: payload too large")

	// ErrNoIndexer indicates an indexer operation on a client built without one.
	ErrNoIndexer = errors.New("dataanchor: no indexer configured")

	// ErrNoPayer indicates a write operation on a client built without a payer.
	ErrNoPayer = errors.New("dataanchor: no payer configured")

	// ErrProofMismatch indicates a proof is inconsistent with itself or with blob data.
	ErrProofMismatch = errors.New("dataanchor: proof mismatch")
)

// TransactionError is a structured transaction failure reported by the ledger.
//
// Kind carries the classified failure (for example ErrContainerAlreadyExists)
// when the failing instruction and code are recognized. errors.Is matches both
// ErrTransactionRejected and Kind, so callers never inspect message text.
type TransactionError struct {
	// InstructionIndex is the failing instruction, or -1 for transaction-level errors.
	InstructionIndex int
	// Custom is the program-defined error code; valid when HasCustom is set.
	Custom    uint32
	HasCustom bool
	// Reason is the ledger's error description.
	Reason string
	// Kind is the classified sentinel, or nil.
	Kind error
}

// Error implements error.
func (e *TransactionError) Error() string {
	msg := "transaction failed"
	if e.InstructionIndex >= 0 {
		msg = fmt.Sprintf("instruction %d failed", e.InstructionIndex)
	}
	if e.HasCustom {
		msg += fmt.Sprintf(": custom program error %d", e.Custom)
	} else if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Kind != nil {
		msg += " (" + e.Kind.Error() + ")"
	}
	return msg
}

// Unwrap returns ErrTransactionRejected and the classified kind.
func (e *TransactionError) Unwrap() []error {
	if e.Kind == nil {
		return []error{ErrTransactionRejected}
	}
	return []error{ErrTransactionRejected, e.Kind}
}

// InstructionError reports whether the failure is a custom error raised by
// instruction index.
func (e *TransactionError) InstructionError(index int) (code uint32, ok bool) {
	if e == nil || e.InstructionIndex != index || !e.HasCustom {
		return 0, false
	}
	return e.Custom, true
}
