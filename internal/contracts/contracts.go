// Package contracts defines internal interfaces shared across dataanchor components.
// These interfaces are intentionally internal to avoid exposing implementation
// contracts as part of the public API.
package contracts

import (
	"context"

	"github.com/meigma/dataanchor/core"
)

// FeeSource samples the priority fees recently paid on the ledger.
// Implemented by every core.Ledger.
type FeeSource interface {
	// RecentPrioritizationFees returns fees in micro-lamports per compute
	// unit paid by recent transactions that locked any of accounts.
	RecentPrioritizationFees(ctx context.Context, accounts []core.Pubkey) ([]uint64, error)
}

// TransactionSource fetches confirmed transactions.
// Implemented by core.Ledger and by internal/cache.
type TransactionSource interface {
	// GetTransaction returns core.ErrSignatureNotFound for unknown signatures.
	GetTransaction(ctx context.Context, sig core.Signature) (*core.ConfirmedTransaction, error)
}

// AccountSource reads account state.
type AccountSource interface {
	// GetAccount returns core.ErrAccountNotFound for missing accounts.
	GetAccount(ctx context.Context, addr core.Pubkey) (*core.Account, error)
}

// Submitter sends signed transactions and waits for them to land.
type Submitter interface {
	LatestBlockhash(ctx context.Context) (core.Hash, error)
	Submit(ctx context.Context, raw []byte) (core.Signature, error)
	Confirm(ctx context.Context, sig core.Signature) (core.Slot, error)
}
