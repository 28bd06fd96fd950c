// Package solana implements core.Ledger over a Solana-compatible JSON-RPC API.
package solana

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"

	"github.com/meigma/dataanchor/core"
	"github.com/meigma/dataanchor/internal/jsonrpc"
	"github.com/meigma/dataanchor/internal/tx"
)

// Compile-time interface implementation check.
var _ core.Ledger = (*Ledger)(nil)

// DefaultPollInterval is the delay between signature status queries.
const DefaultPollInterval = 500 * time.Millisecond

// errPending marks a status query that has not reached the wanted commitment.
var errPending = errors.New("transaction not yet confirmed")

// Option configures a Ledger.
type Option func(*Ledger)

// Ledger talks to a ledger RPC node.
type Ledger struct {
	rpc          *jsonrpc.Client
	commitment   core.Commitment
	pollInterval time.Duration
	logger       *slog.Logger
}

// New creates a Ledger that sends requests through rpc.
func New(rpc *jsonrpc.Client, opts ...Option) *Ledger {
	l := &Ledger{
		rpc:          rpc,
		commitment:   core.CommitmentConfirmed,
		pollInterval: DefaultPollInterval,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithCommitment sets the commitment awaited by Confirm and used for reads.
func WithCommitment(c core.Commitment) Option {
	return func(l *Ledger) {
		l.commitment = c
	}
}

// WithPollInterval sets the delay between confirmation status queries.
func WithPollInterval(d time.Duration) Option {
	return func(l *Ledger) {
		l.pollInterval = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// LatestBlockhash returns a recent blockhash.
func (l *Ledger) LatestBlockhash(ctx context.Context) (core.Hash, error) {
	res, err := l.rpc.Call(ctx, "getLatestBlockhash", []any{l.config(nil)})
	if err != nil {
		return core.Hash{}, mapError(err)
	}
	h, err := core.HashFromBase58(res.Get("value.blockhash").String())
	if err != nil {
		return core.Hash{}, fmt.Errorf("%w: latest blockhash: %v", core.ErrDecode, err)
	}
	return h, nil
}

// Submit sends a signed transaction. Preflight failures are returned as
// *core.TransactionError, except AlreadyProcessed: a resent transaction that
// already landed returns its own signature.
func (l *Ledger) Submit(ctx context.Context, raw []byte) (core.Signature, error) {
	res, err := l.rpc.Call(ctx, "sendTransaction", []any{
		base64.StdEncoding.EncodeToString(raw),
		map[string]any{
			"encoding":            "base64",
			"preflightCommitment": l.commitment,
		},
	})
	if err != nil {
		var rpcErr *jsonrpc.Error
		if errors.As(err, &rpcErr) {
			txErr := rejection(rpcErr)
			if txErr.InstructionIndex < 0 && txErr.Reason == reasonAlreadyProcessed {
				return processed(raw, txErr)
			}
			return core.Signature{}, txErr
		}
		return core.Signature{}, mapError(err)
	}
	sig, err := core.SignatureFromBase58(res.String())
	if err != nil {
		return core.Signature{}, fmt.Errorf("%w: submitted signature: %v", core.ErrDecode, err)
	}
	return sig, nil
}

// processed returns the signature of a transaction the ledger reports as
// already processed.
func processed(raw []byte, txErr *core.TransactionError) (core.Signature, error) {
	t, err := tx.Decode(raw)
	if err != nil {
		return core.Signature{}, txErr
	}
	return t.ID(), nil
}

// Confirm polls the signature status until it reaches the configured
// commitment, the transaction fails, or ctx ends.
func (l *Ledger) Confirm(ctx context.Context, sig core.Signature) (core.Slot, error) {
	policy := backoff.WithContext(backoff.NewConstantBackOff(l.pollInterval), ctx)
	return backoff.RetryWithData(func() (core.Slot, error) {
		res, err := l.rpc.Call(ctx, "getSignatureStatuses", []any{
			[]string{sig.String()},
			map[string]any{"searchTransactionHistory": true},
		})
		if err != nil {
			if ctx.Err() != nil {
				return 0, backoff.Permanent(ctx.Err())
			}
			return 0, backoff.Permanent(mapError(err))
		}
		status := res.Get("value.0")
		if !status.Exists() || status.Type == gjson.Null {
			return 0, errPending
		}
		if e := status.Get("err"); e.Exists() && e.Type != gjson.Null {
			return 0, backoff.Permanent(ParseTransactionError(e))
		}
		observed := core.Commitment(status.Get("confirmationStatus").String())
		if !observed.Satisfies(l.commitment) {
			l.logger.Debug("awaiting commitment", "signature", sig, "observed", observed, "want", l.commitment)
			return 0, errPending
		}
		return core.Slot(status.Get("slot").Uint()), nil
	}, policy)
}

// GetTransaction fetches a confirmed transaction in wire form.
func (l *Ledger) GetTransaction(ctx context.Context, sig core.Signature) (*core.ConfirmedTransaction, error) {
	res, err := l.rpc.Call(ctx, "getTransaction", []any{
		sig.String(),
		l.config(map[string]any{
			"encoding":                       "base64",
			"maxSupportedTransactionVersion": 0,
		}),
	})
	if err != nil {
		return nil, mapError(err)
	}
	if res.Type == gjson.Null {
		return nil, fmt.Errorf("%w: %s", core.ErrSignatureNotFound, sig)
	}
	raw, err := base64.StdEncoding.DecodeString(res.Get("transaction.0").String())
	if err != nil {
		return nil, fmt.Errorf("%w: transaction %s: %v", core.ErrDecode, sig, err)
	}
	out := &core.ConfirmedTransaction{
		Signature: sig,
		Slot:      core.Slot(res.Get("slot").Uint()),
		Raw:       raw,
	}
	if e := res.Get("meta.err"); e.Exists() && e.Type != gjson.Null {
		out.Err = ParseTransactionError(e)
	}
	return out, nil
}

// GetAccount fetches an account.
func (l *Ledger) GetAccount(ctx context.Context, addr core.Pubkey) (*core.Account, error) {
	res, err := l.rpc.Call(ctx, "getAccountInfo", []any{
		addr.String(),
		l.config(map[string]any{"encoding": "base64"}),
	})
	if err != nil {
		return nil, mapError(err)
	}
	value := res.Get("value")
	if !value.Exists() || value.Type == gjson.Null {
		return nil, fmt.Errorf("%w: %s", core.ErrAccountNotFound, addr)
	}
	owner, err := core.PubkeyFromBase58(value.Get("owner").String())
	if err != nil {
		return nil, fmt.Errorf("%w: account owner: %v", core.ErrDecode, err)
	}
	data, err := base64.StdEncoding.DecodeString(value.Get("data.0").String())
	if err != nil {
		return nil, fmt.Errorf("%w: account data: %v", core.ErrDecode, err)
	}
	return &core.Account{
		Address:  addr,
		Owner:    owner,
		Lamports: value.Get("lamports").Uint(),
		Data:     data,
	}, nil
}

// RecentPrioritizationFees returns the priority fees paid in recent slots by
// transactions that locked any of accounts.
func (l *Ledger) RecentPrioritizationFees(ctx context.Context, accounts []core.Pubkey) ([]uint64, error) {
	addrs := make([]string, len(accounts))
	for i, a := range accounts {
		addrs[i] = a.String()
	}
	res, err := l.rpc.Call(ctx, "getRecentPrioritizationFees", []any{addrs})
	if err != nil {
		return nil, mapError(err)
	}
	entries := res.Array()
	fees := make([]uint64, 0, len(entries))
	for _, e := range entries {
		fees = append(fees, e.Get("prioritizationFee").Uint())
	}
	return fees, nil
}

func (l *Ledger) config(extra map[string]any) map[string]any {
	cfg := map[string]any{"commitment": l.commitment}
	for k, v := range extra {
		cfg[k] = v
	}
	return cfg
}
