package dataanchor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meigma/dataanchor/core"
	"github.com/meigma/dataanchor/internal/cache"
	"github.com/meigma/dataanchor/internal/contracts"
	"github.com/meigma/dataanchor/internal/program"
	"github.com/meigma/dataanchor/internal/tx"
)

// DefaultProgramID is the address of the public blober program.
var DefaultProgramID = core.MustPubkey("9i3Lf1qZkiUE7SeoS7kP8zhtFpVt1y6mmQqZFSYdYc8S")

// Client anchors payloads to the ledger and retrieves them.
type Client struct {
	ledger    Ledger
	txs       contracts.TransactionSource
	indexer   Indexer
	payer     Signer
	programID Pubkey
	logger    *slog.Logger

	txCacheSize int
	txStoreDir  string
}

// NewClient creates a client over an existing ledger connection.
// WithLedger is required; most callers use Dial instead.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		programID: DefaultProgramID,
		logger:    slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.ledger == nil {
		return nil, errors.New("dataanchor: a ledger is required (use Dial or WithLedger)")
	}

	c.txs = c.ledger
	if c.txCacheSize > 0 || c.txStoreDir != "" {
		var cacheOpts []cache.Option
		if c.txStoreDir != "" {
			store, err := cache.OpenStore(c.txStoreDir, c.logger)
			if err != nil {
				return nil, err
			}
			cacheOpts = append(cacheOpts, cache.WithStore(store))
		}
		cached, err := cache.New(c.ledger, c.txCacheSize, c.logger, cacheOpts...)
		if err != nil {
			return nil, err
		}
		c.txs = cached
	}

	return c, nil
}

// ProgramID returns the blober program the client targets.
func (c *Client) ProgramID() Pubkey { return c.programID }

// Payer returns the payer address, or the zero address if none is configured.
func (c *Client) Payer() Pubkey {
	if c.payer == nil {
		return Pubkey{}
	}
	return c.payer.PublicKey()
}

func (c *Client) requirePayer() error {
	if c.payer == nil {
		return ErrNoPayer
	}
	return nil
}

// feeParams prices one logical operation locking accounts.
func (c *Client) feeParams(ctx context.Context, fee FeeStrategy, accounts ...Pubkey) (FeeParams, error) {
	if fee == nil {
		fee = DefaultFee()
	}
	fp, err := fee.ComputePrice(ctx, FeeContext{Source: c.ledger, Accounts: accounts})
	if err != nil {
		return FeeParams{}, fmt.Errorf("compute fee: %w", err)
	}
	return fp, nil
}

// submit signs ixs with the payer against a fresh blockhash and sends them.
//
// Once the transaction has been handed to the ledger its signature is
// returned even when err is non-nil: unless refused reports the error as a
// refusal, the transaction may still land.
func (c *Client) submit(ctx context.Context, ixs []tx.Instruction) (Signature, error) {
	blockhash, err := c.ledger.LatestBlockhash(ctx)
	if err != nil {
		return Signature{}, fmt.Errorf("get blockhash: %w", err)
	}
	msg, err := tx.Compile(c.payer.PublicKey(), ixs, blockhash)
	if err != nil {
		return Signature{}, err
	}
	signed, err := tx.Sign(ctx, msg, c.payer)
	if err != nil {
		return Signature{}, err
	}
	raw, err := signed.Encode()
	if err != nil {
		return Signature{}, err
	}

	sig := signed.ID()
	got, err := c.ledger.Submit(ctx, raw)
	if err != nil {
		return sig, err
	}
	if got != sig {
		c.logger.Warn("ledger acknowledged a different signature", "signature", sig, "acknowledged", got)
	}
	return sig, nil
}

// refused reports whether a submit error proves the ledger did not accept
// the transaction.
func refused(err error) bool {
	var txErr *TransactionError
	return errors.As(err, &txErr) || errors.Is(err, ErrUnauthorized)
}

// execute submits a single-instruction operation and waits up to timeout for
// confirmation. Ledger failures are classified by kind. A submission that
// was not acknowledged is still awaited, since it may have landed.
func (c *Client) execute(ctx context.Context, kind program.Kind, ixs []tx.Instruction, timeout time.Duration) (Signature, Slot, error) {
	sig, err := c.submit(ctx, ixs)
	if err != nil {
		if sig.IsZero() || refused(err) || ctx.Err() != nil {
			return Signature{}, 0, program.Classify(kind, err)
		}
		c.logger.Debug("submission unacknowledged", "operation", kind.String(), "signature", sig, "error", err)
	}
	c.logger.Debug("transaction submitted", "operation", kind.String(), "signature", sig)

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	slot, err := c.ledger.Confirm(cctx, sig)
	switch {
	case err == nil:
		c.logger.Debug("transaction confirmed", "operation", kind.String(), "signature", sig, "slot", slot)
		return sig, slot, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return sig, 0, fmt.Errorf("%w: %s %s", ErrTimeout, kind, sig)
	default:
		return sig, 0, program.Classify(kind, err)
	}
}
