package dataanchor

import (
	"errors"
	"fmt"

	"github.com/meigma/dataanchor/core"
	"github.com/meigma/dataanchor/internal/indexer"
	"github.com/meigma/dataanchor/internal/jsonrpc"
	"github.com/meigma/dataanchor/internal/solana"
)

// Config holds the connection settings for Dial.
type Config struct {
	// RPCURL is the ledger JSON-RPC endpoint.
	RPCURL string
	// ProgramID is the blober program address. Zero selects DefaultProgramID.
	ProgramID Pubkey
	// IndexerURL is the indexer JSON-RPC endpoint. Empty disables indexer queries.
	IndexerURL string
	// IndexerToken is sent as a bearer token to the indexer when set.
	IndexerToken string
	// Commitment is the confirmation level awaited for transactions.
	// Empty selects CommitmentConfirmed.
	Commitment Commitment
	// UserAgent is sent with every request when set.
	UserAgent string
}

// Validate checks the configuration for missing or malformed values.
func (cfg Config) Validate() error {
	if cfg.RPCURL == "" {
		return errors.New("dataanchor: rpc url is required")
	}
	switch cfg.Commitment {
	case "", core.CommitmentProcessed, core.CommitmentConfirmed, core.CommitmentFinalized:
	default:
		return fmt.Errorf("dataanchor: unknown commitment %q", cfg.Commitment)
	}
	return nil
}

// Dial creates a client connected to the ledger and indexer in cfg.
// Options are applied after the connections, so WithLogger, WithPayer and
// WithTransactionCache combine with it.
func Dial(cfg Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	commitment := cfg.Commitment
	if commitment == "" {
		commitment = core.CommitmentConfirmed
	}

	// Resolve the logger first so the transports log through it.
	scratch := &Client{}
	for _, opt := range opts {
		_ = opt(scratch)
	}
	logger := scratch.logger

	var rpcOpts []jsonrpc.Option
	if cfg.UserAgent != "" {
		rpcOpts = append(rpcOpts, jsonrpc.WithUserAgent(cfg.UserAgent))
	}
	if logger != nil {
		rpcOpts = append(rpcOpts, jsonrpc.WithLogger(logger))
	}

	rpc, err := jsonrpc.New(cfg.RPCURL, rpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("ledger endpoint: %w", err)
	}
	ledgerOpts := []solana.Option{solana.WithCommitment(commitment)}
	if logger != nil {
		ledgerOpts = append(ledgerOpts, solana.WithLogger(logger))
	}
	base := []ClientOption{WithLedger(solana.New(rpc, ledgerOpts...))}

	if cfg.IndexerURL != "" {
		idxOpts := rpcOpts
		if cfg.IndexerToken != "" {
			idxOpts = append(idxOpts[:len(idxOpts):len(idxOpts)], jsonrpc.WithBearerToken(cfg.IndexerToken))
		}
		idxRPC, err := jsonrpc.New(cfg.IndexerURL, idxOpts...)
		if err != nil {
			return nil, fmt.Errorf("indexer endpoint: %w", err)
		}
		base = append(base, WithIndexer(indexer.New(idxRPC)))
	}
	if !cfg.ProgramID.IsZero() {
		base = append(base, WithProgramID(cfg.ProgramID))
	}

	return NewClient(append(base, opts...)...)
}
