// Package cache caches confirmed transactions in memory and, optionally, on
// disk.
package cache

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/meigma/dataanchor/core"
)

// DefaultSize is the number of transactions kept when no size is given.
const DefaultSize = 4096

// Compile-time interface implementation check.
var _ core.Ledger = (*Ledger)(nil)

// Ledger wraps a core.Ledger and caches GetTransaction results.
// Confirmed transactions never change, so hits are served without
// revalidation. Lookups that fail are not cached: a signature missing now may
// be found once its transaction is confirmed.
//
// Cached values are shared between callers and must not be modified.
type Ledger struct {
	core.Ledger

	txs    *lru.Cache[core.Signature, *core.ConfirmedTransaction]
	store  *Store
	logger *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStore adds a persistent tier consulted after the in-memory cache.
func WithStore(s *Store) Option {
	return func(c *Ledger) {
		c.store = s
	}
}

// New wraps fallback with a cache holding up to size transactions.
func New(fallback core.Ledger, size int, logger *slog.Logger, opts ...Option) (*Ledger, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if size <= 0 {
		size = DefaultSize
	}
	txs, err := lru.New[core.Signature, *core.ConfirmedTransaction](size)
	if err != nil {
		return nil, fmt.Errorf("create transaction cache: %w", err)
	}
	c := &Ledger{Ledger: fallback, txs: txs, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetTransaction returns the cached transaction for sig or fetches it.
func (c *Ledger) GetTransaction(ctx context.Context, sig core.Signature) (*core.ConfirmedTransaction, error) {
	if tx, ok := c.txs.Get(sig); ok {
		c.logger.Debug("cache hit", "signature", sig)
		return tx, nil
	}
	if c.store != nil {
		if tx, ok := c.store.Get(sig); ok {
			c.logger.Debug("store hit", "signature", sig)
			c.txs.Add(sig, tx)
			return tx, nil
		}
	}
	c.logger.Debug("cache miss", "signature", sig)
	tx, err := c.Ledger.GetTransaction(ctx, sig)
	if err != nil {
		return nil, err
	}
	c.txs.Add(sig, tx)
	if c.store != nil {
		if err := c.store.Put(tx); err != nil {
			c.logger.Warn("failed to store transaction", "signature", sig, "error", err)
		}
	}
	return tx, nil
}

// Len returns the number of cached transactions.
func (c *Ledger) Len() int { return c.txs.Len() }

// Purge drops every cached transaction.
func (c *Ledger) Purge() { c.txs.Purge() }
