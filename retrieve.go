package dataanchor

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/dataanchor/internal/chunk"
	"github.com/meigma/dataanchor/internal/compress"
	"github.com/meigma/dataanchor/internal/program"
	"github.com/meigma/dataanchor/internal/tx"
)

// fetchConcurrency bounds parallel transaction fetches in GetBySignatures.
const fetchConcurrency = 8

// GetBySignatures reconstructs a payload from the ledger, given the
// signatures of its chunk transactions in any order.
//
// Chunk position metadata, not signature order, determines the result. It
// fails with ErrIncompleteChunkSet when positions are missing or repeated,
// ErrSignatureNotFound when a transaction is unknown, and ErrDecode when a
// transaction carries no chunk for the container. The indexer is not used.
func (c *Client) GetBySignatures(ctx context.Context, id Identifier, sigs []Signature) ([]byte, error) {
	container, err := c.Resolve(id)
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("%w: no signatures", ErrIncompleteChunkSet)
	}

	chunks := make([]chunk.Chunk, len(sigs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, sig := range sigs {
		g.Go(func() error {
			ch, err := c.fetchChunk(gctx, container, sig)
			if err != nil {
				return err
			}
			chunks[i] = ch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data, codec, err := chunk.Reassemble(container, chunks)
	if err != nil {
		return nil, err
	}
	return compress.Decode(codec, data)
}

// fetchChunk returns the chunk for container carried by the transaction sig.
func (c *Client) fetchChunk(ctx context.Context, container Pubkey, sig Signature) (chunk.Chunk, error) {
	confirmed, err := c.txs.GetTransaction(ctx, sig)
	if err != nil {
		return chunk.Chunk{}, fmt.Errorf("get transaction %s: %w", sig, err)
	}
	if confirmed.Err != nil {
		return chunk.Chunk{}, fmt.Errorf("transaction %s: %w", sig, confirmed.Err)
	}
	t, err := tx.Decode(confirmed.Raw)
	if err != nil {
		return chunk.Chunk{}, fmt.Errorf("%w: transaction %s: %v", ErrDecode, sig, err)
	}

	for _, ix := range t.Message.Instructions {
		pid, err := t.Message.Program(ix)
		if err != nil || pid != c.programID || program.Identify(ix.Data) != program.KindInsertChunk {
			continue
		}
		target, err := t.Message.Account(ix, 0)
		if err != nil || target != container {
			continue
		}
		ch, err := program.DecodeInsertChunk(ix.Data)
		if err != nil {
			return chunk.Chunk{}, fmt.Errorf("transaction %s: %w", sig, err)
		}
		return ch, nil
	}
	return chunk.Chunk{}, fmt.Errorf("%w: transaction %s carries no chunk for container %s", ErrDecode, sig, container)
}
