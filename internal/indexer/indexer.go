// Package indexer implements core.Indexer over the indexer's JSON-RPC API.
//
// The indexer answers get_blobs and get_proof with null until it has
// processed the requested slot. Null is reported as absence, not failure.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/meigma/dataanchor/core"
	"github.com/meigma/dataanchor/internal/jsonrpc"
)

// Compile-time interface implementation check.
var _ core.Indexer = (*Indexer)(nil)

// Indexer queries a blob indexer.
type Indexer struct {
	rpc *jsonrpc.Client
}

// New creates an Indexer that sends requests through rpc.
func New(rpc *jsonrpc.Client) *Indexer {
	return &Indexer{rpc: rpc}
}

// Blobs returns the blobs appended to container during slot.
func (i *Indexer) Blobs(ctx context.Context, container core.Pubkey, slot core.Slot) ([]core.BlobRecord, bool, error) {
	res, ok, err := i.call(ctx, "get_blobs", container, slot)
	if err != nil || !ok {
		return nil, ok, err
	}
	var records []core.BlobRecord
	if err := json.Unmarshal([]byte(res.Raw), &records); err != nil {
		return nil, false, fmt.Errorf("%w: get_blobs result: %v", core.ErrDecode, err)
	}
	if records == nil {
		records = []core.BlobRecord{}
	}
	return records, true, nil
}

// Proof returns the proof for container at slot.
func (i *Indexer) Proof(ctx context.Context, container core.Pubkey, slot core.Slot) (*core.Proof, bool, error) {
	res, ok, err := i.call(ctx, "get_proof", container, slot)
	if err != nil || !ok {
		return nil, ok, err
	}
	var proof core.Proof
	if err := json.Unmarshal([]byte(res.Raw), &proof); err != nil {
		return nil, false, fmt.Errorf("%w: get_proof result: %v", core.ErrDecode, err)
	}
	return &proof, true, nil
}

func (i *Indexer) call(ctx context.Context, method string, container core.Pubkey, slot core.Slot) (gjson.Result, bool, error) {
	res, err := i.rpc.Call(ctx, method, []any{container.String(), uint64(slot)})
	if err != nil {
		return gjson.Result{}, false, mapError(err)
	}
	if !res.Exists() || res.Type == gjson.Null {
		return gjson.Result{}, false, nil
	}
	return res, true, nil
}

// mapError converts transport errors to dataanchor sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr *jsonrpc.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %w", core.ErrUnauthorized, err)
		case statusErr.Temporary():
			return fmt.Errorf("%w: %w", core.ErrIndexerUnavailable, err)
		}
		return fmt.Errorf("indexer: %w", err)
	}
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("indexer: %w", err)
	}
	return fmt.Errorf("%w: %w", core.ErrIndexerUnavailable, err)
}
