// Package rpcnode serves an in-memory ledger over the ledger and indexer
// JSON-RPC APIs, so clients can be exercised end to end without a network.
package rpcnode

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/meigma/dataanchor/core"
	"github.com/meigma/dataanchor/internal/testutil/memledger"
	"github.com/meigma/dataanchor/internal/tx"
)

// JSON-RPC error codes used by the node.
const (
	codeInvalidParams      = -32602
	codeMethodNotFound     = -32601
	codePreflightFailure   = -32002
	codeTransactionInvalid = -32003
)

// Option configures a Node.
type Option func(*Node)

// WithIndexerToken requires a bearer token on indexer methods.
func WithIndexerToken(token string) Option {
	return func(n *Node) {
		n.token = token
	}
}

// WithAutoIndex makes every slot visible to the indexer as soon as it is
// queried.
func WithAutoIndex() Option {
	return func(n *Node) {
		n.autoIndex = true
	}
}

// Node answers JSON-RPC requests from a memledger.Ledger.
type Node struct {
	ledger    *memledger.Ledger
	indexer   *memledger.Indexer
	token     string
	autoIndex bool
}

// New creates a node over l.
func New(l *memledger.Ledger, opts ...Option) *Node {
	n := &Node{ledger: l, indexer: l.Indexer()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Ledger returns the backing ledger.
func (n *Node) Ledger() *memledger.Ledger { return n.ledger }

// Indexer returns the indexer whose visibility the node serves.
func (n *Node) Indexer() *memledger.Indexer { return n.indexer }

// Start serves the node on a local listener until Close is called on the
// returned server.
func (n *Node) Start() *httptest.Server {
	return httptest.NewServer(n)
}

type request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *rpcError) Error() string { return e.Message }

// ServeHTTP implements http.Handler.
func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	if isIndexerMethod(req.Method) && n.token != "" && r.Header.Get("Authorization") != "Bearer "+n.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := n.dispatch(r, req)
	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	var rerr *rpcError
	switch {
	case err == nil:
		resp["result"] = result
	case errors.As(err, &rerr):
		resp["error"] = rerr
	default:
		resp["error"] = &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func isIndexerMethod(method string) bool {
	return strings.HasPrefix(method, "get_")
}

func (n *Node) dispatch(r *http.Request, req request) (any, error) {
	ctx := r.Context()
	l := n.ledger
	switch req.Method {
	case "getLatestBlockhash":
		h, err := l.LatestBlockhash(ctx)
		if err != nil {
			return nil, err
		}
		slot := l.Slot()
		return withContext(slot, map[string]any{
			"blockhash":            h.String(),
			"lastValidBlockHeight": uint64(slot) + 150,
		}), nil

	case "sendTransaction":
		var encoded string
		if err := param(req, 0, &encoded); err != nil {
			return nil, err
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, &rpcError{Code: codeTransactionInvalid, Message: "invalid base64 transaction"}
		}
		if t, err := tx.Decode(raw); err == nil && l.Processed(t.ID()) {
			return nil, &rpcError{
				Code:    codePreflightFailure,
				Message: "Transaction simulation failed: This transaction has already been processed",
				Data:    map[string]any{"err": "AlreadyProcessed"},
			}
		}
		sig, err := l.Submit(ctx, raw)
		var txErr *core.TransactionError
		if errors.As(err, &txErr) {
			return nil, &rpcError{
				Code:    codePreflightFailure,
				Message: "Transaction simulation failed: " + txErr.Error(),
				Data:    map[string]any{"err": encodeTransactionError(txErr)},
			}
		}
		if err != nil {
			return nil, err
		}
		return sig.String(), nil

	case "getSignatureStatuses":
		var sigs []string
		if err := param(req, 0, &sigs); err != nil {
			return nil, err
		}
		statuses := make([]any, len(sigs))
		for i, s := range sigs {
			sig, err := core.SignatureFromBase58(s)
			if err != nil {
				return nil, err
			}
			confirmed, ok := l.Status(sig)
			if !ok {
				continue
			}
			statuses[i] = map[string]any{
				"slot":               confirmed.Slot,
				"confirmations":      nil,
				"err":                encodeTransactionError(confirmed.Err),
				"confirmationStatus": core.CommitmentFinalized,
			}
		}
		return withContext(l.Slot(), statuses), nil

	case "getTransaction":
		sig, err := signatureParam(req, 0)
		if err != nil {
			return nil, err
		}
		confirmed, err := l.GetTransaction(ctx, sig)
		if errors.Is(err, core.ErrSignatureNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"slot":        confirmed.Slot,
			"transaction": []string{base64.StdEncoding.EncodeToString(confirmed.Raw), "base64"},
			"meta":        map[string]any{"err": encodeTransactionError(confirmed.Err)},
		}, nil

	case "getAccountInfo":
		addr, err := pubkeyParam(req, 0)
		if err != nil {
			return nil, err
		}
		acct, err := l.GetAccount(ctx, addr)
		if errors.Is(err, core.ErrAccountNotFound) {
			return withContext(l.Slot(), nil), nil
		}
		if err != nil {
			return nil, err
		}
		return withContext(l.Slot(), map[string]any{
			"lamports":   acct.Lamports,
			"owner":      acct.Owner.String(),
			"data":       []string{base64.StdEncoding.EncodeToString(acct.Data), "base64"},
			"executable": false,
		}), nil

	case "getRecentPrioritizationFees":
		fees, err := l.RecentPrioritizationFees(ctx, nil)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, len(fees))
		for i, f := range fees {
			out[i] = map[string]any{"slot": l.Slot(), "prioritizationFee": f}
		}
		return out, nil

	case "get_blobs", "get_proof":
		container, err := pubkeyParam(req, 0)
		if err != nil {
			return nil, err
		}
		var slot core.Slot
		if err := param(req, 1, &slot); err != nil {
			return nil, err
		}
		if n.autoIndex {
			n.indexer.IndexThrough(l.Slot())
		}
		if req.Method == "get_blobs" {
			blobs, ok, err := n.indexer.Blobs(ctx, container, slot)
			if err != nil || !ok {
				return nil, err
			}
			return blobs, nil
		}
		proof, ok, err := n.indexer.Proof(ctx, container, slot)
		if err != nil || !ok {
			return nil, err
		}
		return proof, nil

	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: "Method not found"}
	}
}

func withContext(slot core.Slot, value any) map[string]any {
	return map[string]any{
		"context": map[string]any{"slot": slot},
		"value":   value,
	}
}

func param(req request, i int, v any) error {
	if i >= len(req.Params) {
		return &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf("missing parameter %d", i)}
	}
	if err := json.Unmarshal(req.Params[i], v); err != nil {
		return &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf("parameter %d: %v", i, err)}
	}
	return nil
}

func signatureParam(req request, i int) (core.Signature, error) {
	var sig core.Signature
	if err := param(req, i, &sig); err != nil {
		return core.Signature{}, err
	}
	return sig, nil
}

func pubkeyParam(req request, i int) (core.Pubkey, error) {
	var p core.Pubkey
	if err := param(req, i, &p); err != nil {
		return core.Pubkey{}, err
	}
	return p, nil
}

// encodeTransactionError renders e in the ledger's JSON error form.
func encodeTransactionError(e *core.TransactionError) any {
	switch {
	case e == nil:
		return nil
	case e.InstructionIndex < 0:
		return e.Reason
	case e.HasCustom:
		return map[string]any{"InstructionError": []any{e.InstructionIndex, map[string]uint32{"Custom": e.Custom}}}
	default:
		return map[string]any{"InstructionError": []any{e.InstructionIndex, e.Reason}}
	}
}
