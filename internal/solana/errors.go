package solana

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/meigma/dataanchor/core"
	"github.com/meigma/dataanchor/internal/jsonrpc"
)

// codePreflightFailure is the RPC error code for a transaction that failed simulation.
const codePreflightFailure = -32002

// reasonAlreadyProcessed is the preflight error for a resent transaction.
const reasonAlreadyProcessed = "AlreadyProcessed"

// mapError converts transport errors to dataanchor sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var statusErr *jsonrpc.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", core.ErrUnauthorized, err)
		}
	}
	return fmt.Errorf("ledger rpc: %w", err)
}

// rejection converts an RPC error from sendTransaction into a transaction error.
func rejection(rpcErr *jsonrpc.Error) *core.TransactionError {
	if rpcErr.Code == codePreflightFailure {
		if e := gjson.Get(rpcErr.Data, "err"); e.Exists() && e.Type != gjson.Null {
			return ParseTransactionError(e)
		}
	}
	return &core.TransactionError{InstructionIndex: -1, Reason: rpcErr.Message}
}

// ParseTransactionError decodes the ledger's JSON transaction error. It
// accepts the forms the ledger emits:
//
//	"BlockhashNotFound"
//	{"InstructionError":[2,{"Custom":3012}]}
//	{"InstructionError":[0,"InvalidInstructionData"]}
//	{"InsufficientFundsForRent":{"account_index":0}}
func ParseTransactionError(v gjson.Result) *core.TransactionError {
	if v.Type == gjson.String {
		return &core.TransactionError{InstructionIndex: -1, Reason: v.String()}
	}
	if ie := v.Get("InstructionError"); ie.IsArray() {
		parts := ie.Array()
		out := &core.TransactionError{InstructionIndex: -1, Reason: ie.Raw}
		if len(parts) != 2 {
			return out
		}
		out.InstructionIndex = int(parts[0].Int())
		detail := parts[1]
		switch {
		case detail.Type == gjson.String:
			out.Reason = detail.String()
		case detail.Get("Custom").Exists():
			out.Custom = uint32(detail.Get("Custom").Uint())
			out.HasCustom = true
			out.Reason = ""
		default:
			out.Reason = detail.Raw
		}
		return out
	}
	reason := v.Raw
	v.ForEach(func(key, _ gjson.Result) bool {
		reason = key.String()
		return false
	})
	return &core.TransactionError{InstructionIndex: -1, Reason: reason}
}
