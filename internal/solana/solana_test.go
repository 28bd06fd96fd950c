package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/meigma/dataanchor/core"
	"github.com/meigma/dataanchor/internal/jsonrpc"
	"github.com/meigma/dataanchor/internal/keypair"
	"github.com/meigma/dataanchor/internal/tx"
)

// rpcHandler answers one method. It returns the JSON members to place after
// the id, for example `"result":1` or `"error":{...}`.
type rpcHandler func(params gjson.Result) string

// newFakeNode serves handlers over HTTP and returns a Ledger pointed at them.
func newFakeNode(t *testing.T, handlers map[string]rpcHandler) *Ledger {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     string          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		h, ok := handlers[req.Method]
		if !ok {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"error":{"code":-32601,"message":"Method not found"}}`, req.ID)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,%s}`, req.ID, h(gjson.ParseBytes(req.Params)))
	}))
	t.Cleanup(srv.Close)

	rpc, err := jsonrpc.New(srv.URL, jsonrpc.WithRetryTimeout(0))
	require.NoError(t, err)
	return New(rpc, WithPollInterval(10*time.Millisecond))
}

func TestLatestBlockhash(t *testing.T) {
	t.Parallel()

	want := core.Hash{1, 2, 3}
	l := newFakeNode(t, map[string]rpcHandler{
		"getLatestBlockhash": func(p gjson.Result) string {
			assert.Equal(t, "confirmed", p.Get("0.commitment").String())
			return fmt.Sprintf(`"result":{"context":{"slot":1},"value":{"blockhash":%q,"lastValidBlockHeight":9}}`, want)
		},
	})

	got, err := l.LatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	sig := core.Signature{7}
	raw := []byte("wire transaction")
	l := newFakeNode(t, map[string]rpcHandler{
		"sendTransaction": func(p gjson.Result) string {
			assert.Equal(t, base64.StdEncoding.EncodeToString(raw), p.Get("0").String())
			assert.Equal(t, "base64", p.Get("1.encoding").String())
			return fmt.Sprintf(`"result":%q`, sig)
		},
	})

	got, err := l.Submit(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, sig, got)
}

func TestSubmit_PreflightFailure(t *testing.T) {
	t.Parallel()

	l := newFakeNode(t, map[string]rpcHandler{
		"sendTransaction": func(gjson.Result) string {
			return `"error":{"code":-32002,"message":"Transaction simulation failed: Error processing Instruction 2: custom program error: 0xbc4","data":{"err":{"InstructionError":[2,{"Custom":3012}]},"logs":[]}}`
		},
	})

	_, err := l.Submit(context.Background(), []byte{1})
	require.ErrorIs(t, err, core.ErrTransactionRejected)
	var txErr *core.TransactionError
	require.ErrorAs(t, err, &txErr)
	code, ok := txErr.InstructionError(2)
	assert.True(t, ok)
	assert.Equal(t, uint32(3012), code)
}

func TestSubmit_AlreadyProcessed(t *testing.T) {
	t.Parallel()

	kp, err := keypair.Generate()
	require.NoError(t, err)
	msg, err := tx.Compile(kp.PublicKey(), []tx.Instruction{{
		ProgramID: core.Pubkey{9},
		Accounts:  []tx.AccountMeta{{Pubkey: kp.PublicKey(), IsSigner: true, IsWritable: true}},
		Data:      []byte{1, 2, 3},
	}}, core.Hash{4})
	require.NoError(t, err)
	signed, err := tx.Sign(context.Background(), msg, kp)
	require.NoError(t, err)
	raw, err := signed.Encode()
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     []byte
		wantErr bool
	}{
		{name: "resent transaction", raw: raw},
		{name: "undecodable transaction", raw: []byte{1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := newFakeNode(t, map[string]rpcHandler{
				"sendTransaction": func(gjson.Result) string {
					return `"error":{"code":-32002,"message":"Transaction simulation failed: This transaction has already been processed","data":{"err":"AlreadyProcessed","logs":[]}}`
				},
			})

			got, err := l.Submit(context.Background(), tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, core.ErrTransactionRejected)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, signed.ID(), got)
		})
	}
}

func TestSubmit_OtherRejection(t *testing.T) {
	t.Parallel()

	l := newFakeNode(t, map[string]rpcHandler{
		"sendTransaction": func(gjson.Result) string {
			return `"error":{"code":-32003,"message":"Transaction signature verification failure"}`
		},
	})

	_, err := l.Submit(context.Background(), []byte{1})
	require.ErrorIs(t, err, core.ErrTransactionRejected)
	assert.Contains(t, err.Error(), "signature verification failure")
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	polls := 0
	l := newFakeNode(t, map[string]rpcHandler{
		"getSignatureStatuses": func(p gjson.Result) string {
			assert.True(t, p.Get("1.searchTransactionHistory").Bool())
			mu.Lock()
			defer mu.Unlock()
			polls++
			switch polls {
			case 1:
				return `"result":{"context":{"slot":5},"value":[null]}`
			case 2:
				return `"result":{"context":{"slot":6},"value":[{"slot":77,"confirmations":0,"err":null,"confirmationStatus":"processed"}]}`
			default:
				return `"result":{"context":{"slot":7},"value":[{"slot":77,"confirmations":1,"err":null,"confirmationStatus":"confirmed"}]}`
			}
		},
	})

	slot, err := l.Confirm(context.Background(), core.Signature{1})
	require.NoError(t, err)
	assert.Equal(t, core.Slot(77), slot)
}

func TestConfirm_Failed(t *testing.T) {
	t.Parallel()

	l := newFakeNode(t, map[string]rpcHandler{
		"getSignatureStatuses": func(gjson.Result) string {
			return `"result":{"context":{"slot":7},"value":[{"slot":9,"err":{"InstructionError":[2,{"Custom":0}]},"confirmationStatus":"confirmed"}]}`
		},
	})

	_, err := l.Confirm(context.Background(), core.Signature{1})
	var txErr *core.TransactionError
	require.ErrorAs(t, err, &txErr)
	code, ok := txErr.InstructionError(2)
	assert.True(t, ok)
	assert.Equal(t, uint32(0), code)
}

func TestConfirm_ContextDeadline(t *testing.T) {
	t.Parallel()

	l := newFakeNode(t, map[string]rpcHandler{
		"getSignatureStatuses": func(gjson.Result) string {
			return `"result":{"context":{"slot":5},"value":[null]}`
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := l.Confirm(ctx, core.Signature{1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetTransaction(t *testing.T) {
	t.Parallel()

	found := core.Signature{1}
	failed := core.Signature{2}
	raw := []byte{9, 9, 9}
	l := newFakeNode(t, map[string]rpcHandler{
		"getTransaction": func(p gjson.Result) string {
			assert.Equal(t, int64(0), p.Get("1.maxSupportedTransactionVersion").Int())
			enc := base64.StdEncoding.EncodeToString(raw)
			switch p.Get("0").String() {
			case found.String():
				return fmt.Sprintf(`"result":{"slot":12,"transaction":[%q,"base64"],"meta":{"err":null}}`, enc)
			case failed.String():
				return fmt.Sprintf(`"result":{"slot":13,"transaction":[%q,"base64"],"meta":{"err":{"InstructionError":[2,"InvalidAccountData"]}}}`, enc)
			default:
				return `"result":null`
			}
		},
	})

	tx, err := l.GetTransaction(context.Background(), found)
	require.NoError(t, err)
	assert.Equal(t, core.Slot(12), tx.Slot)
	assert.Equal(t, raw, tx.Raw)
	assert.Nil(t, tx.Err)

	tx, err = l.GetTransaction(context.Background(), failed)
	require.NoError(t, err)
	require.NotNil(t, tx.Err)
	assert.Equal(t, 2, tx.Err.InstructionIndex)
	assert.Equal(t, "InvalidAccountData", tx.Err.Reason)

	_, err = l.GetTransaction(context.Background(), core.Signature{3})
	assert.ErrorIs(t, err, core.ErrSignatureNotFound)
}

func TestGetAccount(t *testing.T) {
	t.Parallel()

	exists := core.Pubkey{1}
	owner := core.Pubkey{2}
	l := newFakeNode(t, map[string]rpcHandler{
		"getAccountInfo": func(p gjson.Result) string {
			if p.Get("0").String() != exists.String() {
				return `"result":{"context":{"slot":1},"value":null}`
			}
			return fmt.Sprintf(`"result":{"context":{"slot":1},"value":{"owner":%q,"lamports":1000,"data":[%q,"base64"],"executable":false}}`,
				owner, base64.StdEncoding.EncodeToString([]byte("state")))
		},
	})

	acct, err := l.GetAccount(context.Background(), exists)
	require.NoError(t, err)
	assert.Equal(t, owner, acct.Owner)
	assert.Equal(t, uint64(1000), acct.Lamports)
	assert.Equal(t, []byte("state"), acct.Data)

	_, err = l.GetAccount(context.Background(), core.Pubkey{3})
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
}

func TestRecentPrioritizationFees(t *testing.T) {
	t.Parallel()

	l := newFakeNode(t, map[string]rpcHandler{
		"getRecentPrioritizationFees": func(p gjson.Result) string {
			assert.Len(t, p.Get("0").Array(), 1)
			return `"result":[{"slot":1,"prioritizationFee":0},{"slot":2,"prioritizationFee":1500}]`
		},
	})

	fees, err := l.RecentPrioritizationFees(context.Background(), []core.Pubkey{{1}})
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1500}, fees)
}

func TestUnauthorized(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	rpc, err := jsonrpc.New(srv.URL)
	require.NoError(t, err)

	_, err = New(rpc).LatestBlockhash(context.Background())
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestParseTransactionError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		json  string
		index int
		code  uint32
		has   bool
		want  string
	}{
		{"string", `"BlockhashNotFound"`, -1, 0, false, "BlockhashNotFound"},
		{"custom", `{"InstructionError":[2,{"Custom":6000}]}`, 2, 6000, true, ""},
		{"builtin", `{"InstructionError":[0,"InvalidInstructionData"]}`, 0, 0, false, "InvalidInstructionData"},
		{"struct", `{"InsufficientFundsForRent":{"account_index":0}}`, -1, 0, false, "InsufficientFundsForRent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseTransactionError(gjson.Parse(tt.json))
			assert.Equal(t, tt.index, got.InstructionIndex)
			assert.Equal(t, tt.code, got.Custom)
			assert.Equal(t, tt.has, got.HasCustom)
			assert.Equal(t, tt.want, got.Reason)
		})
	}
}
