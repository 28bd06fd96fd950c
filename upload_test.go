package dataanchor

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/dataanchor/internal/chunk"
	"github.com/meigma/dataanchor/internal/program"
	"github.com/meigma/dataanchor/internal/testutil/memledger"
	"github.com/meigma/dataanchor/internal/tx"
)

func TestUpload_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		size       int
		chunkSize  int
		codec      Compression
		wantChunks int
	}{
		{name: "empty", size: 0, wantChunks: 1},
		{name: "single chunk", size: 46, wantChunks: 1},
		{name: "exactly one chunk", size: MaxChunkSize, wantChunks: 1},
		{name: "one byte over", size: MaxChunkSize + 1, wantChunks: 2},
		{name: "many chunks", size: 5*MaxChunkSize + 17, wantChunks: 6},
		{name: "small chunk size", size: 1000, chunkSize: 100, wantChunks: 10},
		{name: "zstd", size: 4000, codec: CompressionZstd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			ctx := context.Background()
			id := env.initialized(t, "roundtrip")
			payload := testPayload(tt.size)

			opts := []UploadOption{WithCompression(tt.codec)}
			if tt.chunkSize > 0 {
				opts = append(opts, WithChunkSize(tt.chunkSize))
			}
			outcomes, _, err := env.client.Upload(ctx, payload, FixedFee(10), id, opts...)
			require.NoError(t, err)
			if tt.wantChunks > 0 {
				assert.Len(t, outcomes, tt.wantChunks)
			}
			for i, o := range outcomes {
				assert.Equal(t, i, o.Index, "outcomes are ordered by position")
				assert.False(t, o.Signature.IsZero())
			}

			got, err := env.client.GetBySignatures(ctx, id, signaturesOf(outcomes))
			require.NoError(t, err)
			assert.Equal(t, len(payload), len(got))
			assert.True(t, slices.Equal(payload, got))
		})
	}
}

func TestUpload_CompressionShrinksTransactions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	id := env.initialized(t, "zstd")
	payload := make([]byte, 10*MaxChunkSize)

	outcomes, _, err := env.client.Upload(context.Background(), payload, nil, id, WithCompression(CompressionZstd))
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)
}

func TestUpload_ContainerNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, _, err := env.client.Upload(context.Background(), []byte("data"), nil, Namespace("missing"))
	require.ErrorIs(t, err, ErrContainerNotFound)
	assert.Empty(t, env.ledger.ComputeUnitPrices(), "nothing is submitted")
}

func TestUpload_InvalidChunkSize(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	id := env.initialized(t, "chunks")
	for _, size := range []int{-1, 0, MaxChunkSize + 1} {
		_, _, err := env.client.Upload(context.Background(), []byte("data"), nil, id, WithChunkSize(size))
		assert.Error(t, err, "chunk size %d", size)
	}
}

func TestUpload_FeeAppliedToEveryChunk(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	id := env.initialized(t, "fees")
	env.ledger.SetFees(100, 200, 300, 400)
	before := len(env.ledger.ComputeUnitPrices())

	_, _, err := env.client.Upload(context.Background(), testPayload(3*MaxChunkSize), PercentileFee(50), id)
	require.NoError(t, err)

	prices := env.ledger.ComputeUnitPrices()[before:]
	assert.Equal(t, []uint64{200, 200, 200}, prices)
}

func TestUpload_FeeError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	id := env.initialized(t, "fees")
	boom := errors.New("boom")
	fee := FeeFunc(func(context.Context, FeeContext) (FeeParams, error) { return FeeParams{}, boom })

	_, _, err := env.client.Upload(context.Background(), []byte("x"), fee, id)
	assert.ErrorIs(t, err, boom)
}

func TestUpload_Timeout(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	id := env.initialized(t, "slow")
	payload := testPayload(3 * MaxChunkSize)
	env.ledger.HoldChunks(1)

	outcomes, _, err := env.client.Upload(ctx, payload, nil, id, WithTimeout(50*time.Millisecond))
	require.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrTransactionRejected)

	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	require.Len(t, upErr.Chunks, 3)
	assert.Equal(t, ChunkConfirmed, upErr.Chunks[0].Status)
	assert.Equal(t, ChunkTimeout, upErr.Chunks[1].Status)
	assert.ErrorIs(t, upErr.Chunks[1].Err, ErrTimeout)
	assert.False(t, upErr.Chunks[1].Signature.IsZero(), "timed out chunks were submitted")
	assert.Equal(t, ChunkConfirmed, upErr.Chunks[2].Status)
	assert.Len(t, outcomes, 2)
	assert.Equal(t, outcomes, upErr.Outcomes)

	// The unconfirmed chunk landed anyway.
	env.ledger.Release()
	sigs := []Signature{upErr.Chunks[0].Signature, upErr.Chunks[1].Signature, upErr.Chunks[2].Signature}
	got, err := env.client.GetBySignatures(ctx, id, sigs)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestUpload_RejectionStopsUpload(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	id := env.initialized(t, "rejects")
	env.ledger.RejectChunks(2)

	outcomes, _, err := env.client.Upload(context.Background(), testPayload(5*MaxChunkSize), nil, id, WithConcurrency(1))
	require.ErrorIs(t, err, ErrTransactionRejected)
	assert.ErrorIs(t, err, ErrDecode)

	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	statuses := make([]ChunkStatus, len(upErr.Chunks))
	for i, r := range upErr.Chunks {
		statuses[i] = r.Status
	}
	assert.Equal(t, []ChunkStatus{ChunkConfirmed, ChunkConfirmed, ChunkFailed, ChunkNotSubmitted, ChunkNotSubmitted}, statuses)
	require.Len(t, outcomes, 2)
	assert.Equal(t, 0, outcomes[0].Index)
	assert.Equal(t, 1, outcomes[1].Index)

	var txErr *TransactionError
	require.ErrorAs(t, upErr.Chunks[2].Err, &txErr)
	assert.True(t, txErr.HasCustom)
}

func TestUpload_RejectionLandedWithError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	id := env.initialized(t, "landed")
	env.ledger.SkipPreflight()
	env.ledger.RejectChunks(0)

	_, _, err := env.client.Upload(context.Background(), []byte("data"), nil, id)
	require.ErrorIs(t, err, ErrTransactionRejected)

	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, ChunkFailed, upErr.Chunks[0].Status)
	assert.False(t, upErr.Chunks[0].Signature.IsZero())
}

func TestUpload_Cancelled(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	id := env.initialized(t, "cancel")
	env.ledger.HoldChunks(0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, _, err := env.client.Upload(ctx, []byte("data"), nil, id)
	require.ErrorIs(t, err, context.Canceled)

	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, ChunkTimeout, upErr.Chunks[0].Status, "submitted but unconfirmed")
}

func TestUpload_Progress(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	id := env.initialized(t, "progress")
	payload := testPayload(4*MaxChunkSize + 10)

	var mu sync.Mutex
	var events []ProgressEvent
	_, _, err := env.client.Upload(context.Background(), payload, nil, id, WithProgress(func(e ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 5)
	last := events[len(events)-1]
	assert.Equal(t, "upload", last.Operation)
	assert.Equal(t, int64(len(payload)), last.TotalBytes)
	assert.Equal(t, int64(len(payload)), last.BytesTransferred)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].BytesTransferred, events[i-1].BytesTransferred)
	}
}

func TestChunkStatus_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "not-submitted", ChunkNotSubmitted.String())
	assert.Equal(t, "confirmed", ChunkConfirmed.String())
	assert.Equal(t, "timeout", ChunkTimeout.String())
	assert.Equal(t, "failed", ChunkFailed.String())
	assert.Equal(t, "ChunkStatus(9)", ChunkStatus(9).String())
}

func TestUploadSlot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		outcomes []UploadOutcome
		want     Slot
	}{
		{name: "empty", want: 0},
		{name: "single", outcomes: []UploadOutcome{{Index: 0, Slot: 12}}, want: 12},
		{
			name: "first chunk landed last",
			outcomes: []UploadOutcome{
				{Index: 0, Slot: 15},
				{Index: 1, Slot: 14},
				{Index: 2, Slot: 13},
			},
			want: 15,
		},
		{
			name:     "first chunk unconfirmed",
			outcomes: []UploadOutcome{{Index: 1, Slot: 14}},
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, UploadSlot(tt.outcomes))
		})
	}
}

// slottingLedger starts a new slot after every accepted transaction, so each
// chunk of an upload lands in its own slot.
type slottingLedger struct {
	*memledger.Ledger
}

func (l slottingLedger) Submit(ctx context.Context, raw []byte) (Signature, error) {
	sig, err := l.Ledger.Submit(ctx, raw)
	if err == nil {
		l.NextSlot()
	}
	return sig, err
}

func TestUpload_SpansSlots(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	id := env.initialized(t, "spanning")

	client, err := NewClient(WithLedger(slottingLedger{env.ledger}), WithIndexer(env.indexer), WithPayer(env.payer))
	require.NoError(t, err)

	payload := testPayload(2*MaxChunkSize + 10)
	outcomes, _, err := client.Upload(ctx, payload, FixedFee(10), id, WithConcurrency(1))
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Less(t, outcomes[0].Slot, outcomes[1].Slot)
	assert.Less(t, outcomes[1].Slot, outcomes[2].Slot)

	slot := UploadSlot(outcomes)
	assert.Equal(t, outcomes[0].Slot, slot)

	env.indexer.IndexThrough(env.ledger.Slot())
	blobs, ok, err := client.GetBlobs(ctx, slot, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, blobs, 1)
	assert.Equal(t, slot, blobs[0].Slot)
	assert.Equal(t, signaturesOf(outcomes), blobs[0].Signatures)
	got, err := BlobPayload(blobs[0])
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	later, ok, err := client.GetBlobs(ctx, outcomes[2].Slot, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, later, "the blob is reported once, at its first chunk's slot")
}

// stallingLedger accepts the first chunk's transaction but withholds the
// reply until the submitting context ends. Other chunks are sent only after
// the first has landed.
type stallingLedger struct {
	*memledger.Ledger
	landed chan struct{}
}

func (l *stallingLedger) Submit(ctx context.Context, raw []byte) (Signature, error) {
	c, ok := insertedChunk(raw)
	if !ok || c.Index != 0 {
		select {
		case <-l.landed:
		case <-ctx.Done():
			return Signature{}, ctx.Err()
		}
		return l.Ledger.Submit(ctx, raw)
	}
	if _, err := l.Ledger.Submit(ctx, raw); err != nil {
		return Signature{}, err
	}
	close(l.landed)
	<-ctx.Done()
	return Signature{}, ctx.Err()
}

func insertedChunk(raw []byte) (chunk.Chunk, bool) {
	t, err := tx.Decode(raw)
	if err != nil || len(t.Message.Instructions) <= program.InstructionIndex {
		return chunk.Chunk{}, false
	}
	ix := t.Message.Instructions[program.InstructionIndex]
	c, err := program.DecodeInsertChunk(ix.Data)
	return c, err == nil
}

func TestUpload_InterruptedSubmitIsUnknown(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	id := env.initialized(t, "interrupted")
	env.ledger.RejectChunks(1)

	client, err := NewClient(WithLedger(&stallingLedger{Ledger: env.ledger, landed: make(chan struct{})}), WithPayer(env.payer))
	require.NoError(t, err)

	_, _, err = client.Upload(ctx, testPayload(3*MaxChunkSize), nil, id, WithConcurrency(2))
	require.ErrorIs(t, err, ErrTransactionRejected)

	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	require.Len(t, upErr.Chunks, 3)
	assert.Equal(t, ChunkTimeout, upErr.Chunks[0].Status, "a chunk cut off mid-submit may have landed")
	assert.False(t, upErr.Chunks[0].Signature.IsZero())
	assert.Equal(t, ChunkFailed, upErr.Chunks[1].Status)
	assert.Equal(t, ChunkNotSubmitted, upErr.Chunks[2].Status)

	landed, ok := env.ledger.Status(upErr.Chunks[0].Signature)
	require.True(t, ok)
	assert.Nil(t, landed.Err)
}
