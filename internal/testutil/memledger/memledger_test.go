package memledger

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/dataanchor/core"
	"github.com/meigma/dataanchor/internal/chunk"
	"github.com/meigma/dataanchor/internal/keypair"
	"github.com/meigma/dataanchor/internal/program"
	"github.com/meigma/dataanchor/internal/tx"
)

var testProgram = core.MustPubkey("9i3Lf1qZkiUE7SeoS7kP8zhtFpVt1y6mmQqZFSYdYc8S")

func newPayer(t *testing.T, seed byte) *keypair.Keypair {
	t.Helper()
	kp, err := keypair.FromSeed(bytes.Repeat([]byte{seed}, 32))
	require.NoError(t, err)
	return kp
}

func submit(t *testing.T, l *Ledger, payer *keypair.Keypair, ix tx.Instruction) (core.Signature, error) {
	t.Helper()
	ctx := context.Background()
	bh, err := l.LatestBlockhash(ctx)
	require.NoError(t, err)
	ixs, err := program.WithComputeBudget(core.FeeParams{ComputeUnitPrice: 7}, 50_000, ix)
	require.NoError(t, err)
	msg, err := tx.Compile(payer.PublicKey(), ixs, bh)
	require.NoError(t, err)
	signed, err := tx.Sign(ctx, msg, payer)
	require.NoError(t, err)
	raw, err := signed.Encode()
	require.NoError(t, err)
	return l.Submit(ctx, raw)
}

func initialize(t *testing.T, l *Ledger, payer *keypair.Keypair, ns string) core.Pubkey {
	t.Helper()
	addr, _, err := program.ContainerAddress(l.Program(), ns)
	require.NoError(t, err)
	_, err = submit(t, l, payer, program.Initialize(l.Program(), addr, payer.PublicKey(), ns))
	require.NoError(t, err)
	return addr
}

func TestInitialize(t *testing.T) {
	t.Parallel()

	l := New(testProgram)
	payer := newPayer(t, 1)
	addr := initialize(t, l, payer, "rewards")

	acct, err := l.GetAccount(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, testProgram, acct.Owner)
	state, err := program.DecodeContainer(acct.Data)
	require.NoError(t, err)
	assert.Equal(t, "rewards", state.Namespace)
	assert.Equal(t, payer.PublicKey(), state.Authority)

	l.NextSlot()
	_, err = submit(t, l, payer, program.Initialize(testProgram, addr, payer.PublicKey(), "rewards"))
	var txErr *core.TransactionError
	require.ErrorAs(t, err, &txErr)
	code, ok := txErr.InstructionError(program.InstructionIndex)
	require.True(t, ok)
	assert.Equal(t, program.CodeAccountAlreadyInUse, code)
	assert.Equal(t, []uint64{7}, l.ComputeUnitPrices(), "rejected transactions are not recorded")
}

func TestInitialize_WrongAddress(t *testing.T) {
	t.Parallel()

	l := New(testProgram)
	payer := newPayer(t, 1)
	_, err := submit(t, l, payer, program.Initialize(testProgram, core.Pubkey{1}, payer.PublicKey(), "rewards"))
	var txErr *core.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.True(t, txErr.HasCustom)
}

func TestInsertAndIndex(t *testing.T) {
	t.Parallel()

	l := New(testProgram)
	payer := newPayer(t, 1)
	addr := initialize(t, l, payer, "rewards")
	slot := l.NextSlot()

	chunks, err := chunk.Split(addr, []byte("hello, anchored world"), 8, core.CompressionNone)
	require.NoError(t, err)
	sigs := make([]core.Signature, len(chunks))
	// Land out of order.
	for _, i := range []int{2, 0, 1} {
		sigs[i], err = submit(t, l, payer, program.InsertChunk(testProgram, payer.PublicKey(), chunks[i]))
		require.NoError(t, err)
	}

	for _, sig := range sigs {
		got, err := l.Confirm(context.Background(), sig)
		require.NoError(t, err)
		assert.Equal(t, slot, got)
	}

	idx := l.Indexer()
	_, ok, err := idx.Blobs(context.Background(), addr, slot)
	require.NoError(t, err)
	assert.False(t, ok, "slot not indexed yet")

	idx.IndexThrough(slot)
	recs, ok, err := idx.Blobs(context.Background(), addr, slot)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, recs, 1)
	assert.Equal(t, sigs, recs[0].Signatures)
	assert.Equal(t, []byte("hello, anchored world"), bytes.Join(recs[0].Chunks, nil))

	proof, ok, err := idx.Proof(context.Background(), addr, slot)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, proof.ChunkDigests, 3)
	assert.Equal(t, proof.FinalHash, chunk.Chain(proof.InitialHash, proof.ChunkDigests))

	acct, err := l.GetAccount(context.Background(), addr)
	require.NoError(t, err)
	state, err := program.DecodeContainer(acct.Data)
	require.NoError(t, err)
	assert.Equal(t, proof.FinalHash, state.Hash)
	assert.Equal(t, uint64(3), state.Chunks)

	_, ok, err = idx.Proof(context.Background(), addr, slot-1)
	require.NoError(t, err)
	assert.False(t, ok, "nothing appended in the initialize slot")
}

func TestIndex_BlobAtFirstChunkSlot(t *testing.T) {
	t.Parallel()

	l := New(testProgram)
	payer := newPayer(t, 1)
	addr := initialize(t, l, payer, "rewards")

	chunks, err := chunk.Split(addr, []byte("spread over slots"), 6, core.CompressionNone)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	slots := make(map[int]core.Slot)
	for _, i := range []int{1, 0, 2} {
		slots[i] = l.NextSlot()
		_, err := submit(t, l, payer, program.InsertChunk(testProgram, payer.PublicKey(), chunks[i]))
		require.NoError(t, err)
	}

	idx := l.Indexer()
	idx.IndexThrough(l.Slot())
	for i, slot := range slots {
		recs, ok, err := idx.Blobs(context.Background(), addr, slot)
		require.NoError(t, err)
		require.True(t, ok)
		if i != 0 {
			assert.Empty(t, recs, "slot of chunk %d", i)
			continue
		}
		require.Len(t, recs, 1)
		assert.Equal(t, slot, recs[0].Slot)
		assert.Equal(t, []byte("spread over slots"), bytes.Join(recs[0].Chunks, nil))
	}
}

func TestSubmit_AlreadyProcessed(t *testing.T) {
	t.Parallel()

	l := New(testProgram)
	payer := newPayer(t, 1)
	addr, _, err := program.ContainerAddress(testProgram, "rewards")
	require.NoError(t, err)

	bh, err := l.LatestBlockhash(context.Background())
	require.NoError(t, err)
	msg, err := tx.Compile(payer.PublicKey(), []tx.Instruction{program.Initialize(testProgram, addr, payer.PublicKey(), "rewards")}, bh)
	require.NoError(t, err)
	signed, err := tx.Sign(context.Background(), msg, payer)
	require.NoError(t, err)
	raw, err := signed.Encode()
	require.NoError(t, err)

	assert.False(t, l.Processed(signed.ID()))
	first, err := l.Submit(context.Background(), raw)
	require.NoError(t, err)
	l.NextSlot()
	again, err := l.Submit(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.True(t, l.Processed(first))

	confirmed, ok := l.Status(first)
	require.True(t, ok)
	assert.Equal(t, core.Slot(1), confirmed.Slot)
	assert.Len(t, l.Signatures(), 1)
}

func TestInsert_MissingContainer(t *testing.T) {
	t.Parallel()

	l := New(testProgram)
	payer := newPayer(t, 1)
	addr, _, err := program.ContainerAddress(testProgram, "missing")
	require.NoError(t, err)

	c := chunk.Chunk{Header: chunk.Header{Container: addr, Total: 1}, Data: []byte("x")}
	_, err = submit(t, l, payer, program.InsertChunk(testProgram, payer.PublicKey(), c))
	err = program.Classify(program.KindInsertChunk, err)
	assert.ErrorIs(t, err, core.ErrContainerNotFound)
}

func TestClose(t *testing.T) {
	t.Parallel()

	l := New(testProgram)
	payer := newPayer(t, 1)
	addr := initialize(t, l, payer, "rewards")

	other := newPayer(t, 2)
	_, err := submit(t, l, other, program.Close(testProgram, addr, other.PublicKey()))
	require.Error(t, err, "only the authority may close")

	_, err = submit(t, l, payer, program.Close(testProgram, addr, payer.PublicKey()))
	require.NoError(t, err)
	assert.Equal(t, uint64(ContainerRent), l.Balance(payer.PublicKey()))

	_, err = l.GetAccount(context.Background(), addr)
	assert.ErrorIs(t, err, core.ErrAccountNotFound)

	l.NextSlot()
	_, err = submit(t, l, payer, program.Close(testProgram, addr, payer.PublicKey()))
	assert.ErrorIs(t, program.Classify(program.KindClose, err), core.ErrContainerNotFound)
}

func TestHoldAndRelease(t *testing.T) {
	t.Parallel()

	l := New(testProgram)
	payer := newPayer(t, 1)
	addr := initialize(t, l, payer, "rewards")
	l.HoldChunks(0)

	c := chunk.Chunk{Header: chunk.Header{Container: addr, Total: 1}, Data: []byte("x")}
	sig, err := submit(t, l, payer, program.InsertChunk(testProgram, payer.PublicKey(), c))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Confirm(ctx, sig)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The transaction landed even though confirmation was withheld.
	_, err = l.GetTransaction(context.Background(), sig)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := l.Confirm(context.Background(), sig)
		done <- err
	}()
	l.Release()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("confirmation not released")
	}
}

func TestRejectChunks_SkipPreflight(t *testing.T) {
	t.Parallel()

	l := New(testProgram)
	payer := newPayer(t, 1)
	addr := initialize(t, l, payer, "rewards")
	l.RejectChunks(0)
	l.SkipPreflight()

	c := chunk.Chunk{Header: chunk.Header{Container: addr, Total: 1}, Data: []byte("x")}
	sig, err := submit(t, l, payer, program.InsertChunk(testProgram, payer.PublicKey(), c))
	require.NoError(t, err, "failure is reported at confirmation")

	_, err = l.Confirm(context.Background(), sig)
	assert.ErrorIs(t, err, core.ErrTransactionRejected)

	confirmed, err := l.GetTransaction(context.Background(), sig)
	require.NoError(t, err)
	assert.NotNil(t, confirmed.Err)
}

func TestSubmit_BadSignature(t *testing.T) {
	t.Parallel()

	l := New(testProgram)
	payer := newPayer(t, 1)
	addr, _, err := program.ContainerAddress(testProgram, "rewards")
	require.NoError(t, err)

	bh, err := l.LatestBlockhash(context.Background())
	require.NoError(t, err)
	msg, err := tx.Compile(payer.PublicKey(), []tx.Instruction{program.Initialize(testProgram, addr, payer.PublicKey(), "rewards")}, bh)
	require.NoError(t, err)
	signed, err := tx.Sign(context.Background(), msg, payer)
	require.NoError(t, err)
	signed.Signatures[0][0] ^= 0xff

	raw, err := signed.Encode()
	require.NoError(t, err)
	_, err = l.Submit(context.Background(), raw)
	assert.ErrorIs(t, err, core.ErrTransactionRejected)
}
