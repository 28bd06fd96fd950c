package dataanchor

import (
	"context"
	"slices"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uploadIndexed uploads payloads in one slot and makes the slot visible to
// the indexer.
func uploadIndexed(t *testing.T, env *testEnv, id Identifier, payloads ...[]byte) Slot {
	t.Helper()
	slot := env.ledger.Slot()
	for _, p := range payloads {
		outcomes, _, err := env.client.Upload(context.Background(), p, nil, id)
		require.NoError(t, err)
		require.Equal(t, slot, outcomes[0].Slot)
	}
	env.indexer.IndexThrough(slot)
	return slot
}

func TestGetBlobs_NotYetIndexed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	id := env.initialized(t, "pending")
	outcomes, _, err := env.client.Upload(ctx, testPayload(2*MaxChunkSize), nil, id)
	require.NoError(t, err)
	slot := UploadSlot(outcomes)

	blobs, ok, err := env.client.GetBlobs(ctx, slot, id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, blobs)
	proof, ok, err := env.client.GetProof(ctx, slot, id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, proof)

	env.indexer.IndexThrough(slot)
	blobs, ok, err = env.client.GetBlobs(ctx, slot, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, blobs, 1)
	proof, ok, err = env.client.GetProof(ctx, slot, id)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, VerifyProof(proof, blobs...))
}

func TestGetBlobs_EmptySlot(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	id := env.initialized(t, "quiet")
	slot := env.ledger.NextSlot()
	env.indexer.IndexThrough(slot)

	blobs, ok, err := env.client.GetBlobs(ctx, slot, id)
	require.NoError(t, err)
	assert.True(t, ok, "an indexed slot with nothing anchored is available and empty")
	assert.Empty(t, blobs)

	_, ok, err = env.client.GetProof(ctx, slot, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlobPayload(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	id := env.initialized(t, "payloads")
	small := []byte("small")
	large := testPayload(3*MaxChunkSize + 5)
	slot := uploadIndexed(t, env, id, small, large)

	blobs, ok, err := env.client.GetBlobs(context.Background(), slot, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, blobs, 2)

	var got [][]byte
	for _, b := range blobs {
		p, err := BlobPayload(b)
		require.NoError(t, err)
		got = append(got, p)

		d, err := BlobDigest(b)
		require.NoError(t, err)
		assert.Equal(t, digest.FromBytes(p), d)
	}
	assert.ElementsMatch(t, [][]byte{small, large}, got)
}

func TestBlobPayload_Compressed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	id := env.initialized(t, "compressed")
	payload := make([]byte, 20*MaxChunkSize)

	outcomes, _, err := env.client.Upload(ctx, payload, nil, id, WithCompression(CompressionZstd))
	require.NoError(t, err)
	env.indexer.IndexThrough(outcomes[0].Slot)

	blobs, _, err := env.client.GetBlobs(ctx, outcomes[0].Slot, id)
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, CompressionZstd, blobs[0].Compression)
	got, err := BlobPayload(blobs[0])
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestBlobPayload_Malformed(t *testing.T) {
	t.Parallel()

	_, err := BlobPayload(BlobRecord{})
	assert.ErrorIs(t, err, ErrDecode)
	_, err = BlobPayload(BlobRecord{Chunks: [][]byte{{1}}, Compression: CompressionZstd})
	assert.Error(t, err)
	_, err = BlobDigest(BlobRecord{})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestVerifyProof(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	id := env.initialized(t, "proofs")
	slot := uploadIndexed(t, env, id, []byte("first blob"), testPayload(2*MaxChunkSize))

	blobs, ok, err := env.client.GetBlobs(ctx, slot, id)
	require.NoError(t, err)
	require.True(t, ok)
	proof, ok, err := env.client.GetProof(ctx, slot, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, proof.ChunkDigests, 3)

	info, err := env.client.Container(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, info.Hash, proof.FinalHash, "the proof ends at the container's state hash")

	require.NoError(t, VerifyProof(proof))
	require.NoError(t, VerifyProof(proof, blobs...))

	tampered := blobs[1]
	tampered.Chunks = slices.Clone(tampered.Chunks)
	tampered.Chunks[0] = append([]byte{0xff}, tampered.Chunks[0]...)

	brokenChain := *proof
	brokenChain.ChunkDigests = slices.Clone(proof.ChunkDigests)
	brokenChain.ChunkDigests[0], brokenChain.ChunkDigests[1] = brokenChain.ChunkDigests[1], brokenChain.ChunkDigests[0]

	wrongSlot := blobs[0]
	wrongSlot.Slot++

	tests := []struct {
		name    string
		proof   *Proof
		records []BlobRecord
	}{
		{name: "nil proof", proof: nil},
		{name: "tampered chunk data", proof: proof, records: []BlobRecord{blobs[0], tampered}},
		{name: "reordered digests", proof: &brokenChain},
		{name: "record from another slot", proof: proof, records: []BlobRecord{wrongSlot}},
		{name: "record counted twice", proof: proof, records: []BlobRecord{blobs[0], blobs[0]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, VerifyProof(tt.proof, tt.records...), ErrProofMismatch)
		})
	}
}
