package chunk

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/dataanchor/core"
)

var testContainer = core.Pubkey{0xaa, 0xbb}

func payload(n int) []byte {
	r := rand.New(rand.NewPCG(uint64(n), 7))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.UintN(256))
	}
	return b
}

func TestSplitReassemble_RoundTrip(t *testing.T) {
	t.Parallel()

	const size = 64
	for _, n := range []int{0, 1, size - 1, size, size + 1, 2 * size, 3*size + 17, 10 * size} {
		p := payload(n)
		chunks, err := Split(testContainer, p, size, core.CompressionNone)
		require.NoError(t, err)
		assert.Len(t, chunks, Count(n, size), "payload of %d bytes", n)

		got, codec, err := Reassemble(testContainer, chunks)
		require.NoError(t, err)
		assert.Equal(t, core.CompressionNone, codec)
		assert.True(t, bytes.Equal(p, got), "payload of %d bytes did not round trip", n)
	}
}

func TestSplit_EmptyPayloadIsOneEmptyChunk(t *testing.T) {
	t.Parallel()

	chunks, err := Split(testContainer, nil, DefaultMaxSize, core.CompressionNone)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].Data)
	assert.Equal(t, uint16(1), chunks[0].Total)
	assert.Equal(t, uint16(0), chunks[0].Index)

	got, _, err := Reassemble(testContainer, chunks)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSplit_Limits(t *testing.T) {
	t.Parallel()

	_, err := Split(testContainer, []byte("x"), 0, core.CompressionNone)
	require.Error(t, err)

	_, err = Split(testContainer, []byte("x"), DefaultMaxSize+1, core.CompressionNone)
	require.Error(t, err)

	_, err = Split(testContainer, make([]byte, MaxChunks+1), 1, core.CompressionNone)
	assert.ErrorIs(t, err, core.ErrPayloadTooLarge)
}

func TestReassemble_PositionIsAuthoritative(t *testing.T) {
	t.Parallel()

	p := payload(500)
	chunks, err := Split(testContainer, p, 100, core.CompressionNone)
	require.NoError(t, err)

	shuffled := []Chunk{chunks[3], chunks[0], chunks[4], chunks[2], chunks[1]}
	got, _, err := Reassemble(testContainer, shuffled)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestReassemble_Errors(t *testing.T) {
	t.Parallel()

	chunks, err := Split(testContainer, payload(300), 100, core.CompressionNone)
	require.NoError(t, err)

	otherContainer := chunks[1]
	otherContainer.Container = core.Pubkey{1}

	otherTotal := chunks[1]
	otherTotal.Total = 4

	otherCodec := chunks[1]
	otherCodec.Compression = core.CompressionZstd

	outOfRange := Chunk{Header: Header{Container: testContainer, Total: 3, Index: 3}}

	tests := []struct {
		name    string
		chunks  []Chunk
		wantErr error
	}{
		{name: "empty", chunks: nil, wantErr: core.ErrIncompleteChunkSet},
		{name: "missing middle", chunks: []Chunk{chunks[0], chunks[2]}, wantErr: core.ErrIncompleteChunkSet},
		{name: "missing last", chunks: []Chunk{chunks[0], chunks[1]}, wantErr: core.ErrIncompleteChunkSet},
		{name: "duplicate", chunks: []Chunk{chunks[0], chunks[1], chunks[1], chunks[2]}, wantErr: core.ErrIncompleteChunkSet},
		{name: "foreign container", chunks: []Chunk{chunks[0], otherContainer, chunks[2]}, wantErr: core.ErrDecode},
		{name: "inconsistent total", chunks: []Chunk{chunks[0], otherTotal, chunks[2]}, wantErr: core.ErrDecode},
		{name: "inconsistent codec", chunks: []Chunk{chunks[0], otherCodec, chunks[2]}, wantErr: core.ErrDecode},
		{name: "index out of range", chunks: []Chunk{chunks[0], chunks[1], chunks[2], outOfRange}, wantErr: core.ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Reassemble(testContainer, tt.chunks)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestArgs_RoundTrip(t *testing.T) {
	t.Parallel()

	c := Chunk{
		Header: Header{Container: testContainer, Total: 9, Index: 4, Compression: core.CompressionZstd},
		Data:   []byte("chunk data"),
	}
	encoded := EncodeArgs(c)
	assert.Len(t, encoded, HeaderSize+4+len(c.Data))

	got, err := DecodeArgs(encoded)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestDecodeArgs_Malformed(t *testing.T) {
	t.Parallel()

	encoded := EncodeArgs(Chunk{Header: Header{Container: testContainer, Total: 1}, Data: []byte("abc")})

	_, err := DecodeArgs(encoded[:HeaderSize])
	assert.ErrorIs(t, err, core.ErrDecode)

	_, err = DecodeArgs(encoded[:len(encoded)-1])
	assert.ErrorIs(t, err, core.ErrDecode)
}

func TestChain(t *testing.T) {
	t.Parallel()

	chunks, err := Split(testContainer, payload(250), 100, core.CompressionNone)
	require.NoError(t, err)

	digests := make([]core.Hash, len(chunks))
	for i, c := range chunks {
		digests[i] = Digest(c)
	}

	start := core.Hash{}
	want := NextHash(NextHash(NextHash(start, digests[0]), digests[1]), digests[2])
	assert.Equal(t, want, Chain(start, digests))

	swapped := []core.Hash{digests[1], digests[0], digests[2]}
	assert.NotEqual(t, want, Chain(start, swapped), "chain must be order sensitive")
}
