// Package chunk partitions payloads into ledger-sized chunks and reassembles them.
//
// Every chunk carries its container, the total chunk count, its own position
// and the payload codec, so a chunk set can be checked for completeness and
// reordered without trusting the order in which it was fetched.
package chunk

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/meigma/dataanchor/core"
)

// DefaultMaxSize is the largest chunk that fits one insert transaction,
// leaving room for signatures, accounts and compute budget instructions.
const DefaultMaxSize = 900

// MaxChunks is the most chunks one payload can be split into.
const MaxChunks = math.MaxUint16

// HeaderSize is the encoded size of Header.
const HeaderSize = core.PubkeySize + 2 + 2 + 1

// Header is the position metadata carried by every chunk.
type Header struct {
	Container   core.Pubkey
	Total       uint16
	Index       uint16
	Compression core.Compression
}

// Chunk is one contiguous slice of a payload.
type Chunk struct {
	Header
	Data []byte
}

// Count returns the number of chunks a payload of n bytes needs.
func Count(n, size int) int {
	if n == 0 {
		return 1
	}
	return (n + size - 1) / size
}

// Split partitions payload into chunks of at most size bytes, preserving order.
// An empty payload yields a single empty chunk.
func Split(container core.Pubkey, payload []byte, size int, compression core.Compression) ([]Chunk, error) {
	if size <= 0 || size > DefaultMaxSize {
		return nil, fmt.Errorf("chunk: size %d out of range (1-%d)", size, DefaultMaxSize)
	}
	n := Count(len(payload), size)
	if n > MaxChunks {
		return nil, fmt.Errorf("%w: %d bytes need %d chunks, max %d", core.ErrPayloadTooLarge, len(payload), n, MaxChunks)
	}

	chunks := make([]Chunk, n)
	for i := range chunks {
		start := i * size
		end := min(start+size, len(payload))
		chunks[i] = Chunk{
			Header: Header{
				Container:   container,
				Total:       uint16(n),
				Index:       uint16(i),
				Compression: compression,
			},
			Data: payload[start:end],
		}
	}
	return chunks, nil
}

// Reassemble orders chunks by position and concatenates them.
//
// The set must be complete: all chunks target container, agree on the total
// and codec, and cover every position exactly once. Returns
// core.ErrIncompleteChunkSet for missing or duplicated positions and
// core.ErrDecode for inconsistent metadata.
func Reassemble(container core.Pubkey, chunks []Chunk) ([]byte, core.Compression, error) {
	if len(chunks) == 0 {
		return nil, 0, fmt.Errorf("%w: no chunks", core.ErrIncompleteChunkSet)
	}
	total := chunks[0].Total
	codec := chunks[0].Compression
	for _, c := range chunks {
		if c.Container != container {
			return nil, 0, fmt.Errorf("%w: chunk %d targets container %s, want %s", core.ErrDecode, c.Index, c.Container, container)
		}
		if c.Total != total {
			return nil, 0, fmt.Errorf("%w: chunk %d claims %d total chunks, others claim %d", core.ErrDecode, c.Index, c.Total, total)
		}
		if c.Compression != codec {
			return nil, 0, fmt.Errorf("%w: chunk %d uses %s, others use %s", core.ErrDecode, c.Index, c.Compression, codec)
		}
		if c.Index >= c.Total {
			return nil, 0, fmt.Errorf("%w: chunk index %d out of range for %d chunks", core.ErrDecode, c.Index, c.Total)
		}
	}

	ordered := slices.Clone(chunks)
	slices.SortFunc(ordered, func(a, b Chunk) int { return int(a.Index) - int(b.Index) })
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Index == ordered[i-1].Index {
			return nil, 0, fmt.Errorf("%w: duplicate chunk position %d", core.ErrIncompleteChunkSet, ordered[i].Index)
		}
	}
	if len(ordered) != int(total) {
		return nil, 0, fmt.Errorf("%w: have %d of %d chunks (missing %v)", core.ErrIncompleteChunkSet, len(ordered), total, missing(ordered, total))
	}

	size := 0
	for _, c := range ordered {
		size += len(c.Data)
	}
	out := make([]byte, 0, size)
	for _, c := range ordered {
		out = append(out, c.Data...)
	}
	return out, codec, nil
}

// missing lists absent positions of a sorted, duplicate-free chunk set.
func missing(sorted []Chunk, total uint16) []uint16 {
	var gaps []uint16
	next := 0
	for i := 0; i < int(total); i++ {
		if next < len(sorted) && int(sorted[next].Index) == i {
			next++
			continue
		}
		gaps = append(gaps, uint16(i))
	}
	return gaps
}

// EncodeArgs serializes a chunk as insert instruction arguments:
// container, total (u16 LE), index (u16 LE), codec (u8), then the data as a
// u32 LE length-prefixed byte vector.
func EncodeArgs(c Chunk) []byte {
	b := make([]byte, 0, HeaderSize+4+len(c.Data))
	b = append(b, c.Container[:]...)
	b = binary.LittleEndian.AppendUint16(b, c.Total)
	b = binary.LittleEndian.AppendUint16(b, c.Index)
	b = append(b, byte(c.Compression))
	b = binary.LittleEndian.AppendUint32(b, uint32(len(c.Data)))
	return append(b, c.Data...)
}

// DecodeArgs parses insert instruction arguments.
func DecodeArgs(b []byte) (Chunk, error) {
	if len(b) < HeaderSize+4 {
		return Chunk{}, fmt.Errorf("%w: chunk arguments are %d bytes, need at least %d", core.ErrDecode, len(b), HeaderSize+4)
	}
	var c Chunk
	copy(c.Container[:], b[:core.PubkeySize])
	off := core.PubkeySize
	c.Total = binary.LittleEndian.Uint16(b[off:])
	c.Index = binary.LittleEndian.Uint16(b[off+2:])
	c.Compression = core.Compression(b[off+4])
	n := binary.LittleEndian.Uint32(b[HeaderSize:])
	data := b[HeaderSize+4:]
	if uint64(n) != uint64(len(data)) {
		return Chunk{}, fmt.Errorf("%w: chunk declares %d data bytes, has %d", core.ErrDecode, n, len(data))
	}
	c.Data = slices.Clone(data)
	return c, nil
}
