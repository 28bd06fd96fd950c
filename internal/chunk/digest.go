package chunk

import (
	"github.com/zeebo/blake3"

	"github.com/meigma/dataanchor/core"
)

// Digest is the blake3 hash of a chunk's encoded arguments. The container
// folds it into its state hash when the chunk is appended.
func Digest(c Chunk) core.Hash {
	return core.Hash(blake3.Sum256(EncodeArgs(c)))
}

// NextHash advances a container state hash by one appended chunk.
func NextHash(prev, digest core.Hash) core.Hash {
	h := blake3.New()
	_, _ = h.Write(prev[:])
	_, _ = h.Write(digest[:])
	var out core.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Chain folds digests into start in order.
func Chain(start core.Hash, digests []core.Hash) core.Hash {
	h := start
	for _, d := range digests {
		h = NextHash(h, d)
	}
	return h
}
