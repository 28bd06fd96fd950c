package memledger

import (
	"context"
	"slices"
	"sync"

	"github.com/meigma/dataanchor/core"
)

// Compile-time interface implementation check.
var _ core.Indexer = (*Indexer)(nil)

// Indexer serves blobs and proofs recorded by a Ledger. Slots are only
// visible once IndexThrough has caught up to them.
type Indexer struct {
	ledger *Ledger

	mu      sync.Mutex
	through core.Slot
	err     error
}

// IndexThrough makes every slot up to and including slot visible.
func (i *Indexer) IndexThrough(slot core.Slot) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.through = slot
}

// Fail makes every query return err until called again with nil.
func (i *Indexer) Fail(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.err = err
}

func (i *Indexer) ready(ctx context.Context, slot core.Slot) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return false, i.err
	}
	return slot <= i.through, nil
}

// Blobs implements core.Indexer.
func (i *Indexer) Blobs(ctx context.Context, container core.Pubkey, slot core.Slot) ([]core.BlobRecord, bool, error) {
	ok, err := i.ready(ctx, slot)
	if err != nil || !ok {
		return nil, false, err
	}
	l := i.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	recs := l.blobs[slotKey{container: container, slot: slot}]
	out := make([]core.BlobRecord, len(recs))
	for n, r := range recs {
		r.Signatures = slices.Clone(r.Signatures)
		r.Chunks = slices.Clone(r.Chunks)
		out[n] = r
	}
	return out, true, nil
}

// Proof implements core.Indexer. Slots in which nothing was appended to
// container have no proof.
func (i *Indexer) Proof(ctx context.Context, container core.Pubkey, slot core.Slot) (*core.Proof, bool, error) {
	ok, err := i.ready(ctx, slot)
	if err != nil || !ok {
		return nil, false, err
	}
	l := i.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.proofs[slotKey{container: container, slot: slot}]
	if !ok {
		return nil, false, nil
	}
	out := *p
	out.ChunkDigests = slices.Clone(p.ChunkDigests)
	return &out, true, nil
}
