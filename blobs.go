package dataanchor

import (
	"context"
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/dataanchor/internal/chunk"
	"github.com/meigma/dataanchor/internal/compress"
)

// GetBlobs returns the blobs anchored to the container id designates at slot.
//
// ok is false when the indexer has not processed slot yet. That is not an
// error; callers poll until it becomes true.
func (c *Client) GetBlobs(ctx context.Context, slot Slot, id Identifier) (blobs []BlobRecord, ok bool, err error) {
	if c.indexer == nil {
		return nil, false, ErrNoIndexer
	}
	container, err := c.Resolve(id)
	if err != nil {
		return nil, false, err
	}
	blobs, ok, err = c.indexer.Blobs(ctx, container, slot)
	if err != nil {
		return nil, false, fmt.Errorf("get blobs for %s at slot %d: %w", container, slot, err)
	}
	c.logger.Debug("indexer blobs", "container", container, "slot", slot, "available", ok, "count", len(blobs))
	return blobs, ok, nil
}

// GetProof returns the inclusion proof for the container id designates at
// slot. ok is false when no proof is available yet.
func (c *Client) GetProof(ctx context.Context, slot Slot, id Identifier) (proof *Proof, ok bool, err error) {
	if c.indexer == nil {
		return nil, false, ErrNoIndexer
	}
	container, err := c.Resolve(id)
	if err != nil {
		return nil, false, err
	}
	proof, ok, err = c.indexer.Proof(ctx, container, slot)
	if err != nil {
		return nil, false, fmt.Errorf("get proof for %s at slot %d: %w", container, slot, err)
	}
	c.logger.Debug("indexer proof", "container", container, "slot", slot, "available", ok)
	return proof, ok, nil
}

// BlobPayload reassembles and decompresses the payload of an indexed blob.
func BlobPayload(rec BlobRecord) ([]byte, error) {
	chunks, err := blobChunks(rec)
	if err != nil {
		return nil, err
	}
	data, codec, err := chunk.Reassemble(rec.Container, chunks)
	if err != nil {
		return nil, err
	}
	return compress.Decode(codec, data)
}

// BlobDigest returns the sha256 digest of an indexed blob's payload.
func BlobDigest(rec BlobRecord) (digest.Digest, error) {
	payload, err := BlobPayload(rec)
	if err != nil {
		return "", err
	}
	return digest.FromBytes(payload), nil
}

// VerifyProof checks that proof is internally consistent and that every
// chunk of records was appended in the proven slot.
//
// Chaining proof.ChunkDigests from InitialHash must reach FinalHash. Records
// must share the proof's container and slot, and each of their chunks must
// match a distinct proven digest. Failures wrap ErrProofMismatch.
func VerifyProof(proof *Proof, records ...BlobRecord) error {
	if proof == nil {
		return fmt.Errorf("%w: nil proof", ErrProofMismatch)
	}
	if got := chunk.Chain(proof.InitialHash, proof.ChunkDigests); got != proof.FinalHash {
		return fmt.Errorf("%w: chain over %d digests yields %s, proof claims %s",
			ErrProofMismatch, len(proof.ChunkDigests), got, proof.FinalHash)
	}

	unclaimed := make(map[Hash]int, len(proof.ChunkDigests))
	for _, d := range proof.ChunkDigests {
		unclaimed[d]++
	}
	for _, rec := range records {
		if rec.Container != proof.Container || rec.Slot != proof.Slot {
			return fmt.Errorf("%w: blob at %s slot %d checked against proof for %s slot %d",
				ErrProofMismatch, rec.Container, rec.Slot, proof.Container, proof.Slot)
		}
		chunks, err := blobChunks(rec)
		if err != nil {
			return err
		}
		for _, ch := range chunks {
			d := chunk.Digest(ch)
			if unclaimed[d] == 0 {
				return fmt.Errorf("%w: chunk %d of blob is not covered by the proof", ErrProofMismatch, ch.Index)
			}
			unclaimed[d]--
		}
	}
	return nil
}

// blobChunks rebuilds the wire chunks of an indexed blob. Indexer records
// hold chunk data in position order.
func blobChunks(rec BlobRecord) ([]chunk.Chunk, error) {
	if len(rec.Chunks) == 0 || len(rec.Chunks) > chunk.MaxChunks {
		return nil, fmt.Errorf("%w: blob has %d chunks", ErrDecode, len(rec.Chunks))
	}
	total := uint16(len(rec.Chunks))
	out := make([]chunk.Chunk, len(rec.Chunks))
	for i, data := range rec.Chunks {
		out[i] = chunk.Chunk{
			Header: chunk.Header{
				Container:   rec.Container,
				Total:       total,
				Index:       uint16(i),
				Compression: rec.Compression,
			},
			Data: data,
		}
	}
	return out, nil
}
