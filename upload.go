package dataanchor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/dataanchor/internal/chunk"
	"github.com/meigma/dataanchor/internal/compress"
	"github.com/meigma/dataanchor/internal/program"
	"github.com/meigma/dataanchor/internal/progress"
)

// ChunkStatus is the state of one chunk of an upload.
type ChunkStatus int

// Chunk states.
const (
	// ChunkNotSubmitted means the upload stopped before the chunk was sent.
	ChunkNotSubmitted ChunkStatus = iota
	// ChunkConfirmed means the chunk's transaction reached the commitment level.
	ChunkConfirmed
	// ChunkTimeout means the chunk was sent but neither its acceptance nor
	// its confirmation was observed. The transaction may still land.
	ChunkTimeout
	// ChunkFailed means the ledger rejected the chunk's transaction.
	ChunkFailed
)

// String returns the status name.
func (s ChunkStatus) String() string {
	switch s {
	case ChunkNotSubmitted:
		return "not-submitted"
	case ChunkConfirmed:
		return "confirmed"
	case ChunkTimeout:
		return "timeout"
	case ChunkFailed:
		return "failed"
	default:
		return fmt.Sprintf("ChunkStatus(%d)", int(s))
	}
}

// UploadOutcome records one confirmed chunk transaction.
type UploadOutcome struct {
	// Index is the chunk position.
	Index     int
	Signature Signature
	Slot      Slot
}

// ChunkResult is the final state of one chunk.
type ChunkResult struct {
	Index     int
	Status    ChunkStatus
	Signature Signature
	Slot      Slot
	Err       error
}

// Upload anchors payload to the container id designates.
//
// The payload is split into chunks, one transaction each, submitted
// concurrently. On success the outcomes are ordered by chunk position and
// indexers report the blob at UploadSlot(outcomes), the first chunk's slot. If any chunk is rejected
// the upload stops and an *UploadError reports every chunk's status alongside
// the outcomes already confirmed. Chunks whose confirmation is not observed
// in time are reported as ChunkTimeout, never as failed.
//
// Retrying a failed upload submits every chunk again.
func (c *Client) Upload(ctx context.Context, payload []byte, fee FeeStrategy, id Identifier, opts ...UploadOption) ([]UploadOutcome, Pubkey, error) {
	if err := c.requirePayer(); err != nil {
		return nil, Pubkey{}, err
	}
	cfg := newUploadConfig(opts)

	container, err := c.Resolve(id)
	if err != nil {
		return nil, Pubkey{}, err
	}
	if _, err := c.containerState(ctx, container); err != nil {
		return nil, container, err
	}

	data, err := compress.Encode(cfg.compression, payload)
	if err != nil {
		return nil, container, err
	}
	chunks, err := chunk.Split(container, data, cfg.chunkSize, cfg.compression)
	if err != nil {
		return nil, container, err
	}
	fp, err := c.feeParams(ctx, fee, container)
	if err != nil {
		return nil, container, err
	}

	c.logger.Debug("uploading",
		"container", container,
		"bytes", len(payload),
		"encoded", len(data),
		"chunks", len(chunks),
		"compute_unit_price", fp.ComputeUnitPrice)

	var tracker *progress.Tracker
	if cfg.progress != nil {
		tracker = progress.NewTracker(int64(len(data)), func(done, total int64) {
			cfg.progress(ProgressEvent{Operation: "upload", BytesTransferred: done, TotalBytes: total})
		})
	}

	results := make([]ChunkResult, len(chunks))
	for i := range results {
		results[i].Index = i
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)
	for i, ch := range chunks {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return c.uploadChunk(gctx, ch, fp, cfg, &results[i], tracker)
		})
	}
	groupErr := g.Wait()

	var outcomes []UploadOutcome
	timeouts := 0
	for _, r := range results {
		switch r.Status {
		case ChunkConfirmed:
			outcomes = append(outcomes, UploadOutcome{Index: r.Index, Signature: r.Signature, Slot: r.Slot})
		case ChunkTimeout:
			timeouts++
		}
	}

	var failure error
	switch {
	case groupErr != nil:
		failure = groupErr
	case ctx.Err() != nil:
		failure = ctx.Err()
	case timeouts > 0:
		failure = fmt.Errorf("%w: %d of %d chunks unconfirmed", ErrTimeout, timeouts, len(chunks))
	}
	if failure != nil {
		return outcomes, container, &UploadError{Container: container, Chunks: results, Outcomes: outcomes, Err: failure}
	}

	c.logger.Debug("upload confirmed", "container", container, "chunks", len(chunks), "slot", UploadSlot(outcomes))
	return outcomes, container, nil
}

// UploadSlot returns the slot in which the first chunk of an upload landed,
// or zero if it is not among outcomes. Indexers report the blob at this slot.
func UploadSlot(outcomes []UploadOutcome) Slot {
	for _, o := range outcomes {
		if o.Index == 0 {
			return o.Slot
		}
	}
	return 0
}

// uploadChunk submits and confirms one chunk, recording its result. It
// returns an error only when the upload must stop.
func (c *Client) uploadChunk(ctx context.Context, ch chunk.Chunk, fp FeeParams, cfg uploadConfig, res *ChunkResult, tracker *progress.Tracker) error {
	ixs, err := program.WithComputeBudget(fp, program.InsertChunkComputeUnits,
		program.InsertChunk(c.programID, c.payer.PublicKey(), ch))
	if err != nil {
		res.Status = ChunkFailed
		res.Err = err
		return fmt.Errorf("chunk %d: %w", ch.Index, err)
	}

	sig, err := c.submit(ctx, ixs)
	switch {
	case err == nil:
	case sig.IsZero() && ctx.Err() != nil:
		// Stopped by another chunk's failure or by the caller before sending.
		return nil
	case sig.IsZero() || refused(err):
		res.Status = ChunkFailed
		res.Signature = sig
		res.Err = program.Classify(program.KindInsertChunk, err)
		return fmt.Errorf("chunk %d: %w", ch.Index, res.Err)
	case ctx.Err() != nil:
		// Interrupted in flight; the ledger may have received it.
		res.Status = ChunkTimeout
		res.Signature = sig
		res.Err = ctx.Err()
		c.logger.Debug("chunk submission interrupted", "chunk", ch.Index, "signature", sig)
		return nil
	default:
		c.logger.Debug("chunk submission unacknowledged", "chunk", ch.Index, "signature", sig, "error", err)
	}
	res.Signature = sig

	cctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()
	slot, err := c.ledger.Confirm(cctx, sig)
	if err != nil {
		var txErr *TransactionError
		if errors.As(err, &txErr) {
			res.Status = ChunkFailed
			res.Err = program.Classify(program.KindInsertChunk, err)
			return fmt.Errorf("chunk %d: %w", ch.Index, res.Err)
		}
		res.Status = ChunkTimeout
		res.Err = err
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			res.Err = ErrTimeout
		}
		c.logger.Debug("chunk unconfirmed", "chunk", ch.Index, "signature", sig, "error", err)
		return nil
	}

	res.Status = ChunkConfirmed
	res.Slot = slot
	tracker.Add(int64(len(ch.Data)))
	c.logger.Debug("chunk confirmed", "chunk", ch.Index, "signature", sig, "slot", slot)
	return nil
}
