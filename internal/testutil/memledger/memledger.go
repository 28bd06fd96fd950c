// Package memledger provides an in-memory ledger and indexer for tests.
//
// The ledger executes blober program instructions against in-memory
// accounts, so client code can be exercised end to end without a validator.
// Every transaction lands in the current slot; tests advance the slot with
// NextSlot.
package memledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/meigma/dataanchor/core"
	"github.com/meigma/dataanchor/internal/chunk"
	"github.com/meigma/dataanchor/internal/program"
	"github.com/meigma/dataanchor/internal/tx"
)

// ContainerRent is the balance moved into a container when it is created and
// returned to the payer when it is closed.
const ContainerRent = 1_000_000

// Custom error codes raised by the simulated program beyond those in
// internal/program.
const (
	codeConstraintSeeds  uint32 = 2006
	codeConstraintHasOne uint32 = 2001
)

// Compile-time interface implementation check.
var _ core.Ledger = (*Ledger)(nil)

// Ledger is an in-memory core.Ledger running the blober program.
type Ledger struct {
	program core.Pubkey

	mu          sync.Mutex
	slot        core.Slot
	blockhashes map[core.Hash]bool
	latest      core.Hash
	accounts    map[core.Pubkey]*core.Account
	balances    map[core.Pubkey]uint64
	txs         map[core.Signature]*core.ConfirmedTransaction
	prices      []uint64
	fees        []uint64

	skipPreflight bool
	held          map[uint16]bool
	rejected      map[uint16]bool
	released      chan struct{}

	// indexer state
	pending map[blobKey]*blob
	blobs   map[slotKey][]core.BlobRecord
	proofs  map[slotKey]*core.Proof
}

type slotKey struct {
	container core.Pubkey
	slot      core.Slot
}

type blobKey struct {
	container   core.Pubkey
	payer       core.Pubkey
	total       uint16
	compression core.Compression
}

type blob struct {
	data  map[uint16][]byte
	sigs  map[uint16]core.Signature
	first core.Slot // slot of chunk 0, where the blob is indexed
}

// New creates an empty ledger hosting the blober program at programID.
func New(programID core.Pubkey) *Ledger {
	l := &Ledger{
		program:     programID,
		slot:        1,
		blockhashes: make(map[core.Hash]bool),
		accounts:    make(map[core.Pubkey]*core.Account),
		balances:    make(map[core.Pubkey]uint64),
		txs:         make(map[core.Signature]*core.ConfirmedTransaction),
		held:        make(map[uint16]bool),
		rejected:    make(map[uint16]bool),
		released:    make(chan struct{}),
		pending:     make(map[blobKey]*blob),
		blobs:       make(map[slotKey][]core.BlobRecord),
		proofs:      make(map[slotKey]*core.Proof),
	}
	l.rotateBlockhash()
	return l
}

// Program returns the program address.
func (l *Ledger) Program() core.Pubkey { return l.program }

// Slot returns the slot new transactions land in.
func (l *Ledger) Slot() core.Slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slot
}

// NextSlot advances to a new slot and returns it.
func (l *Ledger) NextSlot() core.Slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slot++
	l.rotateBlockhash()
	return l.slot
}

// SetFees sets the samples returned by RecentPrioritizationFees.
func (l *Ledger) SetFees(fees ...uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fees = fees
}

// ComputeUnitPrices returns the compute unit price of every accepted
// transaction, in submission order.
func (l *Ledger) ComputeUnitPrices() []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.prices)
}

// Signatures returns the signature of every transaction that landed.
func (l *Ledger) Signatures() []core.Signature {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.Signature, 0, len(l.txs))
	for sig := range l.txs {
		out = append(out, sig)
	}
	return out
}

// Balance returns the lamports credited to addr by container closures.
func (l *Ledger) Balance(addr core.Pubkey) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr]
}

// SkipPreflight makes failing transactions land with an execution error
// instead of being refused by Submit.
func (l *Ledger) SkipPreflight() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.skipPreflight = true
}

// HoldChunks delays confirmation of insert transactions for the given chunk
// positions until Release is called. The transactions still land.
func (l *Ledger) HoldChunks(indexes ...uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, i := range indexes {
		l.held[i] = true
	}
}

// RejectChunks makes insert transactions for the given chunk positions fail.
func (l *Ledger) RejectChunks(indexes ...uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, i := range indexes {
		l.rejected[i] = true
	}
}

// Release confirms every held transaction.
func (l *Ledger) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.held)
	close(l.released)
	l.released = make(chan struct{})
}

// LatestBlockhash implements core.Ledger.
func (l *Ledger) LatestBlockhash(ctx context.Context) (core.Hash, error) {
	if err := ctx.Err(); err != nil {
		return core.Hash{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest, nil
}

// Submit implements core.Ledger. It verifies and executes the transaction.
func (l *Ledger) Submit(ctx context.Context, raw []byte) (core.Signature, error) {
	if err := ctx.Err(); err != nil {
		return core.Signature{}, err
	}
	t, err := tx.Decode(raw)
	if err != nil {
		return core.Signature{}, &core.TransactionError{InstructionIndex: -1, Reason: "failed to deserialize transaction: " + err.Error()}
	}
	if err := t.Verify(); err != nil {
		return core.Signature{}, &core.TransactionError{InstructionIndex: -1, Reason: "SignatureFailure"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.blockhashes[t.Message.RecentBlockhash] {
		return core.Signature{}, &core.TransactionError{InstructionIndex: -1, Reason: "BlockhashNotFound"}
	}
	sig := t.ID()
	if _, dup := l.txs[sig]; dup {
		return sig, nil
	}

	exec := l.begin()
	txErr := exec.run(t)
	if txErr != nil && !l.skipPreflight {
		return core.Signature{}, txErr
	}

	confirmed := &core.ConfirmedTransaction{Signature: sig, Slot: l.slot, Raw: slices.Clone(raw), Err: txErr}
	l.txs[sig] = confirmed
	l.prices = append(l.prices, exec.price)
	if txErr == nil {
		exec.commit(sig)
	}
	return sig, nil
}

// Confirm implements core.Ledger. Held or unknown transactions block until
// ctx ends.
func (l *Ledger) Confirm(ctx context.Context, sig core.Signature) (core.Slot, error) {
	for {
		l.mu.Lock()
		confirmed, ok := l.txs[sig]
		held := ok && l.isHeld(confirmed)
		released := l.released
		l.mu.Unlock()

		if ok && !held {
			if confirmed.Err != nil {
				return 0, confirmed.Err
			}
			return confirmed.Slot, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-released:
		}
	}
}

// Processed reports whether the ledger has already executed sig.
func (l *Ledger) Processed(sig core.Signature) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.txs[sig]
	return ok
}

// Status returns the landed transaction for sig, or false if it is unknown
// or its confirmation is being held.
func (l *Ledger) Status(sig core.Signature) (*core.ConfirmedTransaction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	confirmed, ok := l.txs[sig]
	if !ok || l.isHeld(confirmed) {
		return nil, false
	}
	out := *confirmed
	return &out, true
}

// GetTransaction implements core.Ledger.
func (l *Ledger) GetTransaction(ctx context.Context, sig core.Signature) (*core.ConfirmedTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	confirmed, ok := l.txs[sig]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSignatureNotFound, sig)
	}
	out := *confirmed
	out.Raw = slices.Clone(confirmed.Raw)
	return &out, nil
}

// GetAccount implements core.Ledger.
func (l *Ledger) GetAccount(ctx context.Context, addr core.Pubkey) (*core.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrAccountNotFound, addr)
	}
	out := *acct
	out.Data = slices.Clone(acct.Data)
	return &out, nil
}

// RecentPrioritizationFees implements core.Ledger.
func (l *Ledger) RecentPrioritizationFees(ctx context.Context, _ []core.Pubkey) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.fees), nil
}

// rotateBlockhash issues a new blockhash for the current slot.
// Callers hold l.mu.
func (l *Ledger) rotateBlockhash() {
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], uint64(l.slot))
	l.latest = core.Hash(sha256.Sum256(append([]byte("blockhash"), seed[:]...)))
	l.blockhashes[l.latest] = true
}

// isHeld reports whether confirmation of t is being withheld.
// Callers hold l.mu.
func (l *Ledger) isHeld(confirmed *core.ConfirmedTransaction) bool {
	if len(l.held) == 0 {
		return false
	}
	c, ok := insertedChunk(confirmed.Raw, l.program)
	return ok && l.held[c.Index]
}

func insertedChunk(raw []byte, programID core.Pubkey) (chunk.Chunk, bool) {
	t, err := tx.Decode(raw)
	if err != nil {
		return chunk.Chunk{}, false
	}
	for _, ix := range t.Message.Instructions {
		pid, err := t.Message.Program(ix)
		if err != nil || pid != programID {
			continue
		}
		c, err := program.DecodeInsertChunk(ix.Data)
		if err == nil {
			return c, true
		}
	}
	return chunk.Chunk{}, false
}

// Indexer returns an indexer over this ledger's history.
func (l *Ledger) Indexer() *Indexer {
	return &Indexer{ledger: l}
}
