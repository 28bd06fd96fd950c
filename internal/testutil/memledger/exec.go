package memledger

import (
	"encoding/binary"

	"github.com/meigma/dataanchor/core"
	"github.com/meigma/dataanchor/internal/chunk"
	"github.com/meigma/dataanchor/internal/pda"
	"github.com/meigma/dataanchor/internal/program"
	"github.com/meigma/dataanchor/internal/tx"
)

// execution stages the effects of one transaction so a failing instruction
// leaves the ledger untouched.
type execution struct {
	l        *Ledger
	price    uint64
	accounts map[core.Pubkey]*core.Account
	credits  map[core.Pubkey]uint64
	appends  []appended
}

type appended struct {
	payer  core.Pubkey
	sig    core.Signature
	chunk  chunk.Chunk
	digest core.Hash
	before core.Hash
	after  core.Hash
}

// instructionFailure is an instruction error before it is tagged with its index.
type instructionFailure struct {
	custom    uint32
	hasCustom bool
	reason    string
}

func custom(code uint32) *instructionFailure {
	return &instructionFailure{custom: code, hasCustom: true}
}

func reason(r string) *instructionFailure {
	return &instructionFailure{reason: r}
}

// begin starts an execution. Callers hold l.mu.
func (l *Ledger) begin() *execution {
	return &execution{
		l:        l,
		accounts: make(map[core.Pubkey]*core.Account),
		credits:  make(map[core.Pubkey]uint64),
	}
}

func (e *execution) run(t *tx.Transaction) *core.TransactionError {
	msg := t.Message
	for i, ix := range msg.Instructions {
		pid, err := msg.Program(ix)
		if err != nil {
			return &core.TransactionError{InstructionIndex: i, Reason: "NotEnoughAccountKeys"}
		}
		var fail *instructionFailure
		switch pid {
		case program.ComputeBudgetProgramID:
			fail = e.computeBudget(ix.Data)
		case e.l.program:
			fail = e.blober(msg, ix)
		default:
			fail = reason("UnsupportedProgramId")
		}
		if fail != nil {
			return &core.TransactionError{
				InstructionIndex: i,
				Custom:           fail.custom,
				HasCustom:        fail.hasCustom,
				Reason:           fail.reason,
			}
		}
	}
	return nil
}

func (e *execution) computeBudget(data []byte) *instructionFailure {
	switch {
	case len(data) == 5 && data[0] == 2:
		return nil
	case len(data) == 9 && data[0] == 3:
		e.price = binary.LittleEndian.Uint64(data[1:])
		return nil
	default:
		return reason("InvalidInstructionData")
	}
}

func (e *execution) blober(msg *tx.Message, ix tx.CompiledInstruction) *instructionFailure {
	accounts := make([]core.Pubkey, len(ix.Accounts))
	for n := range ix.Accounts {
		key, err := msg.Account(ix, n)
		if err != nil {
			return reason("NotEnoughAccountKeys")
		}
		accounts[n] = key
	}
	if len(accounts) < 2 {
		return reason("NotEnoughAccountKeys")
	}
	if !msg.IsSigner(int(ix.Accounts[1])) {
		return reason("MissingRequiredSignature")
	}
	container, payer := accounts[0], accounts[1]

	switch program.Identify(ix.Data) {
	case program.KindInitialize:
		return e.initialize(container, payer, ix.Data)
	case program.KindInsertChunk:
		return e.insert(container, payer, ix.Data)
	case program.KindClose:
		return e.close(container, payer)
	default:
		return reason("InvalidInstructionData")
	}
}

func (e *execution) initialize(container, payer core.Pubkey, data []byte) *instructionFailure {
	ns, err := program.DecodeInitialize(data)
	if err != nil {
		return reason("InvalidInstructionData")
	}
	want, bump, err := pda.FindProgramAddress([][]byte{[]byte(program.ContainerSeed), []byte(ns)}, e.l.program)
	if err != nil || want != container {
		return custom(codeConstraintSeeds)
	}
	if _, ok := e.account(container); ok {
		return custom(program.CodeAccountAlreadyInUse)
	}
	state := &program.ContainerState{
		Authority: payer,
		Namespace: ns,
		Bump:      bump,
		Slot:      e.l.slot,
	}
	e.accounts[container] = &core.Account{
		Address:  container,
		Owner:    e.l.program,
		Lamports: ContainerRent,
		Data:     state.Encode(),
	}
	return nil
}

func (e *execution) insert(container, payer core.Pubkey, data []byte) *instructionFailure {
	acct, fail := e.container(container)
	if fail != nil {
		return fail
	}
	c, err := program.DecodeInsertChunk(data)
	if err != nil || c.Container != container || c.Index >= c.Total || e.l.rejected[c.Index] {
		return custom(program.CodeInvalidChunk)
	}
	state, err := program.DecodeContainer(acct.Data)
	if err != nil {
		return reason("InvalidAccountData")
	}

	digest := chunk.Digest(c)
	before := state.Hash
	state.Hash = chunk.NextHash(before, digest)
	state.Slot = e.l.slot
	state.Chunks++

	next := *acct
	next.Data = state.Encode()
	e.accounts[container] = &next
	e.appends = append(e.appends, appended{
		payer:  payer,
		chunk:  c,
		digest: digest,
		before: before,
		after:  state.Hash,
	})
	return nil
}

func (e *execution) close(container, payer core.Pubkey) *instructionFailure {
	acct, fail := e.container(container)
	if fail != nil {
		return fail
	}
	state, err := program.DecodeContainer(acct.Data)
	if err != nil {
		return reason("InvalidAccountData")
	}
	if state.Authority != payer {
		return custom(codeConstraintHasOne)
	}
	e.accounts[container] = nil
	e.credits[payer] += acct.Lamports
	return nil
}

// container returns the live container account at addr.
func (e *execution) container(addr core.Pubkey) (*core.Account, *instructionFailure) {
	acct, ok := e.account(addr)
	if !ok {
		return nil, custom(program.CodeAccountNotInitialized)
	}
	if acct.Owner != e.l.program {
		return nil, custom(program.CodeAccountOwnedByWrongProgram)
	}
	return acct, nil
}

func (e *execution) account(addr core.Pubkey) (*core.Account, bool) {
	if acct, staged := e.accounts[addr]; staged {
		return acct, acct != nil
	}
	acct, ok := e.l.accounts[addr]
	return acct, ok
}

// commit applies the staged effects. Callers hold l.mu.
func (e *execution) commit(sig core.Signature) {
	l := e.l
	for addr, acct := range e.accounts {
		if acct == nil {
			delete(l.accounts, addr)
			continue
		}
		l.accounts[addr] = acct
	}
	for addr, n := range e.credits {
		l.balances[addr] += n
	}
	for _, a := range e.appends {
		a.sig = sig
		l.record(a)
	}
}

// record feeds an appended chunk to the indexer state. Callers hold l.mu.
func (l *Ledger) record(a appended) {
	c := a.chunk
	sk := slotKey{container: c.Container, slot: l.slot}
	proof, ok := l.proofs[sk]
	if !ok {
		proof = &core.Proof{Container: c.Container, Slot: l.slot, InitialHash: a.before}
		l.proofs[sk] = proof
	}
	proof.ChunkDigests = append(proof.ChunkDigests, a.digest)
	proof.FinalHash = a.after

	bk := blobKey{container: c.Container, payer: a.payer, total: c.Total, compression: c.Compression}
	b, ok := l.pending[bk]
	if !ok {
		b = &blob{data: make(map[uint16][]byte), sigs: make(map[uint16]core.Signature)}
		l.pending[bk] = b
	}
	if _, dup := b.data[c.Index]; dup {
		return
	}
	b.data[c.Index] = c.Data
	b.sigs[c.Index] = a.sig
	if c.Index == 0 {
		b.first = l.slot
	}
	if len(b.data) < int(c.Total) {
		return
	}

	rec := core.BlobRecord{
		Container:   c.Container,
		Slot:        b.first,
		Compression: c.Compression,
		Chunks:      make([][]byte, c.Total),
		Signatures:  make([]core.Signature, c.Total),
	}
	for i := range c.Total {
		rec.Chunks[i] = b.data[i]
		rec.Signatures[i] = b.sigs[i]
	}
	bs := slotKey{container: c.Container, slot: b.first}
	l.blobs[bs] = append(l.blobs[bs], rec)
	delete(l.pending, bk)
}
