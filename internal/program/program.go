// Package program describes the on-ledger blober program: its instructions,
// its container account layout, and the error codes it raises.
package program

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"

	"github.com/meigma/dataanchor/core"
	"github.com/meigma/dataanchor/internal/chunk"
	"github.com/meigma/dataanchor/internal/namespace"
	"github.com/meigma/dataanchor/internal/pda"
	"github.com/meigma/dataanchor/internal/tx"
)

// Well-known programs.
var (
	SystemProgramID        = core.Pubkey{}
	ComputeBudgetProgramID = core.Pubkey(computebudget.ProgramID)
)

// ContainerSeed prefixes the namespace when deriving a container address.
const ContainerSeed = "blober"

// Default compute unit limits per instruction.
const (
	InitializeComputeUnits  uint32 = 30_000
	InsertChunkComputeUnits uint32 = 40_000
	CloseComputeUnits       uint32 = 15_000
)

// Index of the program instruction in every transaction built by WithComputeBudget.
const InstructionIndex = 2

// Kind identifies a blober instruction.
type Kind int

// Instruction kinds.
const (
	KindUnknown Kind = iota
	KindInitialize
	KindInsertChunk
	KindClose
)

func (k Kind) String() string {
	switch k {
	case KindInitialize:
		return "initialize"
	case KindInsertChunk:
		return "insert_chunk"
	case KindClose:
		return "close"
	default:
		return "unknown"
	}
}

type discriminator [8]byte

func newDiscriminator(namespace, name string) discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	return discriminator(sum[:8])
}

var (
	initializeDisc  = newDiscriminator("global", "initialize")
	insertChunkDisc = newDiscriminator("global", "insert_chunk")
	closeDisc       = newDiscriminator("global", "close")
	containerDisc   = newDiscriminator("account", "Blober")
)

// ContainerAddress derives the container address for ns under program.
func ContainerAddress(program core.Pubkey, ns string) (core.Pubkey, uint8, error) {
	if err := namespace.Validate(ns); err != nil {
		return core.Pubkey{}, 0, err
	}
	addr, bump, err := pda.FindProgramAddress([][]byte{[]byte(ContainerSeed), []byte(ns)}, program)
	if err != nil {
		return core.Pubkey{}, 0, fmt.Errorf("%w: %v", core.ErrInvalidIdentifier, err)
	}
	return addr, bump, nil
}

// Initialize creates the container for ns, funded by payer.
func Initialize(program, container, payer core.Pubkey, ns string) tx.Instruction {
	data := make([]byte, 0, 8+4+len(ns))
	data = append(data, initializeDisc[:]...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(ns)))
	data = append(data, ns...)
	return tx.Instruction{
		ProgramID: program,
		Accounts: []tx.AccountMeta{
			{Pubkey: container, IsWritable: true},
			{Pubkey: payer, IsSigner: true, IsWritable: true},
			{Pubkey: SystemProgramID},
		},
		Data: data,
	}
}

// InsertChunk appends c to its container.
func InsertChunk(program, payer core.Pubkey, c chunk.Chunk) tx.Instruction {
	args := chunk.EncodeArgs(c)
	data := make([]byte, 0, 8+len(args))
	data = append(data, insertChunkDisc[:]...)
	data = append(data, args...)
	return tx.Instruction{
		ProgramID: program,
		Accounts: []tx.AccountMeta{
			{Pubkey: c.Container, IsWritable: true},
			{Pubkey: payer, IsSigner: true, IsWritable: true},
		},
		Data: data,
	}
}

// Close tears down container and returns its reserve to payer.
func Close(program, container, payer core.Pubkey) tx.Instruction {
	return tx.Instruction{
		ProgramID: program,
		Accounts: []tx.AccountMeta{
			{Pubkey: container, IsWritable: true},
			{Pubkey: payer, IsSigner: true, IsWritable: true},
		},
		Data: append([]byte(nil), closeDisc[:]...),
	}
}

// Identify returns the kind of a blober instruction from its data.
func Identify(data []byte) Kind {
	if len(data) < len(discriminator{}) {
		return KindUnknown
	}
	switch discriminator(data[:8]) {
	case initializeDisc:
		return KindInitialize
	case insertChunkDisc:
		return KindInsertChunk
	case closeDisc:
		return KindClose
	default:
		return KindUnknown
	}
}

// DecodeInitialize returns the namespace of an initialize instruction.
func DecodeInitialize(data []byte) (string, error) {
	if Identify(data) != KindInitialize {
		return "", fmt.Errorf("%w: not an initialize instruction", core.ErrDecode)
	}
	args := data[8:]
	if len(args) < 4 {
		return "", fmt.Errorf("%w: truncated initialize arguments", core.ErrDecode)
	}
	n := binary.LittleEndian.Uint32(args)
	if uint64(n) != uint64(len(args)-4) {
		return "", fmt.Errorf("%w: namespace declares %d bytes, has %d", core.ErrDecode, n, len(args)-4)
	}
	return string(args[4:]), nil
}

// DecodeInsertChunk returns the chunk carried by an insert instruction.
func DecodeInsertChunk(data []byte) (chunk.Chunk, error) {
	if Identify(data) != KindInsertChunk {
		return chunk.Chunk{}, fmt.Errorf("%w: not an insert_chunk instruction", core.ErrDecode)
	}
	return chunk.DecodeArgs(data[8:])
}

// SetComputeUnitLimit caps the compute units a transaction may use.
func SetComputeUnitLimit(units uint32) (tx.Instruction, error) {
	return tx.FromSolana(computebudget.NewSetComputeUnitLimitInstruction(units).Build())
}

// SetComputeUnitPrice sets the priority fee in micro-lamports per compute unit.
func SetComputeUnitPrice(microLamports uint64) (tx.Instruction, error) {
	return tx.FromSolana(computebudget.NewSetComputeUnitPriceInstruction(microLamports).Build())
}

// WithComputeBudget prefixes ix with the compute budget instructions for fee.
// The program instruction always lands at InstructionIndex.
func WithComputeBudget(fee core.FeeParams, defaultUnits uint32, ix tx.Instruction) ([]tx.Instruction, error) {
	units := defaultUnits
	if fee.ComputeUnitLimit != 0 {
		units = fee.ComputeUnitLimit
	}
	limit, err := SetComputeUnitLimit(units)
	if err != nil {
		return nil, err
	}
	price, err := SetComputeUnitPrice(fee.ComputeUnitPrice)
	if err != nil {
		return nil, err
	}
	return []tx.Instruction{limit, price, ix}, nil
}
