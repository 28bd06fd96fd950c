// Package tx builds, signs and decodes ledger transactions.
//
// The wire codec is solana-go's. This package keeps a plain view of messages
// so the rest of the module works with core types. Only legacy messages are
// produced. Decoding accepts legacy messages and version-0 messages without
// address table lookups.
package tx

import (
	"errors"
	"fmt"
	"slices"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/meigma/dataanchor/core"
)

// PacketSize is the largest wire-encoded transaction the ledger accepts.
const PacketSize = 1232

// MaxAccounts is the most accounts one message can reference.
const MaxAccounts = 256

const versionPrefix = 0x80

// ErrUnsupportedVersion indicates a message format this package cannot decode.
var ErrUnsupportedVersion = errors.New("tx: unsupported message version")

// AccountMeta describes how an instruction uses an account.
type AccountMeta struct {
	Pubkey     core.Pubkey
	IsSigner   bool
	IsWritable bool
}

// Instruction is an uncompiled program invocation.
type Instruction struct {
	ProgramID core.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// FromSolana converts an instruction built with a solana-go program package.
func FromSolana(ix solana.Instruction) (Instruction, error) {
	data, err := ix.Data()
	if err != nil {
		return Instruction{}, fmt.Errorf("tx: encode instruction data: %w", err)
	}
	out := Instruction{ProgramID: core.Pubkey(ix.ProgramID()), Data: data}
	for _, am := range ix.Accounts() {
		out.Accounts = append(out.Accounts, AccountMeta{
			Pubkey:     core.Pubkey(am.PublicKey),
			IsSigner:   am.IsSigner,
			IsWritable: am.IsWritable,
		})
	}
	return out, nil
}

// Header counts the signer and read-only accounts of a message.
type Header struct {
	NumRequiredSignatures uint8
	NumReadonlySigned     uint8
	NumReadonlyUnsigned   uint8
}

// CompiledInstruction references accounts by index into the message keys.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

// Message is the signed portion of a transaction.
type Message struct {
	Header          Header
	AccountKeys     []core.Pubkey
	RecentBlockhash core.Hash
	Instructions    []CompiledInstruction

	versioned bool
}

// Compile orders the accounts referenced by ixs (payer first, then signers
// before non-signers and writable before read-only) and compiles the
// instructions against that ordering.
func Compile(payer core.Pubkey, ixs []Instruction, blockhash core.Hash) (*Message, error) {
	if len(ixs) == 0 {
		return nil, errors.New("tx: no instructions to compile")
	}
	insts := make([]solana.Instruction, len(ixs))
	for i, ix := range ixs {
		metas := make(solana.AccountMetaSlice, len(ix.Accounts))
		for n, am := range ix.Accounts {
			metas[n] = solana.NewAccountMeta(solana.PublicKey(am.Pubkey), am.IsWritable, am.IsSigner)
		}
		insts[i] = solana.NewInstruction(solana.PublicKey(ix.ProgramID), metas, ix.Data)
	}

	t, err := solana.NewTransaction(insts, solana.Hash(blockhash), solana.TransactionPayer(solana.PublicKey(payer)))
	if err != nil {
		return nil, fmt.Errorf("tx: compile: %w", err)
	}
	if n := len(t.Message.AccountKeys); n > MaxAccounts {
		return nil, fmt.Errorf("tx: %d accounts exceeds %d", n, MaxAccounts)
	}
	return fromSolana(&t.Message)
}

// Encode serializes the message.
func (m *Message) Encode() ([]byte, error) {
	sm := m.toSolana()
	b, err := sm.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("tx: encode message: %w", err)
	}
	return b, nil
}

// IsSigner reports whether the key at index i must sign.
func (m *Message) IsSigner(i int) bool {
	return i < int(m.Header.NumRequiredSignatures)
}

// IsWritable reports whether the key at index i is writable.
func (m *Message) IsWritable(i int) bool {
	signers := int(m.Header.NumRequiredSignatures)
	if i < signers {
		return i < signers-int(m.Header.NumReadonlySigned)
	}
	return i < len(m.AccountKeys)-int(m.Header.NumReadonlyUnsigned)
}

// Program returns the program invoked by ix.
func (m *Message) Program(ix CompiledInstruction) (core.Pubkey, error) {
	return m.key(ix.ProgramIDIndex)
}

// Account returns the n-th account referenced by ix.
func (m *Message) Account(ix CompiledInstruction, n int) (core.Pubkey, error) {
	if n >= len(ix.Accounts) {
		return core.Pubkey{}, fmt.Errorf("tx: instruction has %d accounts, want index %d", len(ix.Accounts), n)
	}
	return m.key(ix.Accounts[n])
}

func (m *Message) key(i uint8) (core.Pubkey, error) {
	if int(i) >= len(m.AccountKeys) {
		return core.Pubkey{}, fmt.Errorf("tx: account index %d out of range (%d keys)", i, len(m.AccountKeys))
	}
	return m.AccountKeys[i], nil
}

// DecodeMessage parses a serialized message.
func DecodeMessage(b []byte) (*Message, error) {
	if err := checkVersion(b); err != nil {
		return nil, err
	}
	var sm solana.Message
	dec := bin.NewBinDecoder(b)
	if err := sm.UnmarshalWithDecoder(dec); err != nil {
		return nil, fmt.Errorf("tx: decode message: %w", err)
	}
	if n := dec.Remaining(); n != 0 {
		return nil, fmt.Errorf("tx: %d trailing bytes after message", n)
	}
	return fromSolana(&sm)
}

// checkVersion rejects versioned messages newer than version 0.
func checkVersion(b []byte) error {
	if len(b) == 0 || b[0]&versionPrefix == 0 {
		return nil
	}
	if version := b[0] &^ versionPrefix; version != 0 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	return nil
}

func fromSolana(sm *solana.Message) (*Message, error) {
	if len(sm.AddressTableLookups) != 0 {
		return nil, fmt.Errorf("%w: address table lookups", ErrUnsupportedVersion)
	}
	if len(sm.AccountKeys) > MaxAccounts {
		return nil, fmt.Errorf("tx: %d accounts exceeds %d", len(sm.AccountKeys), MaxAccounts)
	}
	if int(sm.Header.NumRequiredSignatures) > len(sm.AccountKeys) {
		return nil, fmt.Errorf("tx: header requires %d signers but message has %d keys",
			sm.Header.NumRequiredSignatures, len(sm.AccountKeys))
	}

	m := &Message{
		Header: Header{
			NumRequiredSignatures: sm.Header.NumRequiredSignatures,
			NumReadonlySigned:     sm.Header.NumReadonlySignedAccounts,
			NumReadonlyUnsigned:   sm.Header.NumReadonlyUnsignedAccounts,
		},
		RecentBlockhash: core.Hash(sm.RecentBlockhash),
		versioned:       sm.IsVersioned(),
	}
	for _, k := range sm.AccountKeys {
		m.AccountKeys = append(m.AccountKeys, core.Pubkey(k))
	}
	for _, ix := range sm.Instructions {
		if ix.ProgramIDIndex >= MaxAccounts {
			return nil, fmt.Errorf("tx: program index %d out of range", ix.ProgramIDIndex)
		}
		ci := CompiledInstruction{ProgramIDIndex: uint8(ix.ProgramIDIndex)}
		for _, a := range ix.Accounts {
			if a >= MaxAccounts {
				return nil, fmt.Errorf("tx: account index %d out of range", a)
			}
			ci.Accounts = append(ci.Accounts, uint8(a))
		}
		if len(ix.Data) > 0 {
			ci.Data = slices.Clone([]byte(ix.Data))
		}
		m.Instructions = append(m.Instructions, ci)
	}
	return m, nil
}

func (m *Message) toSolana() solana.Message {
	sm := solana.Message{
		Header: solana.MessageHeader{
			NumRequiredSignatures:       m.Header.NumRequiredSignatures,
			NumReadonlySignedAccounts:   m.Header.NumReadonlySigned,
			NumReadonlyUnsignedAccounts: m.Header.NumReadonlyUnsigned,
		},
		RecentBlockhash: solana.Hash(m.RecentBlockhash),
	}
	for _, k := range m.AccountKeys {
		sm.AccountKeys = append(sm.AccountKeys, solana.PublicKey(k))
	}
	for _, ix := range m.Instructions {
		ci := solana.CompiledInstruction{
			ProgramIDIndex: uint16(ix.ProgramIDIndex),
			Data:           solana.Base58(ix.Data),
		}
		for _, a := range ix.Accounts {
			ci.Accounts = append(ci.Accounts, uint16(a))
		}
		sm.Instructions = append(sm.Instructions, ci)
	}
	if m.versioned {
		sm.SetVersion(solana.MessageVersionV0)
	}
	return sm
}
