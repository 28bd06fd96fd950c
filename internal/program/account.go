package program

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/dataanchor/core"
)

// ContainerState is the data held by a container account.
type ContainerState struct {
	Authority core.Pubkey
	Namespace string
	Bump      uint8
	// Hash is advanced by every appended chunk.
	Hash core.Hash
	// Slot is the slot of the most recent append.
	Slot   core.Slot
	Chunks uint64
}

// Encode serializes the state with its account discriminator.
func (s *ContainerState) Encode() []byte {
	b := make([]byte, 0, 8+core.PubkeySize+4+len(s.Namespace)+1+core.HashSize+16)
	b = append(b, containerDisc[:]...)
	b = append(b, s.Authority[:]...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(s.Namespace)))
	b = append(b, s.Namespace...)
	b = append(b, s.Bump)
	b = append(b, s.Hash[:]...)
	b = binary.LittleEndian.AppendUint64(b, uint64(s.Slot))
	return binary.LittleEndian.AppendUint64(b, s.Chunks)
}

// DecodeContainer parses container account data.
func DecodeContainer(data []byte) (*ContainerState, error) {
	if len(data) < 8 || discriminator(data[:8]) != containerDisc {
		return nil, fmt.Errorf("%w: account is not a container", core.ErrDecode)
	}
	b := data[8:]
	if len(b) < core.PubkeySize+4 {
		return nil, fmt.Errorf("%w: truncated container account", core.ErrDecode)
	}
	s := &ContainerState{Authority: core.Pubkey(b[:core.PubkeySize])}
	b = b[core.PubkeySize:]
	n := int(binary.LittleEndian.Uint32(b))
	b = b[4:]
	if len(b) != n+1+core.HashSize+16 {
		return nil, fmt.Errorf("%w: container account has %d trailing bytes, want %d", core.ErrDecode, len(b), n+1+core.HashSize+16)
	}
	s.Namespace = string(b[:n])
	b = b[n:]
	s.Bump = b[0]
	s.Hash = core.Hash(b[1 : 1+core.HashSize])
	b = b[1+core.HashSize:]
	s.Slot = core.Slot(binary.LittleEndian.Uint64(b))
	s.Chunks = binary.LittleEndian.Uint64(b[8:])
	return s, nil
}
