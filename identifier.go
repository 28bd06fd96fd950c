package dataanchor

import (
	"fmt"

	"github.com/meigma/dataanchor/core"
	"github.com/meigma/dataanchor/internal/namespace"
	"github.com/meigma/dataanchor/internal/program"
)

// MaxNamespaceLen is the longest namespace a container can be derived from.
const MaxNamespaceLen = namespace.MaxLen

// Identifier designates a container, either by namespace or by address.
// The zero Identifier is invalid.
type Identifier struct {
	namespace string
	address   Pubkey
	isAddress bool
}

// Namespace returns an identifier for the container derived from ns.
func Namespace(ns string) Identifier {
	return Identifier{namespace: ns}
}

// Address returns an identifier for the container at addr.
func Address(addr Pubkey) Identifier {
	return Identifier{address: addr, isAddress: true}
}

// ParseIdentifier interprets s as a base58 container address if it decodes
// to one, and as a namespace otherwise.
func ParseIdentifier(s string) (Identifier, error) {
	if addr, err := core.PubkeyFromBase58(s); err == nil {
		return Address(addr), nil
	}
	if err := namespace.Validate(s); err != nil {
		return Identifier{}, err
	}
	return Namespace(s), nil
}

// IsAddress reports whether the identifier holds an explicit address.
func (id Identifier) IsAddress() bool { return id.isAddress }

// Namespace returns the namespace, if the identifier holds one.
func (id Identifier) Namespace() (string, bool) {
	return id.namespace, !id.isAddress && id.namespace != ""
}

// String returns the namespace or the base58 address.
func (id Identifier) String() string {
	if id.isAddress {
		return id.address.String()
	}
	return id.namespace
}

// ResolveIdentifier returns the container address id designates under
// programID. Namespaces are derived deterministically; addresses are returned
// unchanged. No network access is involved.
func ResolveIdentifier(programID Pubkey, id Identifier) (Pubkey, error) {
	if id.isAddress {
		if id.address.IsZero() {
			return Pubkey{}, fmt.Errorf("%w: zero address", ErrInvalidIdentifier)
		}
		return id.address, nil
	}
	addr, _, err := program.ContainerAddress(programID, id.namespace)
	if err != nil {
		return Pubkey{}, err
	}
	return addr, nil
}

// Resolve returns the container address id designates for this client's program.
func (c *Client) Resolve(id Identifier) (Pubkey, error) {
	return ResolveIdentifier(c.programID, id)
}
