package dataanchor

import (
	"context"
	"errors"
	"fmt"

	"github.com/meigma/dataanchor/internal/program"
)

// ContainerInfo describes a live container.
type ContainerInfo struct {
	Address   Pubkey
	Authority Pubkey
	Namespace string
	// Hash is the container's state hash, advanced by every appended chunk.
	Hash Hash
	// Slot is the slot of the most recent append.
	Slot Slot
	// Chunks is the number of chunks appended since creation.
	Chunks uint64
	// Lamports is the reserve returned to the authority on Close.
	Lamports uint64
}

// Create creates the container for a namespace identifier. Unlike Initialize
// it fails with ErrContainerAlreadyExists if the container is present.
func (c *Client) Create(ctx context.Context, fee FeeStrategy, id Identifier, opts ...LifecycleOption) (Pubkey, error) {
	if err := c.requirePayer(); err != nil {
		return Pubkey{}, err
	}
	cfg := newLifecycleConfig(opts)

	ns, ok := id.Namespace()
	if !ok {
		return Pubkey{}, fmt.Errorf("%w: containers are created from a namespace, not an address", ErrInvalidIdentifier)
	}
	addr, _, err := program.ContainerAddress(c.programID, ns)
	if err != nil {
		return Pubkey{}, err
	}
	fp, err := c.feeParams(ctx, fee, addr)
	if err != nil {
		return addr, err
	}

	ixs, err := program.WithComputeBudget(fp, program.InitializeComputeUnits,
		program.Initialize(c.programID, addr, c.payer.PublicKey(), ns))
	if err != nil {
		return addr, err
	}
	if _, _, err := c.execute(ctx, program.KindInitialize, ixs, cfg.timeout); err != nil {
		return addr, fmt.Errorf("create container %q: %w", ns, err)
	}
	c.logger.Info("container created", "namespace", ns, "container", addr)
	return addr, nil
}

// Initialize ensures the container for a namespace identifier exists. An
// existing container, including one created concurrently by another caller,
// is success.
func (c *Client) Initialize(ctx context.Context, fee FeeStrategy, id Identifier, opts ...LifecycleOption) (Pubkey, error) {
	if err := c.requirePayer(); err != nil {
		return Pubkey{}, err
	}
	addr, err := c.Resolve(id)
	if err != nil {
		return Pubkey{}, err
	}
	if _, err := c.containerState(ctx, addr); err == nil {
		c.logger.Debug("container exists", "container", addr)
		return addr, nil
	} else if !errors.Is(err, ErrContainerNotFound) {
		return addr, err
	}

	addr, err = c.Create(ctx, fee, id, opts...)
	if errors.Is(err, ErrContainerAlreadyExists) {
		c.logger.Debug("container created concurrently", "container", addr)
		return addr, nil
	}
	return addr, err
}

// Close tears down the container id designates and returns its reserve to
// the payer. Anchored transactions remain on the ledger. After Close the
// namespace can be initialized again.
func (c *Client) Close(ctx context.Context, fee FeeStrategy, id Identifier, opts ...LifecycleOption) error {
	if err := c.requirePayer(); err != nil {
		return err
	}
	cfg := newLifecycleConfig(opts)

	addr, err := c.Resolve(id)
	if err != nil {
		return err
	}
	if _, err := c.containerState(ctx, addr); err != nil {
		return err
	}
	fp, err := c.feeParams(ctx, fee, addr)
	if err != nil {
		return err
	}

	ixs, err := program.WithComputeBudget(fp, program.CloseComputeUnits,
		program.Close(c.programID, addr, c.payer.PublicKey()))
	if err != nil {
		return err
	}
	if _, _, err := c.execute(ctx, program.KindClose, ixs, cfg.timeout); err != nil {
		return fmt.Errorf("close container %s: %w", addr, err)
	}
	c.logger.Info("container closed", "container", addr)
	return nil
}

// Container reads the state of the container id designates.
func (c *Client) Container(ctx context.Context, id Identifier) (*ContainerInfo, error) {
	addr, err := c.Resolve(id)
	if err != nil {
		return nil, err
	}
	acct, err := c.ledger.GetAccount(ctx, addr)
	if err != nil {
		return nil, containerError(addr, err)
	}
	state, err := decodeContainer(addr, c.programID, acct.Owner, acct.Data)
	if err != nil {
		return nil, err
	}
	return &ContainerInfo{
		Address:   addr,
		Authority: state.Authority,
		Namespace: state.Namespace,
		Hash:      state.Hash,
		Slot:      state.Slot,
		Chunks:    state.Chunks,
		Lamports:  acct.Lamports,
	}, nil
}

// containerState returns the live container at addr, or ErrContainerNotFound.
func (c *Client) containerState(ctx context.Context, addr Pubkey) (*program.ContainerState, error) {
	acct, err := c.ledger.GetAccount(ctx, addr)
	if err != nil {
		return nil, containerError(addr, err)
	}
	return decodeContainer(addr, c.programID, acct.Owner, acct.Data)
}

func containerError(addr Pubkey, err error) error {
	if errors.Is(err, ErrAccountNotFound) {
		return fmt.Errorf("%w: %s", ErrContainerNotFound, addr)
	}
	return fmt.Errorf("read container %s: %w", addr, err)
}

func decodeContainer(addr, programID, owner Pubkey, data []byte) (*program.ContainerState, error) {
	if owner != programID {
		return nil, fmt.Errorf("%w: %s is not owned by program %s", ErrContainerNotFound, addr, programID)
	}
	state, err := program.DecodeContainer(data)
	if err != nil {
		return nil, fmt.Errorf("container %s: %w", addr, err)
	}
	return state, nil
}
