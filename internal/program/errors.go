package program

import (
	"errors"

	"github.com/meigma/dataanchor/core"
)

// Error codes raised while executing blober instructions.
const (
	// CodeAccountAlreadyInUse is raised by the system program when the
	// container address is already allocated.
	CodeAccountAlreadyInUse uint32 = 0
	// CodeAccountOwnedByWrongProgram is raised when a closed container
	// address has been reassigned to the system program.
	CodeAccountOwnedByWrongProgram uint32 = 3007
	// CodeAccountNotInitialized is raised when the container does not exist.
	CodeAccountNotInitialized uint32 = 3012
	// CodeInvalidChunk is raised when a chunk's header is inconsistent
	// with the container it targets.
	CodeInvalidChunk uint32 = 6000
)

// Classify attaches the structured failure kind to a transaction error raised
// while executing an instruction of kind. Errors that are not a
// *core.TransactionError, or codes that are not recognized, pass through.
func Classify(kind Kind, err error) error {
	var txErr *core.TransactionError
	if !errors.As(err, &txErr) || txErr.Kind != nil {
		return err
	}
	code, ok := txErr.InstructionError(InstructionIndex)
	if !ok {
		return err
	}
	switch {
	case kind == KindInitialize && code == CodeAccountAlreadyInUse:
		txErr.Kind = core.ErrContainerAlreadyExists
	case (kind == KindInsertChunk || kind == KindClose) &&
		(code == CodeAccountNotInitialized || code == CodeAccountOwnedByWrongProgram):
		txErr.Kind = core.ErrContainerNotFound
	case kind == KindInsertChunk && code == CodeInvalidChunk:
		txErr.Kind = core.ErrDecode
	}
	return err
}
