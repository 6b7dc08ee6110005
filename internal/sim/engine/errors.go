package engine

import (
	"errors"
	"fmt"

	"ecosim/internal/sim/catalog"
)

var (
	ErrBadDimensions    = errors.New("grid dimensions must be positive")
	ErrChunkIndivisible = errors.New("chunk size must divide grid dimensions")
	ErrPaused           = errors.New("engine is paused")
	ErrStopped          = errors.New("engine is stopped")
)

// WorkerFailure reports the chunk whose evaluation task aborted.
// The engine enters StateErrored and serves no further ticks.
type WorkerFailure struct {
	CX, CY int
	Err    error
}

func (f *WorkerFailure) Error() string {
	return fmt.Sprintf("chunk (%d,%d) evaluation failed: %v", f.CX, f.CY, f.Err)
}

func (f *WorkerFailure) Unwrap() error { return f.Err }

// unknownTypeError is the panic value raised when a cell references a type id
// outside the catalog. It is a programming-error class, not a recoverable
// condition, so rule evaluation does not return it as an error.
type unknownTypeError struct {
	id catalog.TypeID
}

func (e unknownTypeError) Error() string {
	return fmt.Sprintf("cell type %d outside catalog range", e.id)
}

func (e unknownTypeError) Unwrap() error { return catalog.ErrUnknownType }
