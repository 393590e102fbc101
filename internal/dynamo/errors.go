package dynamo

import (
	"fmt"

	"github.com/pkg/errors"
)

// Domain errors shared across the bridge.
var (
	// ErrDimensionMismatch indicates snapshot arrays that do not match the bound joint count.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between snapshot and bound robots")

	// ErrInvalidVector indicates a six-vector with the wrong number of components.
	ErrInvalidVector = errors.New("dynamo: six-vector needs exactly 6 components")

	// ErrInvalidState indicates a state vector with NaN or Inf values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")
)

// TickError wraps an error with loop context.
type TickError struct {
	Iteration uint64
	SimTime   float64
	Wrapped   error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("iteration %d (t=%.4f): %v", e.Iteration, e.SimTime, e.Wrapped)
}

func (e *TickError) Unwrap() error {
	return e.Wrapped
}
