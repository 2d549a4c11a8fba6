// Package memsentry provides a memory-safety circuit breaker for
// guarded execution with checkpoint-based rollback.
package memsentry

import (
	"errors"
	"fmt"
)

// Sentinel errors for guard construction and execution.
var (
	// ErrThresholdExceeded indicates a pre- or post-check found memory
	// usage at or above the critical threshold. This is the one error
	// kind callers are expected to catch and react to.
	ErrThresholdExceeded = errors.New("memory threshold exceeded")

	// ErrNilProbe indicates New() was called without a memory probe.
	ErrNilProbe = errors.New("memory probe cannot be nil")

	// ErrNilOperation indicates Execute() was called with a nil function.
	ErrNilOperation = errors.New("operation cannot be nil")
)

// Phase identifies which threshold check refused an execution.
type Phase string

// Check phases.
const (
	// PhasePre is the check before the operation starts; the
	// operation never ran.
	PhasePre Phase = "pre"

	// PhasePost is the check after the operation returned; the
	// operation ran and a rollback was attempted.
	PhasePost Phase = "post"
)

// ThresholdError reports an execution refused by a threshold check.
// It carries the offending usage and the threshold in force, and
// unwraps to ErrThresholdExceeded for errors.Is branching.
type ThresholdError struct {
	// Operation is the guarded operation name.
	Operation string
	// Phase is which check tripped (pre or post).
	Phase Phase
	// UsageMB is the sampled memory usage that tripped the check.
	UsageMB float64
	// ThresholdMB is the critical threshold in force at the time.
	ThresholdMB float64
}

// Error implements the error interface.
func (e *ThresholdError) Error() string {
	return fmt.Sprintf("operation %s refused at %s-check: memory %.1f MB >= critical %.1f MB",
		e.Operation, e.Phase, e.UsageMB, e.ThresholdMB)
}

// Unwrap returns ErrThresholdExceeded for errors.Is support.
func (e *ThresholdError) Unwrap() error {
	return ErrThresholdExceeded
}
