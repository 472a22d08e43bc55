package core

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is returned by stores and the task manager for
	// operations addressing an unknown task id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition indicates an attempted task state transition not
	// permitted by the state machine. It is an internal invariant violation:
	// callers can never trigger it through the public API, so observing it
	// indicates a bug.
	ErrInvalidTransition = errors.New("invalid task state transition")

	// ErrTaskTerminal is returned when a mutation other than cancel is
	// attempted on a task already in a terminal state.
	ErrTaskTerminal = errors.New("task is in a terminal state")

	// ErrCapabilityNotFound is returned when delegating to an unregistered
	// capability name.
	ErrCapabilityNotFound = errors.New("capability not found")
)

// CapabilityError wraps whatever the external capability raised during
// invocation. The task manager records the wrapped text on the failed task.
type CapabilityError struct {
	Capability string
	Err        error
}

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %q invocation failed: %v", e.Capability, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *CapabilityError) Unwrap() error { return e.Err }
