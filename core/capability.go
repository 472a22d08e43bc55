package core

import "context"

// CapabilityRequest carries the input handed to a capability when a task is
// processed. Prompt is the concatenated text of the task's last message;
// Params carries arbitrary caller-supplied parameters from task metadata.
type CapabilityRequest struct {
	TaskID    string
	SessionID string
	Prompt    string
	Params    map[string]any
}

// CapabilityResult is the output of a successful capability invocation. Text
// becomes the synthesized assistant message and the task's result artifact;
// Data optionally carries structured output attached as a data part.
type CapabilityResult struct {
	Text string
	Data map[string]any
}

// Capability is the external collaborator that actually produces a result
// for a delegated task. The task manager treats it as opaque: any returned
// error is wrapped into a CapabilityError and recorded as the task's failure.
//
// Implementations must respect ctx cancellation: task cancellation is
// cooperative and is propagated to in-flight invocations through ctx.
type Capability interface {
	// Name returns the identifier capabilities are registered and addressed by.
	Name() string

	// Invoke produces a result for the request or fails with any error.
	Invoke(ctx context.Context, req CapabilityRequest) (*CapabilityResult, error)
}
