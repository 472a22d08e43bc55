package capability

import (
	"context"

	"github.com/hupe1980/actormesh/core"
)

// Func adapts a plain function to the core.Capability interface.
type Func struct {
	name string
	fn   func(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error)
}

// NewFunc creates a named capability from a function.
func NewFunc(name string, fn func(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error)) *Func {
	return &Func{name: name, fn: fn}
}

// Name implements core.Capability.
func (f *Func) Name() string { return f.name }

// Invoke implements core.Capability.
func (f *Func) Invoke(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	return f.fn(ctx, req)
}
