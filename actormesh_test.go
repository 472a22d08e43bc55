package actormesh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/actormesh/capability"
	"github.com/hupe1980/actormesh/core"
)

func newTestMesh(t *testing.T) *Mesh {
	t.Helper()
	mesh := New()
	mesh.RegisterCapability(capability.NewFunc("echo", func(_ context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
		return &core.CapabilityResult{Text: "echo: " + req.Prompt}, nil
	}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = mesh.Shutdown(ctx)
	})
	return mesh
}

func TestDelegateSync(t *testing.T) {
	mesh := newTestMesh(t)

	final, err := mesh.DelegateSync(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, core.TaskStateCompleted, final.Status.State)
	require.Len(t, final.History, 2)
	assert.Equal(t, "echo: hello", final.History[1].Text())
}

func TestDelegateStream(t *testing.T) {
	mesh := newTestMesh(t)

	submitted, events, err := mesh.DelegateStream(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, core.TaskStateSubmitted, submitted.Status.State)

	var types []string
	for ev := range events {
		types = append(types, ev.Type())
	}
	require.NotEmpty(t, types)
	assert.Equal(t, core.EventTypeTaskStarted, types[0])
	assert.Equal(t, core.EventTypeTaskCompleted, types[len(types)-1])
}

func TestDelegateUnknownCapability(t *testing.T) {
	mesh := newTestMesh(t)

	_, err := mesh.Delegate(context.Background(), "nope", "hello")
	assert.ErrorIs(t, err, core.ErrCapabilityNotFound)
}

func TestMeshCancel(t *testing.T) {
	mesh := newTestMesh(t)
	mesh.RegisterCapability(capability.NewFunc("slow", func(ctx context.Context, _ core.CapabilityRequest) (*core.CapabilityResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	submitted, err := mesh.Delegate(context.Background(), "slow", "hello")
	require.NoError(t, err)

	cancelled, err := mesh.Cancel(context.Background(), submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStateCancelled, cancelled.Status.State)

	status, err := mesh.TaskStatus(context.Background(), submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStateCancelled, status.State)
}
