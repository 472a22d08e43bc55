package task

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/actormesh/actor"
	"github.com/hupe1980/actormesh/core"
)

type stubCapability struct {
	name string
	fn   func(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error)
}

func (c *stubCapability) Name() string { return c.name }

func (c *stubCapability) Invoke(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	return c.fn(ctx, req)
}

func echoCapability() *stubCapability {
	return &stubCapability{
		name: "echo",
		fn: func(_ context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
			return &core.CapabilityResult{Text: "echo: " + req.Prompt}, nil
		},
	}
}

func newTestManager(t *testing.T, optFns ...func(o *Options)) *Manager {
	t.Helper()
	system := actor.NewSystem("task-test")
	m := NewManager(system, optFns...)
	t.Cleanup(func() {
		m.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = system.Shutdown(ctx)
	})
	return m
}

func collectEvents(t *testing.T, events <-chan core.TaskEvent) []core.TaskEvent {
	t.Helper()
	var got []core.TaskEvent
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for event stream to close")
		}
	}
}

func waitTerminal(t *testing.T, m *Manager, taskID string) core.TaskStatus {
	t.Helper()
	var status core.TaskStatus
	require.Eventually(t, func() bool {
		var err error
		status, err = m.Status(context.Background(), taskID)
		return err == nil && status.State.Terminal()
	}, 3*time.Second, 5*time.Millisecond)
	return status
}

func TestSendCompletesTask(t *testing.T) {
	m := newTestManager(t)
	m.Register(echoCapability())

	task, events, err := m.SendSubscribe(context.Background(), SendParams{
		Capability: "echo",
		SessionID:  "session-1",
		Message:    core.NewUserMessage("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, core.TaskStateSubmitted, task.Status.State)
	assert.NotEmpty(t, task.ID)

	got := collectEvents(t, events)
	require.Len(t, got, 4)
	assert.Equal(t, core.EventTypeTaskStarted, got[0].Type())
	assert.Equal(t, core.EventTypeArtifactAdded, got[1].Type())
	assert.Equal(t, core.EventTypeMessageAdded, got[2].Type())
	assert.Equal(t, core.EventTypeTaskCompleted, got[3].Type())

	final, err := m.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStateCompleted, final.Status.State)
	assert.Equal(t, 1.0, final.Status.Progress)
	assert.NotNil(t, final.Status.StartedAt)
	assert.NotNil(t, final.Status.CompletedAt)
	assert.Empty(t, final.Status.Error)

	require.Len(t, final.History, 2)
	assert.Equal(t, core.RoleUser, final.History[0].Role)
	assert.Equal(t, core.RoleAssistant, final.History[1].Role)
	assert.Equal(t, "echo: hello", final.History[1].Text())

	require.Len(t, final.Artifacts, 1)
	assert.Equal(t, "echo-result", final.Artifacts[0].Name)
	assert.Equal(t, "echo: hello", final.Artifacts[0].Text())
}

func TestSendUnknownCapability(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Send(context.Background(), SendParams{
		Capability: "nope",
		Message:    core.NewUserMessage("hello"),
	})
	assert.ErrorIs(t, err, core.ErrCapabilityNotFound)
}

func TestCapabilityErrorFailsTask(t *testing.T) {
	m := newTestManager(t)
	m.Register(&stubCapability{
		name: "broken",
		fn: func(context.Context, core.CapabilityRequest) (*core.CapabilityResult, error) {
			return nil, errors.New("upstream exploded")
		},
	})

	task, events, err := m.SendSubscribe(context.Background(), SendParams{
		Capability: "broken",
		Message:    core.NewUserMessage("hello"),
	})
	require.NoError(t, err)

	got := collectEvents(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, core.EventTypeTaskStarted, got[0].Type())
	assert.Equal(t, core.EventTypeTaskFailed, got[1].Type())

	status := waitTerminal(t, m, task.ID)
	assert.Equal(t, core.TaskStateFailed, status.State)
	assert.Contains(t, status.Error, "upstream exploded")
	assert.Contains(t, status.Error, "broken")
	assert.NotNil(t, status.CompletedAt)
}

func TestEmptyPromptFailsTask(t *testing.T) {
	m := newTestManager(t)
	m.Register(echoCapability())

	task, err := m.Send(context.Background(), SendParams{
		Capability: "echo",
		Message:    core.NewMessage(core.RoleUser),
	})
	require.NoError(t, err)

	status := waitTerminal(t, m, task.ID)
	assert.Equal(t, core.TaskStateFailed, status.State)
	assert.Contains(t, status.Error, "no textual input")
}

func TestCancelInFlightTask(t *testing.T) {
	m := newTestManager(t)
	started := make(chan struct{})
	m.Register(&stubCapability{
		name: "slow",
		fn: func(ctx context.Context, _ core.CapabilityRequest) (*core.CapabilityResult, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	task, events, err := m.SendSubscribe(context.Background(), SendParams{
		Capability: "slow",
		Message:    core.NewUserMessage("hello"),
	})
	require.NoError(t, err)
	<-started

	cancelled, err := m.Cancel(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStateCancelled, cancelled.Status.State)
	assert.NotNil(t, cancelled.Status.CompletedAt)

	got := collectEvents(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, core.EventTypeTaskStarted, got[0].Type())
	assert.Equal(t, core.EventTypeTaskCancelled, got[1].Type())

	// The losing capability write must not overwrite the terminal state.
	time.Sleep(50 * time.Millisecond)
	status, err := m.Status(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStateCancelled, status.State)
	assert.Empty(t, status.Error)
}

func TestCancelSubmittedTask(t *testing.T) {
	m := newTestManager(t)
	gate := make(chan struct{})
	m.Register(&stubCapability{
		name: "gated",
		fn: func(ctx context.Context, _ core.CapabilityRequest) (*core.CapabilityResult, error) {
			select {
			case <-gate:
				return &core.CapabilityResult{Text: "done"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})
	defer close(gate)

	task, err := m.Send(context.Background(), SendParams{
		Capability: "gated",
		Message:    core.NewUserMessage("hello"),
	})
	require.NoError(t, err)

	cancelled, err := m.Cancel(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStateCancelled, cancelled.Status.State)

	status := waitTerminal(t, m, task.ID)
	assert.Equal(t, core.TaskStateCancelled, status.State)
}

func TestCancelIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	m.Register(&stubCapability{
		name: "slow",
		fn: func(ctx context.Context, _ core.CapabilityRequest) (*core.CapabilityResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	task, err := m.Send(context.Background(), SendParams{
		Capability: "slow",
		Message:    core.NewUserMessage("hello"),
	})
	require.NoError(t, err)

	first, err := m.Cancel(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStateCancelled, first.Status.State)

	second, err := m.Cancel(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStateCancelled, second.Status.State)
	assert.Equal(t, first.Status.CompletedAt.Unix(), second.Status.CompletedAt.Unix())
}

func TestCancelCompletedTaskIsNoOp(t *testing.T) {
	m := newTestManager(t)
	m.Register(echoCapability())

	task, err := m.Send(context.Background(), SendParams{
		Capability: "echo",
		Message:    core.NewUserMessage("hello"),
	})
	require.NoError(t, err)
	waitTerminal(t, m, task.ID)

	got, err := m.Cancel(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStateCompleted, got.Status.State)
}

func TestCancelUnknownTask(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Cancel(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrTaskNotFound)
}

func TestTerminalTaskIsImmutable(t *testing.T) {
	m := newTestManager(t)
	m.Register(echoCapability())

	task, err := m.Send(context.Background(), SendParams{
		Capability: "echo",
		Message:    core.NewUserMessage("hello"),
	})
	require.NoError(t, err)
	waitTerminal(t, m, task.ID)

	assert.ErrorIs(t, m.AddMessage(context.Background(), task.ID, core.NewUserMessage("more")), core.ErrTaskTerminal)
	assert.ErrorIs(t, m.AddArtifact(context.Background(), task.ID, core.NewTextArtifact("a", "b")), core.ErrTaskTerminal)
	assert.ErrorIs(t, m.SetProgress(context.Background(), task.ID, 0.5), core.ErrTaskTerminal)
}

func TestProgressIsMonotonicAndClamped(t *testing.T) {
	m := newTestManager(t)
	started := make(chan struct{})
	gate := make(chan struct{})
	m.Register(&stubCapability{
		name: "gated",
		fn: func(ctx context.Context, _ core.CapabilityRequest) (*core.CapabilityResult, error) {
			close(started)
			select {
			case <-gate:
				return &core.CapabilityResult{Text: "done"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})

	task, err := m.Send(context.Background(), SendParams{
		Capability: "gated",
		Message:    core.NewUserMessage("hello"),
	})
	require.NoError(t, err)
	<-started

	require.NoError(t, m.SetProgress(context.Background(), task.ID, 0.5))
	status, err := m.Status(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, status.Progress)

	// Lower values are ignored, higher ones clamp to 1.
	require.NoError(t, m.SetProgress(context.Background(), task.ID, 0.3))
	status, err = m.Status(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, status.Progress)

	require.NoError(t, m.SetProgress(context.Background(), task.ID, 7))
	status, err = m.Status(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, status.Progress)

	close(gate)
	final := waitTerminal(t, m, task.ID)
	assert.Equal(t, 1.0, final.Progress)
}

func TestSubscribeTerminalTaskClosesImmediately(t *testing.T) {
	m := newTestManager(t)
	m.Register(echoCapability())

	task, err := m.Send(context.Background(), SendParams{
		Capability: "echo",
		Message:    core.NewUserMessage("hello"),
	})
	require.NoError(t, err)
	waitTerminal(t, m, task.ID)

	events, unsubscribe, err := m.Subscribe(context.Background(), task.ID)
	require.NoError(t, err)
	defer unsubscribe()

	_, open := <-events
	assert.False(t, open)
}

func TestSubscribeDuringCompletionAlwaysCloses(t *testing.T) {
	m := newTestManager(t)
	m.Register(echoCapability())

	// Subscribe races the worker's terminal publish. Either the channel is
	// registered before the terminal event (and closed by it) or the task is
	// already terminal (and the channel arrives closed); it must never hang.
	for i := 0; i < 25; i++ {
		task, err := m.Send(context.Background(), SendParams{
			Capability: "echo",
			Message:    core.NewUserMessage("hello"),
		})
		require.NoError(t, err)

		events, unsubscribe, err := m.Subscribe(context.Background(), task.ID)
		require.NoError(t, err)

		deadline := time.After(3 * time.Second)
		for open := true; open; {
			select {
			case _, open = <-events:
			case <-deadline:
				t.Fatal("subscription to terminal task never closed")
			}
		}
		unsubscribe()
	}
}

func TestMultipleSubscribersSeeSameSequence(t *testing.T) {
	m := newTestManager(t)
	started := make(chan struct{})
	gate := make(chan struct{})
	m.Register(&stubCapability{
		name: "gated",
		fn: func(ctx context.Context, _ core.CapabilityRequest) (*core.CapabilityResult, error) {
			close(started)
			select {
			case <-gate:
				return &core.CapabilityResult{Text: "done"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})

	task, first, err := m.SendSubscribe(context.Background(), SendParams{
		Capability: "gated",
		Message:    core.NewUserMessage("hello"),
	})
	require.NoError(t, err)
	<-started

	second, unsubscribe, err := m.Subscribe(context.Background(), task.ID)
	require.NoError(t, err)
	defer unsubscribe()
	close(gate)

	gotFirst := collectEvents(t, first)
	gotSecond := collectEvents(t, second)

	require.Len(t, gotFirst, 4)
	// The second subscriber joined after TaskStarted fired.
	require.Len(t, gotSecond, 3)
	assert.Equal(t, core.EventTypeArtifactAdded, gotSecond[0].Type())
	assert.Equal(t, core.EventTypeMessageAdded, gotSecond[1].Type())
	assert.Equal(t, core.EventTypeTaskCompleted, gotSecond[2].Type())
}

func TestPushNotificationWildcardDelivery(t *testing.T) {
	var mu sync.Mutex
	var types []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		types = append(types, body.Type)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := newTestManager(t)
	m.Register(echoCapability())

	task, err := m.Send(context.Background(), SendParams{
		Capability: "echo",
		Message:    core.NewUserMessage("hello"),
		PushConfig: &core.PushNotificationConfig{URL: srv.URL, Events: []string{core.PushWildcard}},
	})
	require.NoError(t, err)
	waitTerminal(t, m, task.ID)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(types) == 4
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, types, core.EventTypeTaskStarted)
	assert.Contains(t, types, core.EventTypeTaskCompleted)
}

func TestPushNotificationFiltering(t *testing.T) {
	var mu sync.Mutex
	var types []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		types = append(types, body.Type)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := newTestManager(t)
	m.Register(echoCapability())

	task, err := m.Send(context.Background(), SendParams{
		Capability: "echo",
		Message:    core.NewUserMessage("hello"),
		PushConfig: &core.PushNotificationConfig{URL: srv.URL, Events: []string{core.EventTypeTaskCompleted}},
	})
	require.NoError(t, err)
	waitTerminal(t, m, task.ID)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(types) == 1
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{core.EventTypeTaskCompleted}, types)
}

func TestSetPushNotificationOnUnknownTask(t *testing.T) {
	m := newTestManager(t)
	err := m.SetPushNotification(context.Background(), "missing", core.PushNotificationConfig{URL: "http://example.com"})
	assert.ErrorIs(t, err, core.ErrTaskNotFound)
}

func TestJanitorRemovesExpiredTasks(t *testing.T) {
	m := newTestManager(t, func(o *Options) {
		o.RetainFor = 10 * time.Millisecond
		o.SweepInterval = 20 * time.Millisecond
	})
	m.Register(echoCapability())

	task, err := m.Send(context.Background(), SendParams{
		Capability: "echo",
		Message:    core.NewUserMessage("hello"),
	})
	require.NoError(t, err)
	waitTerminal(t, m, task.ID)

	require.Eventually(t, func() bool {
		_, err := m.Get(context.Background(), task.ID)
		return errors.Is(err, core.ErrTaskNotFound)
	}, 3*time.Second, 10*time.Millisecond)
}

func TestListFiltersBySession(t *testing.T) {
	m := newTestManager(t)
	m.Register(echoCapability())

	for _, session := range []string{"a", "a", "b"} {
		_, err := m.Send(context.Background(), SendParams{
			Capability: "echo",
			SessionID:  session,
			Message:    core.NewUserMessage("hello"),
		})
		require.NoError(t, err)
	}

	inA, err := m.List(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, inA, 2)

	all, err := m.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSendDuplicateTaskID(t *testing.T) {
	m := newTestManager(t)
	m.Register(echoCapability())

	_, err := m.Send(context.Background(), SendParams{
		TaskID:     "dup",
		Capability: "echo",
		Message:    core.NewUserMessage("hello"),
	})
	require.NoError(t, err)

	_, err = m.Send(context.Background(), SendParams{
		TaskID:     "dup",
		Capability: "echo",
		Message:    core.NewUserMessage("again"),
	})
	assert.ErrorContains(t, err, "already exists")
}

func TestConcurrentSendsWithSameTaskID(t *testing.T) {
	m := newTestManager(t)
	m.Register(echoCapability())

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Send(context.Background(), SendParams{
				TaskID:     "dup-concurrent",
				Capability: "echo",
				Message:    core.NewUserMessage("hello"),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorContains(t, err, "already exists")
		}
	}
	assert.Equal(t, 1, succeeded)
}

type recordingDispatcher struct {
	mu    sync.Mutex
	types []string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ core.PushNotificationConfig, event core.TaskEvent) error {
	d.mu.Lock()
	d.types = append(d.types, event.Type())
	d.mu.Unlock()
	return nil
}

func (d *recordingDispatcher) recorded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.types...)
}

func TestCloseStopsPushDeliveries(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	m := newTestManager(t, func(o *Options) { o.Dispatcher = dispatcher })
	m.Register(&stubCapability{
		name: "slow",
		fn: func(ctx context.Context, _ core.CapabilityRequest) (*core.CapabilityResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	task, err := m.Send(context.Background(), SendParams{
		Capability: "slow",
		Message:    core.NewUserMessage("hello"),
		PushConfig: &core.PushNotificationConfig{URL: "http://example.com/hook", Events: []string{core.PushWildcard}},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(dispatcher.recorded()) == 1
	}, 3*time.Second, 5*time.Millisecond)

	m.Close()

	// The terminal publish after Close must not hand the dispatcher a new
	// delivery goroutine behind the WaitGroup's back.
	_, err = m.Cancel(context.Background(), task.ID)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{core.EventTypeTaskStarted}, dispatcher.recorded())
}
