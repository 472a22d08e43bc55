// Package actormesh provides a high-level façade over the actor runtime and
// the task manager, enabling rapid construction of task delegation systems.
// Most applications interact with this package by:
//  1. Creating a Mesh via New() (optionally overriding the default in-memory store)
//  2. Registering one or more capabilities (function, OpenAI, Anthropic, custom)
//  3. Delegating work asynchronously (Delegate), with live events
//     (DelegateStream) or synchronously (DelegateSync)
//
// The façade delegates lifecycle enforcement to task.Manager and scheduling to
// actor.System while keeping setup and usage ergonomics concise. All defaults
// are safe for local development and testing; production deployments typically
// supply a durable task store and a structured logger.
package actormesh

import (
	"context"
	"net/http"
	"time"

	"github.com/hupe1980/actormesh/actor"
	"github.com/hupe1980/actormesh/core"
	"github.com/hupe1980/actormesh/logging"
	"github.com/hupe1980/actormesh/push"
	"github.com/hupe1980/actormesh/task"
	"github.com/hupe1980/actormesh/transport"
)

// Options configures the Mesh instance.
type Options struct {
	// SystemName names the underlying actor system.
	SystemName string

	// Host is the externally reachable address for remote actor messaging.
	// Empty keeps the system local-only.
	Host string

	// Transport enables remote actor messaging; nil disables it.
	Transport actor.Transport

	// MailboxLimit bounds worker mailboxes. Zero means unbounded.
	MailboxLimit int

	// TaskStore persists tasks (defaults to an in-memory implementation).
	TaskStore core.TaskStore

	// Dispatcher delivers push notifications (defaults to HTTP).
	Dispatcher push.Dispatcher

	// RetainFor keeps terminal tasks for the given duration before cleanup.
	// Zero retains forever.
	RetainFor time.Duration

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Mesh is the high-level façade aggregating the actor system and the task manager.
type Mesh struct {
	opts    Options
	system  *actor.System
	manager *task.Manager
}

// New creates a new Mesh instance with optional overrides. Any unset service
// is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Mesh {
	opts := Options{
		SystemName: "actormesh",
		TaskStore:  task.NewInMemoryStore(),
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	system := actor.NewSystem(opts.SystemName, func(o *actor.Options) {
		o.Host = opts.Host
		o.Transport = opts.Transport
		o.MailboxLimit = opts.MailboxLimit
		o.Logger = opts.Logger
	})

	manager := task.NewManager(system, func(o *task.Options) {
		o.Store = opts.TaskStore
		o.Dispatcher = opts.Dispatcher
		o.Logger = opts.Logger
		o.RetainFor = opts.RetainFor
	})

	return &Mesh{opts: opts, system: system, manager: manager}
}

// RegisterCapability makes a capability available for delegation.
func (m *Mesh) RegisterCapability(c core.Capability) { m.manager.Register(c) }

// Delegate submits a task to the named capability and returns the submitted
// snapshot immediately.
func (m *Mesh) Delegate(ctx context.Context, capability, prompt string, optFns ...func(p *task.SendParams)) (*core.Task, error) {
	params := task.SendParams{Capability: capability, Message: core.NewUserMessage(prompt)}
	for _, fn := range optFns {
		fn(&params)
	}
	return m.manager.Send(ctx, params)
}

// DelegateStream submits a task and returns a live event channel alongside
// the submitted snapshot. The channel observes the task's complete event
// sequence and is closed by the terminal event.
func (m *Mesh) DelegateStream(ctx context.Context, capability, prompt string, optFns ...func(p *task.SendParams)) (*core.Task, <-chan core.TaskEvent, error) {
	params := task.SendParams{Capability: capability, Message: core.NewUserMessage(prompt)}
	for _, fn := range optFns {
		fn(&params)
	}
	return m.manager.SendSubscribe(ctx, params)
}

// DelegateSync submits a task, waits for it to reach a terminal state and
// returns the final snapshot. Cancelling ctx abandons the wait, not the task.
func (m *Mesh) DelegateSync(ctx context.Context, capability, prompt string, optFns ...func(p *task.SendParams)) (*core.Task, error) {
	submitted, events, err := m.DelegateStream(ctx, capability, prompt, optFns...)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case _, open := <-events:
			if !open {
				return m.manager.Get(ctx, submitted.ID)
			}
		}
	}
}

// Task returns the current snapshot of a task.
func (m *Mesh) Task(ctx context.Context, taskID string) (*core.Task, error) {
	return m.manager.Get(ctx, taskID)
}

// TaskStatus returns the current status of a task.
func (m *Mesh) TaskStatus(ctx context.Context, taskID string) (core.TaskStatus, error) {
	return m.manager.Status(ctx, taskID)
}

// Cancel cancels a non-terminal task. Cancelling an already cancelled task is
// a no-op.
func (m *Mesh) Cancel(ctx context.Context, taskID string) (*core.Task, error) {
	return m.manager.Cancel(ctx, taskID)
}

// Subscribe attaches an event channel to a running task.
func (m *Mesh) Subscribe(ctx context.Context, taskID string) (<-chan core.TaskEvent, func(), error) {
	return m.manager.Subscribe(ctx, taskID)
}

// SetPushNotification associates webhook delivery with a task.
func (m *Mesh) SetPushNotification(ctx context.Context, taskID string, cfg core.PushNotificationConfig) error {
	return m.manager.SetPushNotification(ctx, taskID, cfg)
}

// Handler returns the HTTP surface for the task manager, ready to mount on
// any mux or serve directly.
func (m *Mesh) Handler() http.Handler {
	return transport.NewHandler(m.manager, func(o *transport.HandlerOptions) {
		o.Logger = m.opts.Logger
	})
}

// System exposes the underlying actor system for advanced use (spawning
// custom actors beside the task workers).
func (m *Mesh) System() *actor.System { return m.system }

// Manager exposes the underlying task manager.
func (m *Mesh) Manager() *task.Manager { return m.manager }

// Shutdown stops the task manager and the actor system.
func (m *Mesh) Shutdown(ctx context.Context) error {
	m.manager.Close()
	return m.system.Shutdown(ctx)
}
