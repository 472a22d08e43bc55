package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/actormesh/actor"
	"github.com/hupe1980/actormesh/core"
	"github.com/hupe1980/actormesh/logging"
	"github.com/hupe1980/actormesh/push"
)

// Options configures a Manager.
type Options struct {
	// Store persists task snapshots. Defaults to an in-memory store.
	Store core.TaskStore

	// Dispatcher delivers push notifications. Defaults to an HTTP dispatcher.
	Dispatcher push.Dispatcher

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger

	// SubscriberBuffer is the channel capacity handed to each subscriber.
	// A subscriber that falls this far behind starts losing events (logged).
	SubscriberBuffer int

	// RetainFor keeps terminal tasks around for the given duration before
	// the janitor removes them. Zero disables cleanup.
	RetainFor time.Duration

	// SweepInterval is how often the janitor scans for expired tasks.
	SweepInterval time.Duration
}

// SendParams describes a task delegation request.
type SendParams struct {
	// TaskID optionally pins the new task's id; empty generates one.
	TaskID string

	// SessionID optionally groups the task with related tasks.
	SessionID string

	// Capability names the registered capability that will process the task.
	Capability string

	// Message is the initial user message; its text parts form the prompt.
	Message core.Message

	// Metadata is attached to the task verbatim.
	Metadata map[string]any

	// PushConfig optionally wires webhook delivery from the first event on.
	PushConfig *core.PushNotificationConfig
}

// Manager owns the full lifecycle of delegated tasks. It validates every
// state transition against the lifecycle state machine, runs capability
// invocations on per-task worker actors, and fans lifecycle events out to
// subscribers and push endpoints.
//
// All mutation of a given task is serialized through a per-task mutex, so
// concurrent cancel/complete races resolve to whichever terminal write
// acquires the lock first; the loser observes a terminal state and backs off.
type Manager struct {
	system     *actor.System
	store      core.TaskStore
	dispatcher push.Dispatcher
	logger     logging.Logger

	capMu        sync.RWMutex
	capabilities map[string]core.Capability

	mu          sync.Mutex
	closed      bool
	locks       map[string]*sync.Mutex
	subscribers map[string]map[int]chan core.TaskEvent
	nextSubID   int
	pushConfigs map[string]core.PushNotificationConfig
	cancels     map[string]context.CancelFunc

	subBuffer  int
	retainFor  time.Duration
	sweepEvery time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a task manager that runs its workers on the given actor
// system. The system is borrowed, not owned: Close does not shut it down.
func NewManager(system *actor.System, optFns ...func(o *Options)) *Manager {
	opts := Options{
		Store:            NewInMemoryStore(),
		Logger:           logging.NoOpLogger{},
		SubscriberBuffer: 32,
		SweepInterval:    time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = NewInMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = push.NewHTTPDispatcher(func(o *push.HTTPDispatcherOptions) {
			o.Logger = opts.Logger
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		system:       system,
		store:        opts.Store,
		dispatcher:   opts.Dispatcher,
		logger:       opts.Logger,
		capabilities: make(map[string]core.Capability),
		locks:        make(map[string]*sync.Mutex),
		subscribers:  make(map[string]map[int]chan core.TaskEvent),
		pushConfigs:  make(map[string]core.PushNotificationConfig),
		cancels:      make(map[string]context.CancelFunc),
		subBuffer:    opts.SubscriberBuffer,
		retainFor:    opts.RetainFor,
		sweepEvery:   opts.SweepInterval,
		baseCtx:      ctx,
		cancel:       cancel,
	}

	if m.retainFor > 0 {
		m.wg.Add(1)
		go m.janitor()
	}
	return m
}

// Register makes a capability available for delegation under its name.
// Registering the same name twice replaces the previous capability.
func (m *Manager) Register(capability core.Capability) {
	m.capMu.Lock()
	defer m.capMu.Unlock()
	m.capabilities[capability.Name()] = capability
}

func (m *Manager) capability(name string) (core.Capability, error) {
	m.capMu.RLock()
	defer m.capMu.RUnlock()
	capability, ok := m.capabilities[name]
	if !ok {
		return nil, fmt.Errorf("capability %q: %w", name, core.ErrCapabilityNotFound)
	}
	return capability, nil
}

// Send creates a task in SUBMITTED state, persists it and schedules
// processing on a worker actor. It returns the submitted snapshot
// immediately; observe progress via Get, Subscribe or push notifications.
func (m *Manager) Send(ctx context.Context, params SendParams) (*core.Task, error) {
	return m.send(ctx, params, nil)
}

// SendSubscribe is Send plus a subscription opened before processing starts,
// so the returned channel observes the task's complete event sequence. The
// channel is closed by the terminal event.
func (m *Manager) SendSubscribe(ctx context.Context, params SendParams) (*core.Task, <-chan core.TaskEvent, error) {
	events := make(chan core.TaskEvent, m.subBuffer)
	task, err := m.send(ctx, params, events)
	if err != nil {
		return nil, nil, err
	}
	return task, events, nil
}

func (m *Manager) send(ctx context.Context, params SendParams, events chan core.TaskEvent) (*core.Task, error) {
	capability, err := m.capability(params.Capability)
	if err != nil {
		return nil, err
	}

	task := core.NewTask(params.TaskID, params.SessionID, params.Message)
	for k, v := range params.Metadata {
		task.Metadata[k] = v
	}

	if err := m.createTask(ctx, task); err != nil {
		return nil, err
	}

	taskCtx, cancelTask := context.WithCancel(m.baseCtx)

	m.mu.Lock()
	m.cancels[task.ID] = cancelTask
	if params.PushConfig != nil {
		m.pushConfigs[task.ID] = *params.PushConfig
	}
	if events != nil {
		m.subscribers[task.ID] = map[int]chan core.TaskEvent{m.nextSubID: events}
		m.nextSubID++
	}
	m.mu.Unlock()

	if err := m.scheduleWorker(task.ID, capability, taskCtx); err != nil {
		cancelTask()
		return nil, err
	}

	m.logger.Info("task submitted task_id=%s capability=%s session_id=%s", task.ID, params.Capability, task.SessionID)
	return task.Clone(), nil
}

// createTask persists a new task under its lock so two concurrent sends with
// the same client-supplied id cannot both pass the existence check.
func (m *Manager) createTask(ctx context.Context, task *core.Task) error {
	lock := m.lockFor(task.ID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := m.store.Get(ctx, task.ID); err == nil {
		return fmt.Errorf("task %q already exists", task.ID)
	}
	if err := m.store.Save(ctx, task); err != nil {
		return fmt.Errorf("persist task: %w", err)
	}
	return nil
}

// scheduleWorker spawns a single-use actor whose only message triggers the
// task's processing. Worker failures are recorded on the task itself, so the
// supervision strategy just stops the worker.
func (m *Manager) scheduleWorker(taskID string, capability core.Capability, taskCtx context.Context) error {
	pid, err := m.system.Spawn(func() actor.Behavior {
		return actor.Func(func(actx *actor.Context, _ any) error {
			m.process(taskCtx, taskID, capability)
			return actx.System().Stop(actx.Self())
		})
	}, func(o *actor.SpawnOptions) {
		o.Strategy = actor.OneForOne(0, time.Minute, actor.AlwaysStop)
	})
	if err != nil {
		return fmt.Errorf("spawn task worker: %w", err)
	}
	if err := m.system.Send(pid, struct{}{}); err != nil {
		return fmt.Errorf("schedule task worker: %w", err)
	}
	return nil
}

// process drives one task from SUBMITTED to a terminal state. Runs on the
// task's worker actor.
func (m *Manager) process(ctx context.Context, taskID string, capability core.Capability) {
	task, err := m.transition(taskID, core.TaskStateProcessing, nil)
	if err != nil {
		// Cancelled before the worker got scheduled. Nothing to do.
		if errors.Is(err, core.ErrTaskTerminal) {
			return
		}
		m.logger.Error("task start failed task_id=%s err=%v", taskID, err)
		return
	}

	prompt := task.Prompt()
	if prompt == "" {
		m.fail(taskID, errors.New("task has no textual input"))
		return
	}

	result, err := capability.Invoke(ctx, core.CapabilityRequest{
		TaskID:    taskID,
		SessionID: task.SessionID,
		Prompt:    prompt,
		Params:    task.Metadata,
	})
	if err != nil {
		// A cancel may have won the race while the capability was in
		// flight; the terminal write that got there first stands.
		if ctx.Err() != nil {
			m.logger.Debug("capability aborted by cancellation task_id=%s", taskID)
			return
		}
		m.fail(taskID, &core.CapabilityError{Capability: capability.Name(), Err: err})
		return
	}

	m.complete(taskID, capability.Name(), result)
}

// complete records a successful capability result: result artifact, assistant
// message, then the COMPLETED transition, each with its event.
func (m *Manager) complete(taskID, capabilityName string, result *core.CapabilityResult) {
	lock := m.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, err := m.store.Get(context.Background(), taskID)
	if err != nil {
		m.logger.Error("task completion lost task_id=%s err=%v", taskID, err)
		return
	}
	if task.Status.State.Terminal() {
		return
	}

	now := time.Now().UTC()

	parts := []core.Part{core.TextPart{Text: result.Text}}
	if len(result.Data) > 0 {
		parts = append(parts, core.DataPart{Data: result.Data})
	}
	artifact := core.NewArtifact(capabilityName+"-result", parts...)
	task.Artifacts = append(task.Artifacts, artifact)

	message := core.NewAssistantMessage(result.Text)
	task.History = append(task.History, message)

	task.Status.State = core.TaskStateCompleted
	task.Status.Progress = 1
	task.Status.CompletedAt = &now
	task.UpdatedAt = now

	if err := m.store.Save(context.Background(), task); err != nil {
		m.logger.Error("task completion not persisted task_id=%s err=%v", taskID, err)
		return
	}

	m.publish(core.NewArtifactAddedEvent(taskID, artifact))
	m.publish(core.NewMessageAddedEvent(taskID, message))
	m.publish(core.NewTaskCompletedEvent(taskID))
	m.finishTask(taskID)
	m.logger.Info("task completed task_id=%s", taskID)
}

// fail moves the task to FAILED unless a terminal write beat it.
func (m *Manager) fail(taskID string, cause error) {
	if _, err := m.transition(taskID, core.TaskStateFailed, cause); err != nil {
		if !errors.Is(err, core.ErrTaskTerminal) {
			m.logger.Error("task failure not recorded task_id=%s err=%v", taskID, err)
		}
		return
	}
	m.logger.Warn("task failed task_id=%s err=%v", taskID, cause)
}

// Cancel moves a non-terminal task to CANCELLED, signals the in-flight
// capability invocation through its context and emits the terminal event.
// Cancelling a task that is already terminal is an idempotent no-op: the
// current snapshot is returned without error and no duplicate event fires.
func (m *Manager) Cancel(ctx context.Context, taskID string) (*core.Task, error) {
	lock := m.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, err := m.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status.State.Terminal() {
		return task, nil
	}

	from := task.Status.State
	now := time.Now().UTC()
	task.Status.State = core.TaskStateCancelled
	task.Status.CompletedAt = &now
	task.UpdatedAt = now

	if err := m.store.Save(ctx, task); err != nil {
		return nil, fmt.Errorf("persist cancellation: %w", err)
	}

	m.mu.Lock()
	cancelTask := m.cancels[taskID]
	m.mu.Unlock()
	if cancelTask != nil {
		cancelTask()
	}

	m.publish(core.NewTaskCancelledEvent(taskID))
	m.finishTask(taskID)
	m.logger.Info("task cancelled task_id=%s from=%s", taskID, from)
	return task.Clone(), nil
}

// Get returns the task's current snapshot.
func (m *Manager) Get(ctx context.Context, taskID string) (*core.Task, error) {
	return m.store.Get(ctx, taskID)
}

// Status returns the task's current status.
func (m *Manager) Status(ctx context.Context, taskID string) (core.TaskStatus, error) {
	task, err := m.store.Get(ctx, taskID)
	if err != nil {
		return core.TaskStatus{}, err
	}
	return task.Status, nil
}

// List returns tasks filtered by session id; empty lists everything.
func (m *Manager) List(ctx context.Context, sessionID string) ([]*core.Task, error) {
	return m.store.List(ctx, sessionID)
}

// AddMessage appends a message to a non-terminal task's history and emits a
// MessageAdded event.
func (m *Manager) AddMessage(ctx context.Context, taskID string, message core.Message) error {
	lock := m.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, err := m.store.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status.State.Terminal() {
		return fmt.Errorf("add message to task %q: %w", taskID, core.ErrTaskTerminal)
	}

	task.History = append(task.History, message)
	task.UpdatedAt = time.Now().UTC()
	if err := m.store.Save(ctx, task); err != nil {
		return fmt.Errorf("persist message: %w", err)
	}
	m.publish(core.NewMessageAddedEvent(taskID, message))
	return nil
}

// AddArtifact appends an artifact to a non-terminal task and emits an
// ArtifactAdded event.
func (m *Manager) AddArtifact(ctx context.Context, taskID string, artifact core.Artifact) error {
	lock := m.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, err := m.store.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status.State.Terminal() {
		return fmt.Errorf("add artifact to task %q: %w", taskID, core.ErrTaskTerminal)
	}

	task.Artifacts = append(task.Artifacts, artifact)
	task.UpdatedAt = time.Now().UTC()
	if err := m.store.Save(ctx, task); err != nil {
		return fmt.Errorf("persist artifact: %w", err)
	}
	m.publish(core.NewArtifactAddedEvent(taskID, artifact))
	return nil
}

// SetProgress updates a PROCESSING task's progress. Progress is clamped to
// [0,1] and monotonic: a value below the current one is ignored.
func (m *Manager) SetProgress(ctx context.Context, taskID string, progress float64) error {
	lock := m.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, err := m.store.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status.State.Terminal() {
		return fmt.Errorf("set progress on task %q: %w", taskID, core.ErrTaskTerminal)
	}

	if progress > 1 {
		progress = 1
	}
	if progress <= task.Status.Progress {
		return nil
	}
	task.Status.Progress = progress
	task.UpdatedAt = time.Now().UTC()
	if err := m.store.Save(ctx, task); err != nil {
		return fmt.Errorf("persist progress: %w", err)
	}
	return nil
}

// Subscribe returns an ordered channel of the task's future events together
// with an unsubscribe function. The channel is closed by the task's terminal
// event; subscribing to a task already in a terminal state yields a channel
// that is closed immediately.
func (m *Manager) Subscribe(ctx context.Context, taskID string) (<-chan core.TaskEvent, func(), error) {
	// The state check and the registration happen under the task's lock, the
	// same exclusion terminal publishes run under. Otherwise a terminal event
	// could fan out between the two and strand the new channel forever.
	lock := m.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, err := m.store.Get(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	events := make(chan core.TaskEvent, m.subBuffer)
	if task.Status.State.Terminal() {
		close(events)
		return events, func() {}, nil
	}

	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	subs, ok := m.subscribers[taskID]
	if !ok {
		subs = make(map[int]chan core.TaskEvent)
		m.subscribers[taskID] = subs
	}
	subs[id] = events
	m.mu.Unlock()

	unsubscribe := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if subs, ok := m.subscribers[taskID]; ok {
			if ch, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
		}
	}
	return events, unsubscribe, nil
}

// SetPushNotification associates (or replaces) the task's webhook config.
// Replacing a config does not redeliver past events.
func (m *Manager) SetPushNotification(ctx context.Context, taskID string, cfg core.PushNotificationConfig) error {
	if _, err := m.store.Get(ctx, taskID); err != nil {
		return err
	}
	m.mu.Lock()
	m.pushConfigs[taskID] = cfg
	m.mu.Unlock()
	return nil
}

// GetPushNotification returns the task's webhook config, if any.
func (m *Manager) GetPushNotification(ctx context.Context, taskID string) (core.PushNotificationConfig, bool, error) {
	if _, err := m.store.Get(ctx, taskID); err != nil {
		return core.PushNotificationConfig{}, false, err
	}
	m.mu.Lock()
	cfg, ok := m.pushConfigs[taskID]
	m.mu.Unlock()
	return cfg, ok, nil
}

// Close stops the janitor and outstanding push deliveries. Tasks already in
// flight keep their workers; the borrowed actor system is left running.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

// transition applies a state-machine edge under the task's lock, stamping
// StartedAt / CompletedAt / Error as the target state requires, persists and
// publishes the matching event. Returns the updated snapshot.
func (m *Manager) transition(taskID string, to core.TaskState, cause error) (*core.Task, error) {
	lock := m.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, err := m.store.Get(context.Background(), taskID)
	if err != nil {
		return nil, err
	}

	from := task.Status.State
	if from.Terminal() {
		return nil, fmt.Errorf("transition task %q %s -> %s: %w", taskID, from, to, core.ErrTaskTerminal)
	}
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("transition task %q %s -> %s: %w", taskID, from, to, core.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	task.Status.State = to
	task.UpdatedAt = now

	switch to {
	case core.TaskStateProcessing:
		task.Status.StartedAt = &now
	case core.TaskStateFailed:
		task.Status.CompletedAt = &now
		if cause != nil {
			task.Status.Error = cause.Error()
		}
	case core.TaskStateCompleted, core.TaskStateCancelled:
		task.Status.CompletedAt = &now
	}

	if err := m.store.Save(context.Background(), task); err != nil {
		return nil, fmt.Errorf("persist transition: %w", err)
	}

	switch to {
	case core.TaskStateProcessing:
		m.publish(core.NewTaskStartedEvent(taskID))
	case core.TaskStateFailed:
		errText := ""
		if cause != nil {
			errText = cause.Error()
		}
		m.publish(core.NewTaskFailedEvent(taskID, errText))
		m.finishTask(taskID)
	case core.TaskStateCancelled:
		m.publish(core.NewTaskCancelledEvent(taskID))
		m.finishTask(taskID)
	case core.TaskStateCompleted:
		m.publish(core.NewTaskCompletedEvent(taskID))
		m.finishTask(taskID)
	}

	m.logger.Debug("task transition task_id=%s from=%s to=%s", taskID, from, to)
	return task.Clone(), nil
}

// publish fans one event out to the task's subscribers in order and hands it
// to push delivery. Callers hold the task's lock, which is what makes the
// per-subscriber event order match the state order. Slow subscribers lose
// events rather than stall the task (logged).
func (m *Manager) publish(event core.TaskEvent) {
	m.mu.Lock()
	// Sends stay under the mutex so an unsubscribe cannot close a channel
	// mid-delivery. They are non-blocking, so the critical section is short.
	for _, ch := range m.subscribers[event.TaskID()] {
		select {
		case ch <- event:
		default:
			m.logger.Warn("subscriber lagging, event dropped task_id=%s type=%s", event.TaskID(), event.Type())
		}
		if event.Terminal() {
			close(ch)
		}
	}
	// The Add happens under the mutex that Close sets closed under, so no
	// delivery goroutine can be added once Close has started waiting.
	cfg, hasPush := m.pushConfigs[event.TaskID()]
	dispatch := hasPush && cfg.Matches(event.Type()) && !m.closed
	if dispatch {
		m.wg.Add(1)
	}
	if event.Terminal() {
		delete(m.subscribers, event.TaskID())
	}
	m.mu.Unlock()

	if dispatch {
		go func() {
			defer m.wg.Done()
			// Fire and forget; the dispatcher logs failures, nothing retries.
			_ = m.dispatcher.Dispatch(m.baseCtx, cfg, event)
		}()
	}
}

// finishTask releases the task's cancellation context after a terminal write.
func (m *Manager) finishTask(taskID string) {
	m.mu.Lock()
	cancelTask := m.cancels[taskID]
	delete(m.cancels, taskID)
	m.mu.Unlock()
	if cancelTask != nil {
		cancelTask()
	}
}

func (m *Manager) lockFor(taskID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[taskID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[taskID] = lock
	}
	return lock
}

// janitor periodically removes terminal tasks older than the retention
// window, along with their bookkeeping.
func (m *Manager) janitor() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-m.baseCtx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	tasks, err := m.store.List(m.baseCtx, "")
	if err != nil {
		m.logger.Warn("janitor list failed err=%v", err)
		return
	}
	cutoff := time.Now().UTC().Add(-m.retainFor)
	for _, task := range tasks {
		if !task.Status.State.Terminal() || task.Status.CompletedAt == nil || task.Status.CompletedAt.After(cutoff) {
			continue
		}
		if err := m.store.Delete(m.baseCtx, task.ID); err != nil {
			m.logger.Warn("janitor delete failed task_id=%s err=%v", task.ID, err)
			continue
		}
		m.mu.Lock()
		delete(m.locks, task.ID)
		delete(m.pushConfigs, task.ID)
		delete(m.cancels, task.ID)
		m.mu.Unlock()
		m.logger.Debug("expired task removed task_id=%s", task.ID)
	}
}
