package actor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/actormesh/logging"
)

// Options configures a System instance using the functional options pattern.
type Options struct {
	// Host is the externally reachable address of this process. Empty for
	// purely local systems; PIDs minted by this system carry no host and
	// remote routing is disabled for them.
	Host string

	// Transport serializes and transmits messages addressed to PIDs hosted
	// in other processes. Nil disables remote sends (ErrNoTransport).
	Transport Transport

	// MailboxLimit bounds every spawned actor's mailbox unless overridden
	// per spawn. Zero means unbounded.
	MailboxLimit int

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// SpawnOptions configures a single Spawn call.
type SpawnOptions struct {
	// Parent registers the new actor under the given supervisor. Zero PID
	// spawns a root actor (escalations from roots stop the actor).
	Parent PID

	// Strategy is the supervision policy the parent applies to this child.
	// Defaults to DefaultStrategy.
	Strategy Strategy

	// MailboxLimit overrides the system-wide mailbox bound for this actor.
	// Negative forces unbounded; zero inherits the system setting.
	MailboxLimit int
}

// System is the process-wide actor registry and scheduler. It creates actors,
// assigns them mailboxes, routes messages by PID and drives supervision.
// Multiple independent systems may coexist in one process (there is no hidden
// singleton); create one at startup and tear it down with Shutdown.
//
// The registry is guarded by an RWMutex: lookups on the send path take only a
// read lock so concurrent delivery never blocks behind spawns.
type System struct {
	name      string
	host      string
	transport Transport
	mboxLimit int
	logger    logging.Logger

	cells map[string]*cell
	mu    sync.RWMutex

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

// NewSystem creates an actor system with the given name. The name is part of
// every PID the system mints and distinguishes systems in multi-system
// processes (e.g. tests).
func NewSystem(name string, optFns ...func(o *Options)) *System {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &System{
		name:      name,
		host:      opts.Host,
		transport: opts.Transport,
		mboxLimit: opts.MailboxLimit,
		logger:    opts.Logger,
		cells:     make(map[string]*cell),
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Name returns the system name.
func (s *System) Name() string { return s.name }

// Spawn creates a new actor with a fresh mailbox and returns its PID. It
// never blocks: the PID is valid immediately, even before the actor's first
// message is processed. If opts.Parent is set the actor is registered under
// that parent's supervision with the given strategy.
func (s *System) Spawn(factory Factory, optFns ...func(o *SpawnOptions)) (PID, error) {
	opts := SpawnOptions{Strategy: DefaultStrategy}
	for _, fn := range optFns {
		fn(&opts)
	}

	limit := s.mboxLimit
	if opts.MailboxLimit > 0 {
		limit = opts.MailboxLimit
	} else if opts.MailboxLimit < 0 {
		limit = 0
	}

	pid := PID{System: s.name, Host: s.host, ID: uuid.NewString()}
	c := &cell{
		pid:      pid,
		parent:   opts.Parent,
		factory:  factory,
		behavior: factory(),
		mailbox:  newMailbox(limit),
		strategy: opts.Strategy,
		system:   s,
		children: make(map[string]PID),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return PID{}, ErrSystemClosed
	}
	if !opts.Parent.Zero() {
		parent, ok := s.cells[opts.Parent.ID]
		if !ok {
			s.mu.Unlock()
			return PID{}, fmt.Errorf("spawn under %s: %w", opts.Parent, ErrActorNotFound)
		}
		parent.addChild(pid)
	}
	s.cells[pid.ID] = c
	s.wg.Add(1)
	s.mu.Unlock()

	go c.run()

	s.logger.Debug("actor spawned pid=%s parent=%s", pid, opts.Parent)
	return pid, nil
}

// Send enqueues a fire-and-forget message onto the target's mailbox. There is
// no delivery guarantee beyond "eventually processed if the actor stays
// alive". Sending to an unknown or stopped PID fails loudly with
// ErrActorNotFound; there is no silent dead-letter drop, since the task
// layer on top assumes reliable local delivery.
func (s *System) Send(pid PID, message any) error {
	if s.isRemote(pid) {
		if s.transport == nil {
			return ErrNoTransport
		}
		return s.transport.Send(s.baseCtx, pid, message)
	}
	c, err := s.lookup(pid)
	if err != nil {
		return err
	}
	return c.mailbox.enqueue(envelope{message: message})
}

// Request enqueues the message and suspends the caller until the target
// replies (via Context.Reply) or the timeout elapses with ErrTimeout. The
// timeout is hard: a late reply to a timed-out request is discarded.
func (s *System) Request(ctx context.Context, pid PID, message any, timeout time.Duration) (any, error) {
	if s.isRemote(pid) {
		if s.transport == nil {
			return nil, ErrNoTransport
		}
		return s.transport.Request(ctx, pid, message, timeout)
	}
	c, err := s.lookup(pid)
	if err != nil {
		return nil, err
	}

	// Buffered so a late Reply parks in the channel instead of leaking a
	// goroutine, then gets collected.
	replyTo := make(chan any, 1)
	if err := c.mailbox.enqueue(envelope{message: message, replyTo: replyTo}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-replyTo:
		return resp, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop requests termination of the actor. Remaining queued messages are
// discarded; the actor's children are stopped recursively and its parent is
// notified with a Terminated message. Stopping an unknown PID returns
// ErrActorNotFound.
func (s *System) Stop(pid PID) error {
	c, err := s.lookup(pid)
	if err != nil {
		return err
	}
	c.signalStop()
	return nil
}

// Alive reports whether the PID currently addresses a registered actor.
func (s *System) Alive(pid PID) bool {
	_, err := s.lookup(pid)
	return err == nil
}

// Shutdown stops all actors and waits for their loops to finish or ctx to
// expire. The system is unusable afterwards.
func (s *System) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *System) isRemote(pid PID) bool {
	return pid.Host != "" && pid.Host != s.host
}

func (s *System) lookup(pid PID) (*cell, error) {
	if pid.System != s.name {
		return nil, fmt.Errorf("pid %s: %w", pid, ErrActorNotFound)
	}
	s.mu.RLock()
	c, ok := s.cells[pid.ID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("pid %s: %w", pid, ErrActorNotFound)
	}
	return c, nil
}

func (s *System) unregister(pid PID) {
	s.mu.Lock()
	delete(s.cells, pid.ID)
	s.mu.Unlock()
}

// childEscalation is the internal control message delivering a child's
// failure to its parent. The parent's loop treats it as the parent's own
// failure, consulting the parent's strategy.
type childEscalation struct {
	child PID
	err   error
}

// cell is the runtime state of one actor: behavior, mailbox, supervision
// bookkeeping and the processing goroutine's coordination channels.
type cell struct {
	pid      PID
	parent   PID
	factory  Factory
	behavior Behavior
	mailbox  *mailbox
	strategy Strategy
	system   *System

	childrenMu sync.Mutex
	children   map[string]PID

	failures []time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	termOnce sync.Once
}

func (c *cell) addChild(pid PID) {
	c.childrenMu.Lock()
	c.children[pid.ID] = pid
	c.childrenMu.Unlock()
}

func (c *cell) removeChild(pid PID) {
	c.childrenMu.Lock()
	delete(c.children, pid.ID)
	c.childrenMu.Unlock()
}

func (c *cell) childSnapshot() []PID {
	c.childrenMu.Lock()
	defer c.childrenMu.Unlock()
	pids := make([]PID, 0, len(c.children))
	for _, pid := range c.children {
		pids = append(pids, pid)
	}
	return pids
}

func (c *cell) signalStop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// run is the actor's message loop: pull exactly one message, execute the
// behavior synchronously with respect to this actor's state, loop. Runs on a
// dedicated goroutine per actor; many actors progress in parallel while each
// one stays logically single-threaded.
func (c *cell) run() {
	defer c.system.wg.Done()

	if err := c.preStart(); err != nil {
		c.system.logger.Warn("actor prestart failed pid=%s err=%v", c.pid, err)
		c.terminate(err)
		return
	}

	for {
		env, ok := c.mailbox.dequeue()
		if !ok {
			select {
			case <-c.mailbox.notify:
				continue
			case <-c.stopCh:
				c.terminate(nil)
				return
			case <-c.system.baseCtx.Done():
				c.terminate(c.system.baseCtx.Err())
				return
			}
		}

		select {
		case <-c.stopCh:
			c.terminate(nil)
			return
		default:
		}

		if !c.process(env) {
			return
		}
	}
}

// process handles one delivery. Returns false when the actor terminated as a
// result of the message.
func (c *cell) process(env envelope) bool {
	if esc, ok := env.message.(childEscalation); ok {
		c.system.logger.Warn("failure escalated pid=%s child=%s err=%v", c.pid, esc.child, esc.err)
		return c.handleFailure(esc.err)
	}

	rctx := &Context{system: c.system, self: c.pid, parent: c.parent, replyTo: env.replyTo, ctx: c.system.baseCtx}
	if err := c.invoke(rctx, env.message); err != nil {
		return c.handleFailure(err)
	}
	return true
}

// invoke runs the behavior, converting panics into actor-level faults so the
// supervision strategy always gets to decide.
func (c *cell) invoke(rctx *Context, message any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("actor panic: %v", r)
		}
	}()
	return c.behavior.Receive(rctx, message)
}

// handleFailure applies the supervision strategy to a processing error.
// Returns false when the actor terminated.
func (c *cell) handleFailure(err error) bool {
	c.failures = pruneFailures(c.failures, c.strategy.Within)
	c.failures = append(c.failures, time.Now())

	directive := c.strategy.decide(err, c.failures)
	c.system.logger.Warn("actor failure pid=%s directive=%s err=%v", c.pid, directive, err)

	switch directive {
	case DirectiveResume:
		return true

	case DirectiveRestart:
		c.behavior = c.factory()
		if perr := c.preStart(); perr != nil {
			c.terminate(perr)
			return false
		}
		return true

	case DirectiveStop:
		c.terminate(err)
		return false

	case DirectiveEscalate:
		if !c.parent.Zero() {
			if serr := c.system.Send(c.parent, childEscalation{child: c.pid, err: err}); serr != nil {
				c.system.logger.Warn("escalation delivery failed pid=%s err=%v", c.pid, serr)
			}
		}
		c.terminate(err)
		return false

	default:
		c.terminate(err)
		return false
	}
}

func (c *cell) preStart() error {
	if ps, ok := c.behavior.(PreStarter); ok {
		rctx := &Context{system: c.system, self: c.pid, parent: c.parent, ctx: c.system.baseCtx}
		return ps.PreStart(rctx)
	}
	return nil
}

// terminate tears the actor down exactly once: unregister (invalidating the
// PID), close the mailbox, stop children, run PostStop, notify the parent.
func (c *cell) terminate(reason error) {
	c.termOnce.Do(func() {
		c.signalStop()
		c.system.unregister(c.pid)
		c.mailbox.close()

		for _, child := range c.childSnapshot() {
			if err := c.system.Stop(child); err == nil {
				c.system.logger.Debug("child stopped with parent pid=%s child=%s", c.pid, child)
			}
		}

		if ps, ok := c.behavior.(PostStopper); ok {
			rctx := &Context{system: c.system, self: c.pid, parent: c.parent, ctx: c.system.baseCtx}
			ps.PostStop(rctx)
		}

		if !c.parent.Zero() {
			if pc, err := c.system.lookup(c.parent); err == nil {
				pc.removeChild(c.pid)
			}
			_ = c.system.Send(c.parent, Terminated{PID: c.pid, Reason: reason})
		}

		c.system.logger.Debug("actor stopped pid=%s reason=%v", c.pid, reason)
		close(c.done)
	})
}
