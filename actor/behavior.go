package actor

import "context"

// Behavior is the user-supplied message handler of an actor. Receive is
// invoked for exactly one message at a time with respect to the actor's own
// state, so implementations need no internal locking for actor-local fields.
//
// A non-nil error (or a panic, which the runtime recovers into an error) is
// treated as an actor-level fault and routed to the supervision strategy the
// parent attached at spawn time.
type Behavior interface {
	Receive(ctx *Context, message any) error
}

// PreStarter is an optional hook invoked once before the actor processes any
// message, and again after every Restart directive (on the freshly rebuilt
// behavior). A returned error stops the actor.
type PreStarter interface {
	PreStart(ctx *Context) error
}

// PostStopper is an optional hook invoked once when the actor terminates,
// after its final message.
type PostStopper interface {
	PostStop(ctx *Context)
}

// Factory produces a fresh Behavior instance. The runtime calls it at spawn
// and on every Restart, which is how a restart discards actor state while
// keeping the PID and mailbox.
type Factory func() Behavior

// Func adapts a plain function to the Behavior interface for simple,
// stateless actors.
type Func func(ctx *Context, message any) error

// Receive implements Behavior by calling the function itself.
func (f Func) Receive(ctx *Context, message any) error { return f(ctx, message) }

// Terminated is delivered to a parent actor when one of its children stops,
// whether by a Stop directive, an explicit System.Stop or an escalation that
// ran out of supervisors.
type Terminated struct {
	PID    PID
	Reason error
}

// Context carries per-delivery execution scope into Behavior.Receive. It
// exposes the actor's own address, spawn/send helpers bound to the owning
// system, and the reply primitive for the ask pattern.
type Context struct {
	system  *System
	self    PID
	parent  PID
	replyTo chan any
	ctx     context.Context
}

// Self returns the receiving actor's address.
func (c *Context) Self() PID { return c.self }

// Parent returns the supervising actor's address (zero for root actors).
func (c *Context) Parent() PID { return c.parent }

// System returns the owning actor system.
func (c *Context) System() *System { return c.system }

// Context returns the system's base context, cancelled on Shutdown. Long
// running work inside Receive should observe it.
func (c *Context) Context() context.Context { return c.ctx }

// Spawn creates a child actor supervised by the receiving actor.
func (c *Context) Spawn(factory Factory, optFns ...func(o *SpawnOptions)) (PID, error) {
	optFns = append(optFns, func(o *SpawnOptions) { o.Parent = c.self })
	return c.system.Spawn(factory, optFns...)
}

// Send enqueues a fire-and-forget message to the target actor.
func (c *Context) Send(pid PID, message any) error {
	return c.system.Send(pid, message)
}

// Reply answers the current message's ask. It is a no-op for messages that
// were not sent via Request. Only the first reply per request is delivered;
// extra replies are discarded.
func (c *Context) Reply(message any) {
	if c.replyTo == nil {
		return
	}
	select {
	case c.replyTo <- message:
	default:
		// Requester already timed out or a reply was already sent.
	}
}
