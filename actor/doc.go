// Package actor implements the concurrency runtime ActorMesh is built on:
// isolated units of computation with private state and a mailbox,
// communicating only via asynchronous messages.
//
// The central type is System, a process-wide registry and scheduler. It
// creates actors (Spawn), routes messages by opaque address (Send / Request)
// and applies parent-defined supervision strategies (Resume / Restart / Stop
// / Escalate) when a child's message processing fails.
//
// Guarantees:
//   - Each actor processes exactly one message at a time; actor-local state
//     never sees concurrent mutation (single-threaded illusion per actor).
//   - Per-mailbox FIFO: messages from the system to one actor are processed
//     in arrival order.
//   - A Restart directive rebuilds actor state from its behavior factory but
//     preserves the actor's PID and any queued-but-unprocessed messages.
//
// Delivery is fire-and-forget and best-effort: Send to a live actor enqueues
// exactly once, Send to a stopped or unknown PID fails loudly with
// ErrActorNotFound. A PID may address an actor hosted in another process;
// such sends are serialized through a pluggable Transport with the same
// at-most-once semantics and no implicit retries.
package actor
