package actor

import "errors"

var (
	// ErrActorNotFound is returned when sending to a PID that was never
	// spawned, belongs to another system, or has been invalidated by a stop.
	ErrActorNotFound = errors.New("actor not found")

	// ErrMailboxFull is returned by bounded mailboxes when enqueueing would
	// exceed the configured limit. Callers decide whether to retry or drop.
	ErrMailboxFull = errors.New("mailbox full")

	// ErrTimeout is returned by Request when no correlated reply arrives
	// within the deadline. A late reply to a timed-out request is discarded.
	ErrTimeout = errors.New("request timed out")

	// ErrSystemClosed is returned for operations on a system after Shutdown.
	ErrSystemClosed = errors.New("actor system closed")

	// ErrNoTransport is returned when sending to a remote PID on a system
	// configured without a Transport.
	ErrNoTransport = errors.New("no remote transport configured")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrActorNotFound)
}
