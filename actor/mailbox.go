package actor

import "sync"

// envelope wraps a user message with optional reply plumbing for the
// ask pattern. replyTo is nil for fire-and-forget sends.
type envelope struct {
	message any
	replyTo chan any
}

// mailbox is an ordered, concurrency-safe inbox owned by exactly one actor.
// Enqueue may be called from any goroutine; dequeue is only called from the
// owning actor's processing loop. Unbounded by default; a positive limit
// makes Enqueue fail with ErrMailboxFull instead of growing (backpressure is
// the caller's concern).
//
// The queue deliberately lives outside the processing loop so that a Restart
// directive can swap the behavior without losing queued messages.
type mailbox struct {
	mu     sync.Mutex
	queue  []envelope
	limit  int
	closed bool
	notify chan struct{}
}

func newMailbox(limit int) *mailbox {
	return &mailbox{limit: limit, notify: make(chan struct{}, 1)}
}

// enqueue appends env preserving FIFO order and wakes the processing loop.
func (m *mailbox) enqueue(env envelope) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrActorNotFound
	}
	if m.limit > 0 && len(m.queue) >= m.limit {
		m.mu.Unlock()
		return ErrMailboxFull
	}
	m.queue = append(m.queue, env)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// dequeue pops the oldest message if any. Non-blocking; the processing loop
// waits on the notify channel when the queue is empty.
func (m *mailbox) dequeue() (envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return envelope{}, false
	}
	env := m.queue[0]
	m.queue = m.queue[1:]
	return env, true
}

// close marks the mailbox closed; subsequent enqueues fail with
// ErrActorNotFound. Already queued messages are discarded.
func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.queue = nil
}
