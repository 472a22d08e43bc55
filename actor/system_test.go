package actor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSystem(t *testing.T) *System {
	t.Helper()
	s := NewSystem("test")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func TestSpawnReturnsUsablePID(t *testing.T) {
	s := newTestSystem(t)

	pid, err := s.Spawn(func() Behavior {
		return Func(func(*Context, any) error { return nil })
	})
	require.NoError(t, err)
	assert.Equal(t, "test", pid.System)
	assert.NotEmpty(t, pid.ID)
	assert.True(t, s.Alive(pid))
}

func TestSendPreservesFIFOOrder(t *testing.T) {
	s := newTestSystem(t)

	got := make(chan int, 100)
	pid, err := s.Spawn(func() Behavior {
		return Func(func(_ *Context, message any) error {
			got <- message.(int)
			return nil
		})
	})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, s.Send(pid, i))
	}
	for i := 0; i < 100; i++ {
		select {
		case v := <-got:
			assert.Equal(t, i, v)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestSendToUnknownPIDFailsLoudly(t *testing.T) {
	s := newTestSystem(t)

	err := s.Send(PID{System: "test", ID: "nope"}, "hello")
	assert.ErrorIs(t, err, ErrActorNotFound)
}

func TestSendToStoppedPIDFailsLoudly(t *testing.T) {
	s := newTestSystem(t)

	pid, err := s.Spawn(func() Behavior {
		return Func(func(*Context, any) error { return nil })
	})
	require.NoError(t, err)

	require.NoError(t, s.Stop(pid))
	require.Eventually(t, func() bool { return !s.Alive(pid) }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.Send(pid, "hello"), ErrActorNotFound)
}

func TestRequestReply(t *testing.T) {
	s := newTestSystem(t)

	pid, err := s.Spawn(func() Behavior {
		return Func(func(ctx *Context, message any) error {
			ctx.Reply(message.(int) * 2)
			return nil
		})
	})
	require.NoError(t, err)

	resp, err := s.Request(context.Background(), pid, 21, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 42, resp)
}

func TestRequestTimeout(t *testing.T) {
	s := newTestSystem(t)

	pid, err := s.Spawn(func() Behavior {
		return Func(func(*Context, any) error { return nil }) // never replies
	})
	require.NoError(t, err)

	_, err = s.Request(context.Background(), pid, "ping", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestLateReplyIsDiscarded(t *testing.T) {
	s := newTestSystem(t)

	gate := make(chan struct{})
	pid, err := s.Spawn(func() Behavior {
		return Func(func(ctx *Context, message any) error {
			if message == "slow" {
				<-gate
				ctx.Reply("late")
				return nil
			}
			ctx.Reply(message)
			return nil
		})
	})
	require.NoError(t, err)

	_, err = s.Request(context.Background(), pid, "slow", 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	close(gate)

	// The late reply must not leak into the next ask.
	resp, err := s.Request(context.Background(), pid, "fresh", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "fresh", resp)
}

type countingBehavior struct {
	seen    int
	started chan struct{}
	values  chan int
}

func (b *countingBehavior) PreStart(*Context) error {
	select {
	case b.started <- struct{}{}:
	default:
	}
	return nil
}

func (b *countingBehavior) Receive(_ *Context, message any) error {
	if message == "boom" {
		return errors.New("boom")
	}
	b.seen++
	b.values <- b.seen
	return nil
}

func TestRestartResetsStateButKeepsPIDAndMailbox(t *testing.T) {
	s := newTestSystem(t)

	started := make(chan struct{}, 10)
	values := make(chan int, 10)
	pid, err := s.Spawn(func() Behavior {
		return &countingBehavior{started: started, values: values}
	}, func(o *SpawnOptions) {
		o.Strategy = OneForOne(10, time.Minute, AlwaysRestart)
	})
	require.NoError(t, err)
	<-started

	require.NoError(t, s.Send(pid, "count"))
	assert.Equal(t, 1, <-values)

	// The failure restarts the behavior; the message behind it in the
	// mailbox must still be delivered, to a fresh state, on the same PID.
	require.NoError(t, s.Send(pid, "boom"))
	require.NoError(t, s.Send(pid, "count"))

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("behavior was not restarted")
	}
	assert.Equal(t, 1, <-values)
	assert.True(t, s.Alive(pid))
}

func TestResumeKeepsState(t *testing.T) {
	s := newTestSystem(t)

	started := make(chan struct{}, 10)
	values := make(chan int, 10)
	pid, err := s.Spawn(func() Behavior {
		return &countingBehavior{started: started, values: values}
	}, func(o *SpawnOptions) {
		o.Strategy = OneForOne(10, time.Minute, AlwaysResume)
	})
	require.NoError(t, err)

	require.NoError(t, s.Send(pid, "count"))
	require.NoError(t, s.Send(pid, "boom"))
	require.NoError(t, s.Send(pid, "count"))

	assert.Equal(t, 1, <-values)
	assert.Equal(t, 2, <-values)
}

func TestRetryBudgetEscalatesInsteadOfRestarting(t *testing.T) {
	s := newTestSystem(t)

	pid, err := s.Spawn(func() Behavior {
		return Func(func(*Context, any) error { return errors.New("boom") })
	}, func(o *SpawnOptions) {
		o.Strategy = OneForOne(2, time.Minute, AlwaysRestart)
	})
	require.NoError(t, err)

	// First two failures restart; the third blows the budget and the root
	// actor is stopped rather than restarted again.
	for i := 0; i < 3; i++ {
		if err := s.Send(pid, "msg"); err != nil {
			break
		}
	}

	require.Eventually(t, func() bool { return !s.Alive(pid) }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.Send(pid, "msg"), ErrActorNotFound)
}

func TestPanicIsRoutedToSupervision(t *testing.T) {
	s := newTestSystem(t)

	pid, err := s.Spawn(func() Behavior {
		return Func(func(*Context, any) error { panic("kaboom") })
	}, func(o *SpawnOptions) {
		o.Strategy = OneForOne(10, time.Minute, AlwaysStop)
	})
	require.NoError(t, err)

	require.NoError(t, s.Send(pid, "msg"))
	require.Eventually(t, func() bool { return !s.Alive(pid) }, 2*time.Second, 5*time.Millisecond)
}

func TestStopNotifiesParentWithTerminated(t *testing.T) {
	s := newTestSystem(t)

	terminated := make(chan Terminated, 1)
	parent, err := s.Spawn(func() Behavior {
		return Func(func(_ *Context, message any) error {
			if term, ok := message.(Terminated); ok {
				terminated <- term
			}
			return nil
		})
	})
	require.NoError(t, err)

	child, err := s.Spawn(func() Behavior {
		return Func(func(*Context, any) error { return nil })
	}, func(o *SpawnOptions) { o.Parent = parent })
	require.NoError(t, err)

	require.NoError(t, s.Stop(child))

	select {
	case term := <-terminated:
		assert.Equal(t, child, term.PID)
	case <-time.After(2 * time.Second):
		t.Fatal("parent never received Terminated")
	}
}

func TestEscalationAppliesParentStrategy(t *testing.T) {
	s := newTestSystem(t)

	parent, err := s.Spawn(func() Behavior {
		return Func(func(*Context, any) error { return nil })
	}, func(o *SpawnOptions) {
		o.Strategy = OneForOne(10, time.Minute, AlwaysStop)
	})
	require.NoError(t, err)

	child, err := s.Spawn(func() Behavior {
		return Func(func(*Context, any) error { return errors.New("boom") })
	}, func(o *SpawnOptions) {
		o.Parent = parent
		o.Strategy = OneForOne(10, time.Minute, func(error) Directive { return DirectiveEscalate })
	})
	require.NoError(t, err)

	require.NoError(t, s.Send(child, "msg"))

	// Escalation stops the child and hands the failure to the parent, whose
	// own strategy says stop.
	require.Eventually(t, func() bool { return !s.Alive(child) }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !s.Alive(parent) }, 2*time.Second, 5*time.Millisecond)
}

func TestStopCascadesToChildren(t *testing.T) {
	s := newTestSystem(t)

	parent, err := s.Spawn(func() Behavior {
		return Func(func(*Context, any) error { return nil })
	})
	require.NoError(t, err)

	child, err := s.Spawn(func() Behavior {
		return Func(func(*Context, any) error { return nil })
	}, func(o *SpawnOptions) { o.Parent = parent })
	require.NoError(t, err)

	require.NoError(t, s.Stop(parent))

	require.Eventually(t, func() bool { return !s.Alive(parent) }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !s.Alive(child) }, 2*time.Second, 5*time.Millisecond)
}

func TestBoundedMailboxRejectsOverflow(t *testing.T) {
	s := newTestSystem(t)

	processing := make(chan struct{}, 1)
	gate := make(chan struct{})
	pid, err := s.Spawn(func() Behavior {
		return Func(func(*Context, any) error {
			processing <- struct{}{}
			<-gate
			return nil
		})
	}, func(o *SpawnOptions) { o.MailboxLimit = 1 })
	require.NoError(t, err)

	require.NoError(t, s.Send(pid, "first"))
	<-processing // first message is in flight, queue empty

	require.NoError(t, s.Send(pid, "second"))
	assert.ErrorIs(t, s.Send(pid, "third"), ErrMailboxFull)
	close(gate)
}

func TestContextSpawnCreatesSupervisedChild(t *testing.T) {
	s := newTestSystem(t)

	childPID := make(chan PID, 1)
	parent, err := s.Spawn(func() Behavior {
		return Func(func(ctx *Context, message any) error {
			if message == "spawn" {
				pid, err := ctx.Spawn(func() Behavior {
					return Func(func(cctx *Context, m any) error {
						assert.Equal(t, cctx.Parent(), ctx.Self())
						return nil
					})
				})
				if err != nil {
					return err
				}
				childPID <- pid
			}
			return nil
		})
	})
	require.NoError(t, err)

	require.NoError(t, s.Send(parent, "spawn"))
	child := <-childPID
	require.NoError(t, s.Send(child, "hello"))
	assert.True(t, s.Alive(child))
}

func TestShutdownStopsEverything(t *testing.T) {
	s := NewSystem("shutdown-test")

	pids := make([]PID, 0, 5)
	for i := 0; i < 5; i++ {
		pid, err := s.Spawn(func() Behavior {
			return Func(func(*Context, any) error { return nil })
		})
		require.NoError(t, err)
		pids = append(pids, pid)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	for _, pid := range pids {
		assert.False(t, s.Alive(pid))
	}
	_, err := s.Spawn(func() Behavior {
		return Func(func(*Context, any) error { return nil })
	})
	assert.ErrorIs(t, err, ErrSystemClosed)
}

func TestRemoteSendWithoutTransport(t *testing.T) {
	s := newTestSystem(t)

	remote := PID{System: "test", Host: "other:8080", ID: "abc"}
	assert.ErrorIs(t, s.Send(remote, "hello"), ErrNoTransport)

	_, err := s.Request(context.Background(), remote, "hello", time.Second)
	assert.ErrorIs(t, err, ErrNoTransport)
}
