package actor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransportRoundTrip(t *testing.T) {
	var remote *System
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remote.Handler().ServeHTTP(w, r)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	remote = NewSystem("remote", func(o *Options) { o.Host = host })
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = remote.Shutdown(ctx)
	}()

	received := make(chan RemoteMessage, 1)
	pid, err := remote.Spawn(func() Behavior {
		return Func(func(ctx *Context, message any) error {
			msg := message.(RemoteMessage)
			received <- msg
			ctx.Reply(map[string]string{"echo": string(msg.Data)})
			return nil
		})
	})
	require.NoError(t, err)
	require.Equal(t, host, pid.Host)

	local := NewSystem("local", func(o *Options) { o.Transport = NewHTTPTransport("") })
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = local.Shutdown(ctx)
	}()

	require.NoError(t, local.Send(pid, map[string]string{"kind": "greeting"}))
	select {
	case msg := <-received:
		assert.Contains(t, string(msg.Data), "greeting")
	case <-time.After(2 * time.Second):
		t.Fatal("remote actor never received the message")
	}

	reply, err := local.Request(context.Background(), pid, map[string]string{"kind": "ask"}, 2*time.Second)
	require.NoError(t, err)
	raw, ok := reply.(json.RawMessage)
	require.True(t, ok)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded["echo"], "ask")
}

func TestHTTPTransportUnknownActor(t *testing.T) {
	var remote *System
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remote.Handler().ServeHTTP(w, r)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	remote = NewSystem("remote", func(o *Options) { o.Host = host })
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = remote.Shutdown(ctx)
	}()

	local := NewSystem("local", func(o *Options) { o.Transport = NewHTTPTransport("") })
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = local.Shutdown(ctx)
	}()

	bogus := PID{System: "remote", Host: host, ID: "does-not-exist"}
	assert.ErrorIs(t, local.Send(bogus, "hello"), ErrActorNotFound)
}
