package actor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Transport delivers messages to actors hosted in other processes. The
// runtime consults it whenever a PID's host differs from the local system's;
// local delivery never touches it. Implementations own serialization; the
// built-in HTTPTransport uses JSON.
type Transport interface {
	// Send delivers a fire-and-forget message to a remote actor.
	Send(ctx context.Context, pid PID, message any) error

	// Request delivers a message and waits for the remote actor's reply,
	// honoring the same hard timeout semantics as local asks.
	Request(ctx context.Context, pid PID, message any, timeout time.Duration) (any, error)
}

// RemoteMessage is what a Behavior receives when a message arrives over a
// transport. The payload stays raw JSON because the wire cannot carry Go
// types; receivers unmarshal into what they expect.
type RemoteMessage struct {
	From string          `json:"from,omitempty"`
	Data json.RawMessage `json:"data"`
}

type remoteEnvelope struct {
	PID     PID             `json:"pid"`
	From    string          `json:"from,omitempty"`
	Message json.RawMessage `json:"message"`
}

// HTTPTransportOptions configures an HTTPTransport.
type HTTPTransportOptions struct {
	// Client is the HTTP client used for outbound deliveries.
	Client *http.Client
	// Scheme selects http or https. Defaults to http.
	Scheme string
}

// HTTPTransport ships messages between actor systems as JSON over HTTP,
// pairing with System.Handler on the receiving side. Tell maps to
// POST /actors/{id}/send, ask to POST /actors/{id}/ask.
type HTTPTransport struct {
	client *http.Client
	scheme string
	from   string
}

// NewHTTPTransport creates a transport. The from host is advertised to
// receivers so replies and escalations can route back.
func NewHTTPTransport(from string, optFns ...func(o *HTTPTransportOptions)) *HTTPTransport {
	opts := HTTPTransportOptions{Client: http.DefaultClient, Scheme: "http"}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	return &HTTPTransport{client: opts.Client, scheme: opts.Scheme, from: from}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, pid PID, message any) error {
	url := fmt.Sprintf("%s://%s/actors/%s/send", t.scheme, pid.Host, pid.ID)
	resp, err := t.post(ctx, url, pid, message)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("pid %s: %w", pid, ErrActorNotFound)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("remote send to %s: status %d", pid, resp.StatusCode)
	}
	return nil
}

// Request implements Transport.
func (t *HTTPTransport) Request(ctx context.Context, pid PID, message any, timeout time.Duration) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("%s://%s/actors/%s/ask", t.scheme, pid.Host, pid.ID)
	resp, err := t.post(ctx, url, pid, message)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrTimeout
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, fmt.Errorf("pid %s: %w", pid, ErrActorNotFound)
	case http.StatusRequestTimeout:
		return nil, ErrTimeout
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("remote ask to %s: status %d", pid, resp.StatusCode)
	}

	var reply json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode remote reply: %w", err)
	}
	return reply, nil
}

func (t *HTTPTransport) post(ctx context.Context, url string, pid PID, message any) (*http.Response, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("marshal remote message: %w", err)
	}
	body, err := json.Marshal(remoteEnvelope{PID: pid, From: t.from, Message: payload})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.client.Do(req)
}

// Handler returns the inbound side of HTTP remoting: an http.Handler that
// accepts deliveries from a peer's HTTPTransport and routes them into this
// system's mailboxes. Mount it wherever the advertised host resolves to.
func (s *System) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/actors/{id}/send", s.handleRemoteSend)
	r.Post("/actors/{id}/ask", s.handleRemoteAsk)
	return r
}

func (s *System) decodeRemote(w http.ResponseWriter, r *http.Request) (PID, RemoteMessage, bool) {
	var env remoteEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, "invalid envelope", http.StatusBadRequest)
		return PID{}, RemoteMessage{}, false
	}
	pid := PID{System: s.name, Host: s.host, ID: chi.URLParam(r, "id")}
	return pid, RemoteMessage{From: env.From, Data: env.Message}, true
}

func (s *System) handleRemoteSend(w http.ResponseWriter, r *http.Request) {
	pid, msg, ok := s.decodeRemote(w, r)
	if !ok {
		return
	}
	if err := s.Send(pid, msg); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *System) handleRemoteAsk(w http.ResponseWriter, r *http.Request) {
	pid, msg, ok := s.decodeRemote(w, r)
	if !ok {
		return
	}

	// The caller's transport owns the deadline via the request context.
	timeout := 30 * time.Second
	if dl, ok := r.Context().Deadline(); ok {
		timeout = time.Until(dl)
	}

	reply, err := s.Request(r.Context(), pid, msg, timeout)
	switch {
	case err == nil:
	case isNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err == ErrTimeout:
		http.Error(w, err.Error(), http.StatusRequestTimeout)
		return
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		s.logger.Warn("encode remote reply failed pid=%s err=%v", pid, err)
	}
}
