package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hupe1980/actormesh/core"
	"github.com/hupe1980/actormesh/logging"
)

// Dispatcher sends one task event to the endpoint described by a push
// notification config. Implementations must be safe for concurrent use; the
// task manager calls Dispatch from per-event goroutines.
type Dispatcher interface {
	Dispatch(ctx context.Context, cfg core.PushNotificationConfig, event core.TaskEvent) error
}

// HTTPDispatcherOptions configures an HTTPDispatcher.
type HTTPDispatcherOptions struct {
	// Client is the HTTP client used for deliveries.
	Client *http.Client
	// Timeout bounds a single delivery attempt.
	Timeout time.Duration
	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// HTTPDispatcher POSTs JSON event payloads to the configured webhook URL,
// attaching the config's bearer token when present. One attempt per event,
// no retries.
type HTTPDispatcher struct {
	client  *http.Client
	timeout time.Duration
	logger  logging.Logger
}

// NewHTTPDispatcher creates a dispatcher with sane defaults (10s timeout).
func NewHTTPDispatcher(optFns ...func(o *HTTPDispatcherOptions)) *HTTPDispatcher {
	opts := HTTPDispatcherOptions{
		Client:  http.DefaultClient,
		Timeout: 10 * time.Second,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &HTTPDispatcher{client: opts.Client, timeout: opts.Timeout, logger: opts.Logger}
}

// payload is the wire shape of a delivery: the discriminator beside the
// event body so receivers can route without sniffing fields.
type payload struct {
	TaskID string         `json:"task_id"`
	Type   string         `json:"type"`
	Event  core.TaskEvent `json:"event"`
}

// Dispatch implements Dispatcher.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, cfg core.PushNotificationConfig, event core.TaskEvent) error {
	body, err := json.Marshal(payload{TaskID: event.TaskID(), Type: event.Type(), Event: event})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("push delivery failed task_id=%s url=%s err=%v", event.TaskID(), cfg.URL, err)
		return fmt.Errorf("deliver push notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		d.logger.Warn("push delivery rejected task_id=%s url=%s status=%d", event.TaskID(), cfg.URL, resp.StatusCode)
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}

	d.logger.Debug("push delivered task_id=%s url=%s type=%s", event.TaskID(), cfg.URL, event.Type())
	return nil
}
