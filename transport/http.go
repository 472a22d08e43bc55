package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hupe1980/actormesh/core"
	"github.com/hupe1980/actormesh/logging"
	"github.com/hupe1980/actormesh/task"
)

// HandlerOptions configures the HTTP handler.
type HandlerOptions struct {
	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// Handler serves the task manager's operations over HTTP.
type Handler struct {
	manager *task.Manager
	logger  logging.Logger
	router  chi.Router
}

// NewHandler builds the HTTP surface for a task manager.
func NewHandler(manager *task.Manager, optFns ...func(o *HandlerOptions)) *Handler {
	opts := HandlerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	h := &Handler{manager: manager, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.submitTask)
		r.Get("/", h.listTasks)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getTask)
			r.Get("/status", h.getStatus)
			r.Post("/cancel", h.cancelTask)
			r.Put("/push", h.setPush)
			r.Get("/subscribe", h.subscribe)
		})
	})
	h.router = r
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// submitRequest is the JSON body of POST /tasks.
type submitRequest struct {
	TaskID     string                       `json:"task_id,omitempty"`
	SessionID  string                       `json:"session_id,omitempty"`
	Capability string                       `json:"capability"`
	Prompt     string                       `json:"prompt"`
	Metadata   map[string]any               `json:"metadata,omitempty"`
	PushConfig *core.PushNotificationConfig `json:"push_config,omitempty"`
}

func (h *Handler) submitTask(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Capability == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("capability is required"))
		return
	}

	t, err := h.manager.Send(r.Context(), task.SendParams{
		TaskID:     req.TaskID,
		SessionID:  req.SessionID,
		Capability: req.Capability,
		Message:    core.NewUserMessage(req.Prompt),
		Metadata:   req.Metadata,
		PushConfig: req.PushConfig,
	})
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.manager.List(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.manager.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) cancelTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.manager.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

func (h *Handler) setPush(w http.ResponseWriter, r *http.Request) {
	var cfg core.PushNotificationConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := h.manager.SetPushNotification(r.Context(), chi.URLParam(r, "id"), cfg); err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// subscribe streams the task's events as server-sent events until the task
// reaches a terminal state or the client disconnects.
func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	events, unsubscribe, err := h.manager.Subscribe(r.Context(), taskID)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Warn("sse marshal failed task_id=%s type=%s err=%v", taskID, ev.Type(), err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type(), data)
			flusher.Flush()
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("response encoding failed err=%v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrTaskNotFound), errors.Is(err, core.ErrCapabilityNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTaskTerminal):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
