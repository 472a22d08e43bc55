package core

import (
	"time"

	"github.com/google/uuid"
)

// TaskState identifies a position in the task lifecycle state machine.
//
// Valid transitions:
//
//	SUBMITTED  -> PROCESSING | CANCELLED
//	PROCESSING -> COMPLETED | FAILED | CANCELLED
//
// COMPLETED, FAILED and CANCELLED are terminal; no transition leaves them.
type TaskState string

const (
	// TaskStateSubmitted marks a task that has been created but whose
	// processing has not started yet.
	TaskStateSubmitted TaskState = "submitted"
	// TaskStateProcessing marks a task whose capability invocation is in flight.
	TaskStateProcessing TaskState = "processing"
	// TaskStateCompleted marks a task that finished successfully.
	TaskStateCompleted TaskState = "completed"
	// TaskStateFailed marks a task whose processing failed.
	TaskStateFailed TaskState = "failed"
	// TaskStateCancelled marks a task cancelled before completion.
	TaskStateCancelled TaskState = "cancelled"
)

// Terminal reports whether the state is final (no outgoing transitions).
func (s TaskState) Terminal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed || s == TaskStateCancelled
}

// CanTransitionTo reports whether the state machine permits an edge from s to next.
func (s TaskState) CanTransitionTo(next TaskState) bool {
	switch s {
	case TaskStateSubmitted:
		return next == TaskStateProcessing || next == TaskStateCancelled
	case TaskStateProcessing:
		return next == TaskStateCompleted || next == TaskStateFailed || next == TaskStateCancelled
	default:
		return false
	}
}

// TaskStatus captures the observable execution state of a task.
//
// Invariants (enforced by the task manager, validated in tests):
//   - Progress is in [0,1] and monotonically non-decreasing while PROCESSING
//   - CompletedAt is set if and only if State is terminal
//   - Error is only set when State == FAILED
type TaskStatus struct {
	State       TaskState  `json:"state"`
	Progress    float64    `json:"progress"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Task is a serializable unit of delegated work. It is owned by the task
// manager for its entire life; History and Artifacts are append-only and the
// whole record becomes immutable (except Metadata) once Status.State is
// terminal. Task carries no synchronization of its own; all mutation goes
// through the manager's per-task exclusion.
type Task struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id,omitempty"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewTask allocates a task in SUBMITTED state with the given message as the
// sole history entry. An empty id is replaced by a fresh UUID.
func NewTask(id, sessionID string, message Message) *Task {
	if id == "" {
		id = NewID()
	}
	now := time.Now().UTC()
	return &Task{
		ID:        id,
		SessionID: sessionID,
		Status:    TaskStatus{State: TaskStateSubmitted},
		History:   []Message{message},
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LastMessage returns the most recent history entry, if any.
func (t *Task) LastMessage() (Message, bool) {
	if len(t.History) == 0 {
		return Message{}, false
	}
	return t.History[len(t.History)-1], true
}

// Prompt returns the concatenated text parts of the last history message.
// This is the input handed to a capability when the task is processed.
func (t *Task) Prompt() string {
	last, ok := t.LastMessage()
	if !ok {
		return ""
	}
	return last.Text()
}

// Clone returns a deep copy of the task safe for independent mutation.
func (t *Task) Clone() *Task {
	clone := &Task{
		ID:        t.ID,
		SessionID: t.SessionID,
		Status:    t.Status,
		History:   make([]Message, len(t.History)),
		Metadata:  make(map[string]any, len(t.Metadata)),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	copy(clone.History, t.History)
	if len(t.Artifacts) > 0 {
		clone.Artifacts = make([]Artifact, len(t.Artifacts))
		copy(clone.Artifacts, t.Artifacts)
	}
	for k, v := range t.Metadata {
		clone.Metadata[k] = v
	}
	if t.Status.StartedAt != nil {
		started := *t.Status.StartedAt
		clone.Status.StartedAt = &started
	}
	if t.Status.CompletedAt != nil {
		completed := *t.Status.CompletedAt
		clone.Status.CompletedAt = &completed
	}
	return clone
}

// NewID generates a new unique identifier for tasks, messages and events.
func NewID() string { return uuid.NewString() }
