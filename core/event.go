package core

import "time"

// Event type discriminators. These strings are used for push-notification
// filtering (PushNotificationConfig.Events) and as SSE event names.
const (
	EventTypeTaskStarted   = "task_started"
	EventTypeMessageAdded  = "message_added"
	EventTypeArtifactAdded = "artifact_added"
	EventTypeTaskCompleted = "task_completed"
	EventTypeTaskFailed    = "task_failed"
	EventTypeTaskCancelled = "task_cancelled"
)

// TaskEvent is an ephemeral notification of a task state or content change.
// Events are not persisted; they exist only to be observed by subscribers and
// push-notification dispatch. Concrete event types form a closed union via
// the unexported isTaskEvent marker.
//
// Ordering guarantee (per task): TaskStarted occurs at most once and before
// any MessageAdded / ArtifactAdded event; exactly one terminal event
// (TaskCompleted, TaskFailed or TaskCancelled) ends the sequence.
type TaskEvent interface {
	// TaskID returns the id of the task this event concerns.
	TaskID() string
	// Type returns the event discriminator used for filtering and framing.
	Type() string
	// Terminal reports whether this event ends the task's event sequence.
	Terminal() bool

	isTaskEvent()
}

// TaskStartedEvent signals the SUBMITTED -> PROCESSING transition.
type TaskStartedEvent struct {
	Task      string    `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageAddedEvent signals a message appended to the task history.
type MessageAddedEvent struct {
	Task      string    `json:"task_id"`
	Message   Message   `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ArtifactAddedEvent signals an artifact appended to the task.
type ArtifactAddedEvent struct {
	Task      string    `json:"task_id"`
	Artifact  Artifact  `json:"artifact"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskCompletedEvent signals the transition to COMPLETED.
type TaskCompletedEvent struct {
	Task      string    `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskFailedEvent signals the transition to FAILED carrying the failure text.
type TaskFailedEvent struct {
	Task      string    `json:"task_id"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskCancelledEvent signals the transition to CANCELLED.
type TaskCancelledEvent struct {
	Task      string    `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTaskStartedEvent constructs a TaskStartedEvent stamped with UTC now.
func NewTaskStartedEvent(taskID string) TaskStartedEvent {
	return TaskStartedEvent{Task: taskID, Timestamp: time.Now().UTC()}
}

// NewMessageAddedEvent constructs a MessageAddedEvent stamped with UTC now.
func NewMessageAddedEvent(taskID string, message Message) MessageAddedEvent {
	return MessageAddedEvent{Task: taskID, Message: message, Timestamp: time.Now().UTC()}
}

// NewArtifactAddedEvent constructs an ArtifactAddedEvent stamped with UTC now.
func NewArtifactAddedEvent(taskID string, artifact Artifact) ArtifactAddedEvent {
	return ArtifactAddedEvent{Task: taskID, Artifact: artifact, Timestamp: time.Now().UTC()}
}

// NewTaskCompletedEvent constructs a TaskCompletedEvent stamped with UTC now.
func NewTaskCompletedEvent(taskID string) TaskCompletedEvent {
	return TaskCompletedEvent{Task: taskID, Timestamp: time.Now().UTC()}
}

// NewTaskFailedEvent constructs a TaskFailedEvent stamped with UTC now.
func NewTaskFailedEvent(taskID, errText string) TaskFailedEvent {
	return TaskFailedEvent{Task: taskID, Error: errText, Timestamp: time.Now().UTC()}
}

// NewTaskCancelledEvent constructs a TaskCancelledEvent stamped with UTC now.
func NewTaskCancelledEvent(taskID string) TaskCancelledEvent {
	return TaskCancelledEvent{Task: taskID, Timestamp: time.Now().UTC()}
}

// TaskID returns the id of the task this event concerns.
func (e TaskStartedEvent) TaskID() string { return e.Task }

// Type returns the event discriminator.
func (e TaskStartedEvent) Type() string { return EventTypeTaskStarted }

// Terminal reports whether this event ends the task's event sequence.
func (e TaskStartedEvent) Terminal() bool { return false }

func (TaskStartedEvent) isTaskEvent() {}

// TaskID returns the id of the task this event concerns.
func (e MessageAddedEvent) TaskID() string { return e.Task }

// Type returns the event discriminator.
func (e MessageAddedEvent) Type() string { return EventTypeMessageAdded }

// Terminal reports whether this event ends the task's event sequence.
func (e MessageAddedEvent) Terminal() bool { return false }

func (MessageAddedEvent) isTaskEvent() {}

// TaskID returns the id of the task this event concerns.
func (e ArtifactAddedEvent) TaskID() string { return e.Task }

// Type returns the event discriminator.
func (e ArtifactAddedEvent) Type() string { return EventTypeArtifactAdded }

// Terminal reports whether this event ends the task's event sequence.
func (e ArtifactAddedEvent) Terminal() bool { return false }

func (ArtifactAddedEvent) isTaskEvent() {}

// TaskID returns the id of the task this event concerns.
func (e TaskCompletedEvent) TaskID() string { return e.Task }

// Type returns the event discriminator.
func (e TaskCompletedEvent) Type() string { return EventTypeTaskCompleted }

// Terminal reports whether this event ends the task's event sequence.
func (e TaskCompletedEvent) Terminal() bool { return true }

func (TaskCompletedEvent) isTaskEvent() {}

// TaskID returns the id of the task this event concerns.
func (e TaskFailedEvent) TaskID() string { return e.Task }

// Type returns the event discriminator.
func (e TaskFailedEvent) Type() string { return EventTypeTaskFailed }

// Terminal reports whether this event ends the task's event sequence.
func (e TaskFailedEvent) Terminal() bool { return true }

func (TaskFailedEvent) isTaskEvent() {}

// TaskID returns the id of the task this event concerns.
func (e TaskCancelledEvent) TaskID() string { return e.Task }

// Type returns the event discriminator.
func (e TaskCancelledEvent) Type() string { return EventTypeTaskCancelled }

// Terminal reports whether this event ends the task's event sequence.
func (e TaskCancelledEvent) Terminal() bool { return true }

func (TaskCancelledEvent) isTaskEvent() {}
