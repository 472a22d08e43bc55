package testutil

import (
	"time"

	"github.com/hupe1980/actormesh/core"
)

// TaskBuilder helps construct tasks with fluent chaining for tests.
// Example:
//
//	task := NewTaskBuilder("task-1").Session("s1").UserText("hello").Processing().Build()
type TaskBuilder struct {
	id        string
	sessionID string
	messages  []core.Message
	artifacts []core.Artifact
	metadata  map[string]any
	status    core.TaskStatus
}

// NewTaskBuilder creates a new builder for a task with the given id.
// Use chainable methods then call Build.
func NewTaskBuilder(id string) *TaskBuilder {
	return &TaskBuilder{
		id:       id,
		metadata: map[string]any{},
		status:   core.TaskStatus{State: core.TaskStateSubmitted},
	}
}

// Session sets the session id (chainable).
func (b *TaskBuilder) Session(sessionID string) *TaskBuilder {
	b.sessionID = sessionID
	return b
}

// UserText appends a user text message to the history (chainable).
func (b *TaskBuilder) UserText(text string) *TaskBuilder {
	b.messages = append(b.messages, core.NewUserMessage(text))
	return b
}

// AssistantText appends an assistant text message to the history (chainable).
func (b *TaskBuilder) AssistantText(text string) *TaskBuilder {
	b.messages = append(b.messages, core.NewAssistantMessage(text))
	return b
}

// Artifact appends an artifact (chainable).
func (b *TaskBuilder) Artifact(artifact core.Artifact) *TaskBuilder {
	b.artifacts = append(b.artifacts, artifact)
	return b
}

// Metadata sets a metadata key/value pair (chainable).
func (b *TaskBuilder) Metadata(key string, val any) *TaskBuilder {
	b.metadata[key] = val
	return b
}

// Processing moves the built task into PROCESSING with StartedAt set (chainable).
func (b *TaskBuilder) Processing() *TaskBuilder {
	now := time.Now().UTC()
	b.status.State = core.TaskStateProcessing
	b.status.StartedAt = &now
	return b
}

// Completed moves the built task into COMPLETED with timestamps and full
// progress set (chainable).
func (b *TaskBuilder) Completed() *TaskBuilder {
	now := time.Now().UTC()
	b.status.State = core.TaskStateCompleted
	b.status.Progress = 1
	if b.status.StartedAt == nil {
		b.status.StartedAt = &now
	}
	b.status.CompletedAt = &now
	return b
}

// Failed moves the built task into FAILED carrying the error text (chainable).
func (b *TaskBuilder) Failed(errText string) *TaskBuilder {
	now := time.Now().UTC()
	b.status.State = core.TaskStateFailed
	b.status.Error = errText
	if b.status.StartedAt == nil {
		b.status.StartedAt = &now
	}
	b.status.CompletedAt = &now
	return b
}

// Build returns a *core.Task with the accumulated history, artifacts and status.
func (b *TaskBuilder) Build() *core.Task {
	now := time.Now().UTC()
	task := &core.Task{
		ID:        b.id,
		SessionID: b.sessionID,
		Status:    b.status,
		History:   append([]core.Message{}, b.messages...),
		Artifacts: append([]core.Artifact{}, b.artifacts...),
		Metadata:  b.metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return task
}
