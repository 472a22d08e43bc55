package core

import "context"

// TaskStore persists tasks. The canonical interface lives here so
// implementation packages (in-memory, database) can be swapped without
// touching calling code.
//
// Contract:
//   - Save persists a full task snapshot, creating or overwriting
//   - Get returns ErrTaskNotFound for unknown ids
//   - Returned tasks are safe for caller mutation (implementations clone)
type TaskStore interface {
	// Save persists the task snapshot, creating or overwriting.
	Save(ctx context.Context, task *Task) error

	// Get retrieves a task by id or returns ErrTaskNotFound.
	Get(ctx context.Context, taskID string) (*Task, error)

	// Delete removes a task or returns ErrTaskNotFound.
	Delete(ctx context.Context, taskID string) error

	// List returns tasks filtered by session id; an empty session id
	// returns all tasks. Order is unspecified.
	List(ctx context.Context, sessionID string) ([]*Task, error)
}
