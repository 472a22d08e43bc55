package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/actormesh/core"
)

// InMemoryStore is a volatile TaskStore implementation storing tasks in a
// process local map. It is safe for concurrent access and best suited for
// tests or single-process deployments. Each returned task is cloned to
// prevent external mutation of internal state.
type InMemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*core.Task
}

// NewInMemoryStore constructs an empty in-memory task store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tasks: make(map[string]*core.Task)}
}

// Save stores a clone of the provided task snapshot, creating or overwriting.
func (s *InMemoryStore) Save(_ context.Context, task *core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task.Clone()
	return nil
}

// Get returns a clone of the task or ErrTaskNotFound.
func (s *InMemoryStore) Get(_ context.Context, taskID string) (*core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", taskID, core.ErrTaskNotFound)
	}
	return task.Clone(), nil
}

// Delete removes a task or returns ErrTaskNotFound.
func (s *InMemoryStore) Delete(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[taskID]; !ok {
		return fmt.Errorf("task %q: %w", taskID, core.ErrTaskNotFound)
	}
	delete(s.tasks, taskID)
	return nil
}

// List returns clones of all tasks, optionally filtered by session id.
func (s *InMemoryStore) List(_ context.Context, sessionID string) ([]*core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := make([]*core.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if sessionID != "" && task.SessionID != sessionID {
			continue
		}
		tasks = append(tasks, task.Clone())
	}
	return tasks, nil
}
