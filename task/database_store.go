package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hupe1980/actormesh/core"
)

// taskRecord is the relational shape of a task. The full task document is
// stored as JSON; id, session and state are lifted into columns so lookups
// and session listings stay indexable.
type taskRecord struct {
	ID        string `gorm:"primaryKey;size:64"`
	SessionID string `gorm:"index;size:64"`
	State     string `gorm:"index;size:16"`
	Data      []byte `gorm:"type:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName implements the GORM table naming convention hook.
func (taskRecord) TableName() string { return "tasks" }

// DatabaseStoreOptions configures a DatabaseStore.
type DatabaseStoreOptions struct {
	// AutoMigrate creates or updates the tasks table on construction.
	AutoMigrate bool
}

// DatabaseStore is a TaskStore backed by a relational database through GORM.
// The caller owns the *gorm.DB (driver choice, pooling, lifecycle); the store
// only reads and writes the tasks table.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a database-backed task store.
func NewDatabaseStore(db *gorm.DB, optFns ...func(o *DatabaseStoreOptions)) (*DatabaseStore, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	opts := DatabaseStoreOptions{AutoMigrate: true}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.AutoMigrate {
		if err := db.AutoMigrate(&taskRecord{}); err != nil {
			return nil, fmt.Errorf("migrate tasks table: %w", err)
		}
	}
	return &DatabaseStore{db: db}, nil
}

// Save implements core.TaskStore.
func (s *DatabaseStore) Save(ctx context.Context, task *core.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %q: %w", task.ID, err)
	}
	record := taskRecord{
		ID:        task.ID,
		SessionID: task.SessionID,
		State:     string(task.Status.State),
		Data:      data,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		return fmt.Errorf("save task %q: %w", task.ID, err)
	}
	return nil
}

// Get implements core.TaskStore.
func (s *DatabaseStore) Get(ctx context.Context, taskID string) (*core.Task, error) {
	var record taskRecord
	err := s.db.WithContext(ctx).Where("id = ?", taskID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("task %q: %w", taskID, core.ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load task %q: %w", taskID, err)
	}
	return decodeRecord(record)
}

// Delete implements core.TaskStore.
func (s *DatabaseStore) Delete(ctx context.Context, taskID string) error {
	result := s.db.WithContext(ctx).Where("id = ?", taskID).Delete(&taskRecord{})
	if result.Error != nil {
		return fmt.Errorf("delete task %q: %w", taskID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("task %q: %w", taskID, core.ErrTaskNotFound)
	}
	return nil
}

// List implements core.TaskStore.
func (s *DatabaseStore) List(ctx context.Context, sessionID string) ([]*core.Task, error) {
	db := s.db.WithContext(ctx).Order("created_at")
	if sessionID != "" {
		db = db.Where("session_id = ?", sessionID)
	}
	var records []taskRecord
	if err := db.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]*core.Task, 0, len(records))
	for _, record := range records {
		task, err := decodeRecord(record)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func decodeRecord(record taskRecord) (*core.Task, error) {
	var task core.Task
	if err := json.Unmarshal(record.Data, &task); err != nil {
		return nil, fmt.Errorf("decode task %q: %w", record.ID, err)
	}
	return &task, nil
}
