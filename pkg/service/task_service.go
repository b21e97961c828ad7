// Task store - owner-scoped CRUD over the tasks table
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taskpilot/taskpilot/pkg/db"
	"github.com/taskpilot/taskpilot/pkg/utils"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTitleEmpty   = errors.New("title cannot be empty")
	ErrTitleTooLong = errors.New("title exceeds 200 characters")
	ErrNoUpdates    = errors.New("no updates provided")
)

const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 1000
)

// NormalizeTitle trims the title and enforces the 1-200 character policy.
// The same rule applies to the REST layer and the agent tools.
func NormalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrTitleEmpty
	}
	if len([]rune(title)) > MaxTitleLen {
		return "", ErrTitleTooLong
	}
	return title, nil
}

// TruncateDescription caps the description at 1000 characters. Oversized
// input is truncated, never rejected.
func TruncateDescription(desc string) string {
	r := []rune(desc)
	if len(r) > MaxDescriptionLen {
		return string(r[:MaxDescriptionLen])
	}
	return desc
}

// TaskUpdate carries the optional fields of a partial update. Nil means
// "leave unchanged".
type TaskUpdate struct {
	Title       *string
	Description *string
	Completed   *bool
}

// TaskService provides task CRUD with owner isolation. It holds no state
// beyond the database handle; every call re-reads from the store.
type TaskService struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewTaskService creates a new task service
func NewTaskService(gdb *gorm.DB) *TaskService {
	return &TaskService{
		db:     gdb,
		logger: utils.GetLogger(),
	}
}

// Create validates and stores a new task for ownerID.
func (s *TaskService) Create(ownerID, title, description string) (*db.Task, error) {
	title, err := NormalizeTitle(title)
	if err != nil {
		return nil, err
	}
	task := &db.Task{
		OwnerID:     ownerID,
		Title:       title,
		Description: TruncateDescription(description),
	}
	if err := s.db.Create(task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// GetByID returns the task only if it exists and belongs to ownerID.
func (s *TaskService) GetByID(ownerID string, taskID uint) (*db.Task, error) {
	var task db.Task
	err := s.db.Where("id = ? AND owner_id = ?", taskID, ownerID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

// List returns the owner's tasks, newest first. status is one of
// all/pending/completed; any other value falls back to all. No matches
// yields an empty slice, not an error.
func (s *TaskService) List(ownerID, status string, limit, offset int) ([]db.Task, error) {
	query := s.db.Where("owner_id = ?", ownerID)
	switch status {
	case db.StatusPending:
		query = query.Where("completed = ?", false)
	case db.StatusCompleted:
		query = query.Where("completed = ?", true)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var tasks []db.Task
	if err := query.Order("created_at DESC, id DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Update applies a partial update. At least one field must be present.
func (s *TaskService) Update(ownerID string, taskID uint, upd TaskUpdate) (*db.Task, error) {
	if upd.Title == nil && upd.Description == nil && upd.Completed == nil {
		return nil, ErrNoUpdates
	}

	task, err := s.GetByID(ownerID, taskID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if upd.Title != nil {
		title, err := NormalizeTitle(*upd.Title)
		if err != nil {
			return nil, err
		}
		updates["title"] = title
	}
	if upd.Description != nil {
		updates["description"] = TruncateDescription(*upd.Description)
	}
	if upd.Completed != nil {
		updates["completed"] = *upd.Completed
	}
	updates["updated_at"] = time.Now().UTC()

	if err := s.db.Model(task).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(ownerID, taskID)
}

// Complete marks the task as done. Completing an already-completed task is
// a success, not an error.
func (s *TaskService) Complete(ownerID string, taskID uint) (*db.Task, error) {
	completed := true
	return s.Update(ownerID, taskID, TaskUpdate{Completed: &completed})
}

// ToggleComplete flips the completion flag (REST PATCH semantics).
func (s *TaskService) ToggleComplete(ownerID string, taskID uint) (*db.Task, error) {
	task, err := s.GetByID(ownerID, taskID)
	if err != nil {
		return nil, err
	}
	next := !task.Completed
	return s.Update(ownerID, taskID, TaskUpdate{Completed: &next})
}

// Delete removes the task. Foreign or unknown ids report ErrTaskNotFound.
func (s *TaskService) Delete(ownerID string, taskID uint) error {
	res := s.db.Where("id = ? AND owner_id = ?", taskID, ownerID).Delete(&db.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
