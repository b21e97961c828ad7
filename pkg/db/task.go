// Database model for tasks
package db

import "time"

// Task represents a single todo item owned by one user. Every query against
// this table must filter on OwnerID; a row is never visible to another
// owner.
type Task struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	OwnerID     string    `json:"owner_id" gorm:"index:idx_tasks_owner;index:idx_tasks_owner_completed;size:64;not null"`
	Title       string    `json:"title" gorm:"size:200;not null"`
	Description string    `json:"description,omitempty" gorm:"size:1000"`
	Completed   bool      `json:"completed" gorm:"index:idx_tasks_owner_completed;default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}

// Task list status filters. Anything else is treated as StatusAll.
const (
	StatusAll       = "all"
	StatusPending   = "pending"
	StatusCompleted = "completed"
)
