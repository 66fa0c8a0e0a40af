package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task is a to-do item created by voice during a call
type Task struct {
	gorm.Model
	TaskID      string     `gorm:"uniqueIndex;not null" json:"task_id"`
	Owner       string     `gorm:"index;not null" json:"owner"` // caller phone number
	CallID      string     `gorm:"index" json:"call_id"`
	Description string     `gorm:"not null" json:"description"`
	Status      string     `gorm:"default:'open'" json:"status"` // open, done
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

const (
	TaskStatusOpen = "open"
	TaskStatusDone = "done"
)

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.TaskID == "" {
		t.TaskID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TaskStatusOpen
	}
	return nil
}
