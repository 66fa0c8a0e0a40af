package storage

import (
	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
)

// Store defines the interface for storage operations
type Store interface {
	// Task operations
	CreateTask(task *models.Task) (*models.Task, error)
	GetTask(taskID string) (*models.Task, error)
	GetTasksByOwner(owner string) ([]*models.Task, error)
	GetTasksByCall(callID string) ([]*models.Task, error)
	CompleteTask(taskID string) (*models.Task, error)
}
