package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
)

// DatabaseStore persists data in Postgres through gorm
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a store on an open connection
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (d *DatabaseStore) CreateTask(task *models.Task) (*models.Task, error) {
	if task.Description == "" {
		return nil, fmt.Errorf("task description is required")
	}
	if err := d.db.Create(task).Error; err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

func (d *DatabaseStore) GetTask(taskID string) (*models.Task, error) {
	var task models.Task
	if err := d.db.Where("task_id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task not found")
		}
		return nil, err
	}
	return &task, nil
}

func (d *DatabaseStore) GetTasksByOwner(owner string) ([]*models.Task, error) {
	var tasks []*models.Task
	err := d.db.Where("owner = ?", owner).Order("created_at asc").Find(&tasks).Error
	return tasks, err
}

func (d *DatabaseStore) GetTasksByCall(callID string) ([]*models.Task, error) {
	var tasks []*models.Task
	err := d.db.Where("call_id = ?", callID).Order("created_at asc").Find(&tasks).Error
	return tasks, err
}

func (d *DatabaseStore) CompleteTask(taskID string) (*models.Task, error) {
	task, err := d.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == models.TaskStatusDone {
		return task, nil
	}

	now := time.Now()
	err = d.db.Model(task).Updates(map[string]interface{}{
		"status":       models.TaskStatusDone,
		"completed_at": now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}
	return task, nil
}
