package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
	"github.com/Ananth-NQI/inboxcall-backend/internal/storage"
)

// TaskService stores tasks dictated during a call
type TaskService struct {
	store storage.Store
}

func NewTaskService(store storage.Store) *TaskService {
	return &TaskService{store: store}
}

func (t *TaskService) CreateTask(ctx context.Context, owner, callID, description string) (string, error) {
	if t.store == nil {
		return "", fmt.Errorf("task store not configured")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return "", fmt.Errorf("empty task description")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	task, err := t.store.CreateTask(&models.Task{
		Owner:       owner,
		CallID:      callID,
		Description: description,
	})
	if err != nil {
		return "", fmt.Errorf("save task: %w", err)
	}

	log.Printf("📝 Task %s created for %s", task.TaskID, owner)
	return fmt.Sprintf("I added the task: %s.", task.Description), nil
}

// ListTasks returns the tasks an owner created
func (t *TaskService) ListTasks(owner string) ([]*models.Task, error) {
	return t.store.GetTasksByOwner(owner)
}

// CallTasks returns the tasks created during one call
func (t *TaskService) CallTasks(callID string) ([]*models.Task, error) {
	return t.store.GetTasksByCall(callID)
}

// CompleteTask marks a task done
func (t *TaskService) CompleteTask(taskID string) (*models.Task, error) {
	return t.store.CompleteTask(taskID)
}
