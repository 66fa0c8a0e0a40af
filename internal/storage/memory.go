package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
)

// MemoryStore holds all data in memory for development and tests
type MemoryStore struct {
	tasks map[string]*models.Task
	mu    sync.RWMutex

	// Counter for gorm-style primary keys
	taskCounter uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]*models.Task),
	}
}

// Task operations
func (m *MemoryStore) CreateTask(task *models.Task) (*models.Task, error) {
	if task.Description == "" {
		return nil, fmt.Errorf("task description is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.taskCounter++
	now := time.Now()
	stored := *task
	stored.ID = m.taskCounter
	if stored.TaskID == "" {
		stored.TaskID = uuid.NewString()
	}
	if stored.Status == "" {
		stored.Status = models.TaskStatusOpen
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now

	m.tasks[stored.TaskID] = &stored
	result := stored
	return &result, nil
}

func (m *MemoryStore) GetTask(taskID string) (*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, exists := m.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("task not found")
	}
	result := *task
	return &result, nil
}

func (m *MemoryStore) GetTasksByOwner(owner string) ([]*models.Task, error) {
	return m.filter(func(t *models.Task) bool { return t.Owner == owner }), nil
}

func (m *MemoryStore) GetTasksByCall(callID string) ([]*models.Task, error) {
	return m.filter(func(t *models.Task) bool { return t.CallID == callID }), nil
}

func (m *MemoryStore) CompleteTask(taskID string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, exists := m.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("task not found")
	}
	if task.Status != models.TaskStatusDone {
		now := time.Now()
		task.Status = models.TaskStatusDone
		task.CompletedAt = &now
		task.UpdatedAt = now
	}
	result := *task
	return &result, nil
}

// filter returns copies of matching tasks, oldest first
func (m *MemoryStore) filter(match func(*models.Task) bool) []*models.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tasks []*models.Task
	for _, task := range m.tasks {
		if match(task) {
			copied := *task
			tasks = append(tasks, &copied)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}
