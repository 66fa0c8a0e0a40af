package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
	"github.com/Ananth-NQI/inboxcall-backend/internal/services"
)

// TaskHandler lists and completes tasks created over the phone
type TaskHandler struct {
	tasks *services.TaskService
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// ListTasks returns the tasks of ?owner= or of a single ?call_id=
func (h *TaskHandler) ListTasks(c *fiber.Ctx) error {
	var (
		tasks []*models.Task
		err   error
	)
	switch {
	case c.Query("call_id") != "":
		tasks, err = h.tasks.CallTasks(c.Query("call_id"))
	case c.Query("owner") != "":
		tasks, err = h.tasks.ListTasks(c.Query("owner"))
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "owner or call_id is required",
		})
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"count": len(tasks),
		"tasks": tasks,
	})
}

// CompleteTask marks a task done
func (h *TaskHandler) CompleteTask(c *fiber.Ctx) error {
	task, err := h.tasks.CompleteTask(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Task not found",
		})
	}
	return c.JSON(task)
}
