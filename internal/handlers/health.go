package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/inboxcall-backend/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	Version  string
	sessions *services.SessionManager
	db       *gorm.DB
	features map[string]bool
}

// NewHealthHandler creates a new health handler. db is nil with the memory
// store.
func NewHealthHandler(version string, sessions *services.SessionManager, db *gorm.DB, features map[string]bool) *HealthHandler {
	return &HealthHandler{
		Version:  version,
		sessions: sessions,
		db:       db,
		features: features,
	}
}

// Info describes the service and its endpoints
func (h *HealthHandler) Info(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service":  "InboxCall Voice Assistant",
		"version":  h.Version,
		"status":   "running",
		"features": h.features,
		"endpoints": fiber.Map{
			"health":      "/health",
			"make_call":   "POST /make-call?phone_number=...",
			"read_emails": "/read-emails",
			"tasks":       "/tasks?owner=...",
			"voice":       "/voice/greeting",
		},
	})
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "healthy"
	statusCode := fiber.StatusOK

	database := "memory"
	if h.db != nil {
		database = "connected"
		sqlDB, err := h.db.DB()
		if err != nil || sqlDB.Ping() != nil {
			database = "unreachable"
			status = "unhealthy"
			statusCode = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":   status,
		"service":  "InboxCall Voice Assistant",
		"version":  h.Version,
		"database": database,
		"sessions": h.sessions.GetSessionStats(),
	})
}
