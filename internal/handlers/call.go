package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/inboxcall-backend/internal/services"
)

// CallHandler places outbound calls
type CallHandler struct {
	placer services.CallPlacer
}

// NewCallHandler creates a new call handler. placer may be nil when Twilio
// is not configured.
func NewCallHandler(placer services.CallPlacer) *CallHandler {
	return &CallHandler{placer: placer}
}

// MakeCall rings phone_number and starts the assistant when it answers
func (h *CallHandler) MakeCall(c *fiber.Ctx) error {
	phone := strings.TrimSpace(c.Query("phone_number"))
	if phone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "phone_number is required",
		})
	}
	if h.placer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Twilio is not configured",
		})
	}

	sid, err := h.placer.InitiateCall(phone)
	if err != nil {
		log.Printf("❌ Make call failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to place call",
		})
	}

	return c.JSON(fiber.Map{
		"status":   "success",
		"call_sid": sid,
		"message":  "Calling " + phone,
	})
}
