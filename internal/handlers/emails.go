package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/inboxcall-backend/internal/conversation"
)

// EmailHandler exposes the ranked inbox over REST
type EmailHandler struct {
	ranker conversation.Ranker
}

// NewEmailHandler creates a new email handler
func NewEmailHandler(ranker conversation.Ranker) *EmailHandler {
	return &EmailHandler{ranker: ranker}
}

// ReadEmails returns the inbox, most important first
func (h *EmailHandler) ReadEmails(c *fiber.Ctx) error {
	if h.ranker == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Email is not configured",
		})
	}

	emails, err := h.ranker.FetchAndRank(c.UserContext())
	if err != nil {
		log.Printf("❌ Read emails failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to fetch emails",
		})
	}

	return c.JSON(fiber.Map{
		"count":  len(emails),
		"emails": emails,
	})
}
