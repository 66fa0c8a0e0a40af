package routes

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/inboxcall-backend/internal/config"
	"github.com/Ananth-NQI/inboxcall-backend/internal/handlers"
	"github.com/Ananth-NQI/inboxcall-backend/internal/middleware"
)

// Handlers bundles everything the router mounts
type Handlers struct {
	Voice  *handlers.VoiceHandler
	Calls  *handlers.CallHandler
	Emails *handlers.EmailHandler
	Tasks  *handlers.TaskHandler
	Health *handlers.HealthHandler
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, h Handlers) {
	app.Get("/", h.Health.Info)
	app.Get("/health", h.Health.Check)

	// REST
	app.Post("/make-call", h.Calls.MakeCall)
	app.Get("/read-emails", h.Emails.ReadEmails)
	app.Get("/tasks", h.Tasks.ListTasks)
	app.Post("/tasks/:id/complete", h.Tasks.CompleteTask)

	// ========== VOICE WEBHOOKS ==========
	voice := app.Group("/voice")

	// ENVIRONMENT-AWARE VALIDATION
	if cfg.ValidateWebhooks() {
		voice.Use(middleware.ValidateTwilioSignature(cfg.TwilioAuthToken, cfg.BaseURL))
	} else {
		// Development: Skip validation for ngrok
		log.Println("⚠️  Voice webhook validation DISABLED")
	}

	voice.Post("/greeting", h.Voice.Greeting)
	voice.Post("/process_input", h.Voice.ProcessInput)
	voice.Post("/read_email", h.Voice.ReadEmail)
	voice.Post("/status", h.Voice.Status)
}
