package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/inboxcall-backend/database"
	"github.com/Ananth-NQI/inboxcall-backend/internal/config"
	"github.com/Ananth-NQI/inboxcall-backend/internal/conversation"
	"github.com/Ananth-NQI/inboxcall-backend/internal/handlers"
	"github.com/Ananth-NQI/inboxcall-backend/internal/routes"
	"github.com/Ananth-NQI/inboxcall-backend/internal/services"
	"github.com/Ananth-NQI/inboxcall-backend/internal/storage"
)

const version = "1.0.0"

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			if err := godotenv.Load(".env.local"); err != nil {
				log.Println("⚠️  No .env file found - checking environment variables")
			}
		}
	}

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	var store storage.Store
	var db *gorm.DB
	if cfg.UseMemoryStore {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		var err error
		db, err = database.Connect(cfg)
		if err != nil {
			log.Fatal("Failed to connect to database: ", err)
		}
		store = storage.NewDatabaseStore(db)
		log.Println("✅ Using PostgreSQL database storage")
	}

	// Language model, optional
	var llm services.TextGenerator
	if cfg.GeminiConfigured() {
		gemini, err := services.NewGeminiClient(ctx, cfg)
		if err != nil {
			log.Printf("⚠️  Gemini unavailable, using keyword rules: %v", err)
		} else {
			llm = gemini
		}
	} else {
		log.Println("⚠️  Gemini not configured - using keyword rules only")
	}

	// Gmail and Calendar, optional
	taskService := services.NewTaskService(store)
	collab := conversation.Collaborators{
		Tasks: taskService,
	}
	var ranker conversation.Ranker
	workspace, err := services.NewGoogleWorkspace(ctx, cfg)
	if err != nil {
		log.Printf("⚠️  Google Workspace unavailable - email and calendar disabled: %v", err)
	} else {
		ranker = services.NewEmailRanker(workspace, llm, cfg.MaxEmails)
		collab.Ranker = ranker
		collab.Mailer = services.NewReplyMailer(workspace, llm)
		collab.Calendar = services.NewCalendarService(workspace)
	}

	// Twilio, optional for inbound-only setups
	var placer services.CallPlacer
	if twilioService, err := services.NewTwilioService(cfg); err != nil {
		log.Printf("⚠️  %v - outbound calls disabled", err)
	} else {
		placer = twilioService
		log.Println("✅ Twilio service initialized")
	}

	classifier := &services.HybridClassifier{}
	if llm != nil {
		classifier.Model = services.NewGeminiClassifier(llm)
	}

	sessions := services.NewSessionManager(cfg.SessionIdleTimeout, cfg.SessionSweepInterval)
	sessions.Start(ctx)

	machine := conversation.NewMachine(collab, cfg.MachineConfig())
	turns := services.NewTurnAdapter(sessions, machine, classifier, cfg.CollaboratorTimeout)

	features := map[string]bool{
		"gemini":   llm != nil,
		"gmail":    collab.Ranker != nil,
		"calendar": collab.Calendar != nil,
		"twilio":   placer != nil,
	}

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName:   "InboxCall Backend v" + version,
		Immutable: true, // call SIDs outlive the request as session keys
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	routes.SetupRoutes(app, cfg, routes.Handlers{
		Voice:  handlers.NewVoiceHandler(turns, cfg.Voice, cfg.Language),
		Calls:  handlers.NewCallHandler(placer),
		Emails: handlers.NewEmailHandler(ranker),
		Tasks:  handlers.NewTaskHandler(taskService),
		Health: handlers.NewHealthHandler(version, sessions, db, features),
	})

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		log.Println("⏹️  Stopping session sweeper...")
		sessions.Stop()
		log.Println("⏹️  Shutting down server...")
		_ = app.Shutdown()
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 InboxCall Backend starting on port %s", cfg.Port)
	log.Printf("📊 Storage: %s", storageType(cfg))
	log.Printf("🌍 Environment: %s", cfg.Environment)
	log.Printf("🔗 Base URL: %s", cfg.BaseURL)
	log.Println("🔧 Features:")
	for name, enabled := range features {
		log.Printf("  %s %s", mark(enabled), name)
	}
	log.Println("========================================")

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}

func storageType(cfg *config.Config) string {
	if cfg.UseMemoryStore {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func mark(enabled bool) string {
	if enabled {
		return "✓"
	}
	return "✗"
}
