// Package config reads service settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Ananth-NQI/inboxcall-backend/internal/conversation"
)

// Config holds the service configuration.
type Config struct {
	// Server
	Port                     string
	BaseURL                  string
	Environment              string
	DisableWebhookValidation bool

	// Twilio
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioNumber     string
	Voice            string
	Language         string

	// Google
	GeminiAPIKey          string
	GoogleProjectID       string
	GoogleLocation        string
	GeminiModel           string
	GoogleCredentialsPath string
	GoogleTokenPath       string
	MaxEmails             int

	// Sessions
	SessionIdleTimeout     time.Duration
	SessionSweepInterval   time.Duration
	CollaboratorTimeout    time.Duration
	MaxTurns               int
	MaxConsecutiveFailures int

	// Storage
	UseMemoryStore         bool
	DBUser                 string
	DBPass                 string
	DBName                 string
	DBHost                 string
	InstanceConnectionName string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:                     getEnv("PORT", "8080"),
		BaseURL:                  strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		Environment:              getEnv("ENVIRONMENT", "development"),
		DisableWebhookValidation: getEnvBool("DISABLE_WEBHOOK_VALIDATION", false),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioNumber:     os.Getenv("TWILIO_NUMBER"),
		Voice:            getEnv("TWILIO_VOICE", "alice"),
		Language:         getEnv("TWILIO_LANGUAGE", "en-US"),

		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GoogleProjectID:       os.Getenv("GOOGLE_PROJECT_ID"),
		GoogleLocation:        getEnv("GOOGLE_LOCATION", "us-central1"),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GoogleCredentialsPath: getEnv("GOOGLE_CREDENTIALS_PATH", "credentials.json"),
		GoogleTokenPath:       getEnv("GOOGLE_TOKEN_PATH", "token.json"),
		MaxEmails:             getEnvInt("MAX_EMAILS", 5),

		SessionIdleTimeout:     time.Duration(getEnvInt("SESSION_IDLE_TIMEOUT_MS", 1800000)) * time.Millisecond,
		SessionSweepInterval:   time.Duration(getEnvInt("SESSION_SWEEP_INTERVAL_MS", 60000)) * time.Millisecond,
		CollaboratorTimeout:    time.Duration(getEnvInt("COLLABORATOR_TIMEOUT_MS", 15000)) * time.Millisecond,
		MaxTurns:               getEnvInt("MAX_TURNS", 200),
		MaxConsecutiveFailures: getEnvInt("MAX_CONSECUTIVE_FAILURES", 3),

		UseMemoryStore:         getEnvBool("USE_MEMORY_STORE", false),
		DBUser:                 getEnv("DB_USER", "postgres"),
		DBPass:                 os.Getenv("DB_PASS"),
		DBName:                 getEnv("DB_NAME", "inboxcall"),
		DBHost:                 getEnv("DB_HOST", "localhost"),
		InstanceConnectionName: os.Getenv("INSTANCE_CONNECTION_NAME"),
	}
}

// MachineConfig returns the conversation limits.
func (c *Config) MachineConfig() conversation.MachineConfig {
	return conversation.MachineConfig{
		CollaboratorTimeout: c.CollaboratorTimeout,
		MaxFailures:         c.MaxConsecutiveFailures,
		MaxTurns:            c.MaxTurns,
	}
}

// TwilioConfigured reports whether outbound calls and signature checks can work.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioNumber != ""
}

// GeminiConfigured reports whether a language model backend is available.
func (c *Config) GeminiConfigured() bool {
	return c.GeminiAPIKey != "" || c.GoogleProjectID != ""
}

// ValidateWebhooks is false in development or when explicitly disabled,
// so ngrok tunnels work.
func (c *Config) ValidateWebhooks() bool {
	return c.Environment != "development" && !c.DisableWebhookValidation
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
