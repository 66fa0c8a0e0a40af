package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"

	"github.com/Ananth-NQI/inboxcall-backend/internal/config"
)

// TextGenerator produces model text from a prompt
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GenerateOptions tunes a single generation call
type GenerateOptions struct {
	Temperature     float32
	MaxOutputTokens int32
	JSON            bool
}

// GeminiClient wraps the Gemini models API
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient connects with an API key when one is set and falls back
// to Vertex AI with the configured project.
func NewGeminiClient(ctx context.Context, cfg *config.Config) (*GeminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.GeminiAPIKey == "" {
		if cfg.GoogleProjectID == "" {
			return nil, fmt.Errorf("missing GEMINI_API_KEY or GOOGLE_PROJECT_ID")
		}
		cc = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  cfg.GoogleProjectID,
			Location: cfg.GoogleLocation,
		}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Printf("✅ Gemini client ready (model %s)", cfg.GeminiModel)
	return &GeminiClient{client: client, model: cfg.GeminiModel}, nil
}

// GenerateText runs one prompt and returns the response text
func (g *GeminiClient) GenerateText(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(opts.Temperature),
	}
	if opts.MaxOutputTokens > 0 {
		gc.MaxOutputTokens = opts.MaxOutputTokens
	}
	if opts.JSON {
		gc.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), gc)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}

// extractJSON pulls the first JSON object out of model output that may be
// wrapped in markdown fences or prose.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return text[start : end+1], nil
}
