package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Ananth-NQI/inboxcall-backend/internal/conversation"
)

type keywordRule struct {
	kind    conversation.IntentKind
	pattern *regexp.Regexp
}

// Rules are checked in order, so "stop reading emails" is a stop and
// "next email" is a next.
var keywordRules = []keywordRule{
	{conversation.IntentGoodbye, regexp.MustCompile(`(?i)\b(good ?bye|bye|hang up|that'?s all|that is all)\b`)},
	{conversation.IntentStop, regexp.MustCompile(`(?i)\b(stop|enough|cancel|quit)\b`)},
	{conversation.IntentRespond, regexp.MustCompile(`(?i)\b(respond|reply|answer)\b`)},
	{conversation.IntentNext, regexp.MustCompile(`(?i)\b(next|skip)\b`)},
	{conversation.IntentCheckCalendar, regexp.MustCompile(`(?i)\b(calendar|schedule|appointments?|meetings?)\b`)},
	{conversation.IntentCreateTask, regexp.MustCompile(`(?i)\b(tasks?|todo|to-do|remind(er)?)\b`)},
	{conversation.IntentStartEmailReading, regexp.MustCompile(`(?i)\b(e-?mails?|inbox|messages?)\b`)},
}

// KeywordClassifier matches fixed phrases. It never fails.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(_ context.Context, text string) (conversation.Intent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return conversation.Unrecognized(""), nil
	}
	// The task itself may mention any other keyword.
	if conversation.IsTaskCommand(text) {
		return conversation.NewIntent(conversation.IntentCreateTask, text), nil
	}
	for _, rule := range keywordRules {
		if rule.pattern.MatchString(text) {
			return conversation.NewIntent(rule.kind, text), nil
		}
	}
	return conversation.Unrecognized(text), nil
}

const classifyPrompt = `You route requests for a phone-based email assistant.
Classify the caller's words into exactly one intent:
- start_email_reading: wants their emails read
- respond: wants to reply to the current email
- next: wants the next email
- stop: wants to stop what is happening
- check_calendar: asks about their calendar or schedule
- create_task: wants a task or reminder saved
- goodbye: wants to end the call
- unrecognized: none of the above

Caller said: %q

Respond with JSON only: {"intent": "<one of the labels above>"}`

// GeminiClassifier asks the language model for one intent label
type GeminiClassifier struct {
	llm TextGenerator
}

func NewGeminiClassifier(llm TextGenerator) *GeminiClassifier {
	return &GeminiClassifier{llm: llm}
}

func (g *GeminiClassifier) Classify(ctx context.Context, text string) (conversation.Intent, error) {
	raw, err := g.llm.GenerateText(ctx, fmt.Sprintf(classifyPrompt, text), GenerateOptions{
		Temperature:     0,
		MaxOutputTokens: 50,
		JSON:            true,
	})
	if err != nil {
		return conversation.Intent{}, err
	}

	body, err := extractJSON(raw)
	if err != nil {
		return conversation.Intent{}, err
	}
	var result struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return conversation.Intent{}, fmt.Errorf("decode intent: %w", err)
	}

	if strings.EqualFold(strings.TrimSpace(result.Intent), conversation.IntentUnrecognized.String()) {
		return conversation.Unrecognized(text), nil
	}
	kind, ok := conversation.ParseIntentKind(result.Intent)
	if !ok {
		return conversation.Intent{}, fmt.Errorf("unknown intent label %q", result.Intent)
	}
	return conversation.NewIntent(kind, text), nil
}

// HybridClassifier tries the keyword rules first and only asks the model
// when none match. Model may be nil.
type HybridClassifier struct {
	Rules KeywordClassifier
	Model conversation.Classifier
}

func (h *HybridClassifier) Classify(ctx context.Context, text string) (conversation.Intent, error) {
	in, _ := h.Rules.Classify(ctx, text)
	if in.Kind != conversation.IntentUnrecognized || in.Text == "" || h.Model == nil {
		return in, nil
	}
	return h.Model.Classify(ctx, text)
}
