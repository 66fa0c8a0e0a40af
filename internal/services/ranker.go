package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
)

// Mailbox lists inbox messages, newest first
type Mailbox interface {
	ListInbox(ctx context.Context, max int) ([]models.Email, error)
}

const (
	maxPromptBody     = 1500
	scoringWorkers    = 4
	defaultInboxLimit = 5
)

var urgentKeywords = []string{
	"urgent", "asap", "important", "deadline", "action required",
	"invoice", "payment", "security", "verify", "expire",
}

const rankPrompt = `Analyze this email and rate how important it is for the recipient to hear about it right now.

From: %s
Subject: %s
Labels: %s
Body:
%s

Respond with JSON only:
{"importance_score": <0-100>, "importance_level": "HIGH" | "MEDIUM" | "LOW", "reasoning": ["short reason", ...]}`

type rankResult struct {
	Score     float64  `json:"importance_score"`
	Level     string   `json:"importance_level"`
	Reasoning []string `json:"reasoning"`
}

// EmailRanker fetches the inbox and orders it by importance
type EmailRanker struct {
	mailbox   Mailbox
	llm       TextGenerator
	maxEmails int
	now       func() time.Time
}

// NewEmailRanker creates a ranker. llm may be nil, in which case every
// email is scored by the keyword rules.
func NewEmailRanker(mailbox Mailbox, llm TextGenerator, maxEmails int) *EmailRanker {
	if maxEmails <= 0 {
		maxEmails = defaultInboxLimit
	}
	return &EmailRanker{
		mailbox:   mailbox,
		llm:       llm,
		maxEmails: maxEmails,
		now:       time.Now,
	}
}

// FetchAndRank returns the inbox sorted by descending importance. Emails
// with equal scores keep their fetch order.
func (r *EmailRanker) FetchAndRank(ctx context.Context) ([]models.Email, error) {
	if r.mailbox == nil {
		return nil, fmt.Errorf("mailbox not configured")
	}

	emails, err := r.mailbox.ListInbox(ctx, r.maxEmails)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	if len(emails) > r.maxEmails {
		emails = emails[:r.maxEmails]
	}

	ranked := make([]models.Email, len(emails))
	copy(ranked, emails)
	fetchedAt := r.now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scoringWorkers)
	for i := range ranked {
		g.Go(func() error {
			r.score(gctx, &ranked[i])
			ranked[i].FetchedAt = fetchedAt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ImportanceScore > ranked[j].ImportanceScore
	})

	log.Printf("📬 Ranked %d emails", len(ranked))
	return ranked, nil
}

// score fills in the importance fields, using the model when possible and
// the keyword rules otherwise.
func (r *EmailRanker) score(ctx context.Context, email *models.Email) {
	if r.llm != nil {
		result, err := r.scoreWithModel(ctx, *email)
		if err == nil {
			email.ImportanceScore = result.Score
			email.ImportanceLevel = result.Level
			email.Reasoning = result.Reasoning
			return
		}
		log.Printf("⚠️  Model scoring failed for email %s, using rules: %v", email.ID, err)
	}

	score, reasons := FallbackScore(*email)
	email.ImportanceScore = score
	email.ImportanceLevel = models.LevelForScore(score)
	email.Reasoning = reasons
}

func (r *EmailRanker) scoreWithModel(ctx context.Context, email models.Email) (rankResult, error) {
	body := models.TruncateText(email.Body, maxPromptBody)

	prompt := fmt.Sprintf(rankPrompt, email.Sender, email.Subject, strings.Join(email.Labels, ", "), body)
	raw, err := r.llm.GenerateText(ctx, prompt, GenerateOptions{Temperature: 0.2, MaxOutputTokens: 300, JSON: true})
	if err != nil {
		return rankResult{}, err
	}

	text, err := extractJSON(raw)
	if err != nil {
		return rankResult{}, err
	}
	var result rankResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return rankResult{}, fmt.Errorf("decode ranking: %w", err)
	}
	if result.Score < 0 || result.Score > 100 {
		return rankResult{}, fmt.Errorf("score %.1f out of range", result.Score)
	}

	result.Level = strings.ToUpper(strings.TrimSpace(result.Level))
	switch result.Level {
	case models.ImportanceHigh, models.ImportanceMedium, models.ImportanceLow:
	default:
		result.Level = models.LevelForScore(result.Score)
	}
	return result, nil
}

// FallbackScore rates an email from its sender, subject and labels.
func FallbackScore(email models.Email) (float64, []string) {
	score := 0.0
	var reasons []string

	sender := strings.ToLower(email.Sender)
	if !strings.Contains(sender, "noreply") && !strings.Contains(sender, "no-reply") {
		score += 20
		reasons = append(reasons, "Sent by a person")
	}

	subject := strings.ToLower(email.Subject)
	for _, keyword := range urgentKeywords {
		if strings.Contains(subject, keyword) {
			score += 30
			reasons = append(reasons, "Subject mentions "+keyword)
			break
		}
	}

	for _, label := range email.Labels {
		switch label {
		case "IMPORTANT":
			score += 25
			reasons = append(reasons, "Marked important")
		case "CATEGORY_PRIMARY":
			score += 15
			reasons = append(reasons, "Primary inbox")
		}
	}

	return score, reasons
}
