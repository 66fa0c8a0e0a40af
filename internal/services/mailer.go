package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Ananth-NQI/inboxcall-backend/internal/conversation"
	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
)

// OutgoingReply is a reply ready to be delivered in the original thread
type OutgoingReply struct {
	To         string
	Subject    string
	Body       string
	ThreadID   string
	InReplyTo  string
	References string
}

// MailSender delivers a composed reply
type MailSender interface {
	SendReply(ctx context.Context, reply OutgoingReply) error
}

const composePrompt = `You are writing an email reply on behalf of a busy person who dictated it over the phone.

Original email:
From: %s
Subject: %s
Body:
%s

What they dictated:
%s

Write a concise, polite reply that says what they dictated. Keep their meaning and do not invent facts.
Return only the reply body, with no subject line and no placeholders.`

// ReplyMailer turns dictation into a reply and sends it
type ReplyMailer struct {
	sender MailSender
	llm    TextGenerator
}

// NewReplyMailer creates a mailer. Without llm the dictation is sent as is.
func NewReplyMailer(sender MailSender, llm TextGenerator) *ReplyMailer {
	return &ReplyMailer{sender: sender, llm: llm}
}

// Compose writes and sends the reply, returning a spoken confirmation.
func (m *ReplyMailer) Compose(ctx context.Context, draftText string, target models.Email) (string, error) {
	if m.sender == nil {
		return "", fmt.Errorf("mail sender not configured")
	}
	draftText = strings.TrimSpace(draftText)
	if draftText == "" {
		return "", fmt.Errorf("empty draft")
	}

	body := draftText
	if m.llm != nil {
		composed, err := m.compose(ctx, draftText, target)
		if err != nil {
			log.Printf("⚠️  Reply composition failed, sending dictation as is: %v", err)
		} else {
			body = composed
		}
	}

	reply := BuildReply(target, body)
	if err := m.sender.SendReply(ctx, reply); err != nil {
		return "", fmt.Errorf("deliver reply: %w", err)
	}

	log.Printf("📤 Reply sent to %s (%s)", reply.To, reply.Subject)
	return fmt.Sprintf("Your reply to %s has been sent.", conversation.SpeakableSender(target.Sender)), nil
}

func (m *ReplyMailer) compose(ctx context.Context, draftText string, target models.Email) (string, error) {
	original := models.TruncateText(target.Body, maxPromptBody)
	prompt := fmt.Sprintf(composePrompt, target.Sender, target.Subject, original, draftText)
	return m.llm.GenerateText(ctx, prompt, GenerateOptions{Temperature: 0.4, MaxOutputTokens: 500})
}

// BuildReply addresses body back to the sender of target in the same thread
func BuildReply(target models.Email, body string) OutgoingReply {
	subject := strings.TrimSpace(target.Subject)
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	return OutgoingReply{
		To:         target.Sender,
		Subject:    subject,
		Body:       body,
		ThreadID:   target.ThreadID,
		InReplyTo:  target.MessageIDHeader,
		References: target.MessageIDHeader,
	}
}
