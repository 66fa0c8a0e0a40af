package conversation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
)

const (
	PromptGreeting = "Hello! I'm your personal email assistant. How can I help you today? " +
		"You can ask me to read your emails, check your calendar, or manage tasks."
	PromptReprompt        = "Sorry, I didn't catch that. You can ask me to read your emails, check your calendar, or add a task."
	PromptAnythingElse    = "Is there anything else I can help you with?"
	PromptNotReading      = "I'm not reading any emails right now. Say read my emails to start."
	PromptReadingHint     = "Say respond to reply, next for the next email, or stop to finish."
	PromptInboxEmpty      = "Your inbox is empty. " + PromptAnythingElse
	PromptNoMoreEmails    = "That's all your emails! " + PromptAnythingElse
	PromptStoppedReading  = "Okay, I've stopped reading emails. " + PromptAnythingElse
	PromptContinueDictate = "Got it. Keep going, or say done when you're finished."
	PromptStillDictating  = "I'm taking down your reply. Keep talking, say done to send it, or cancel to discard it."
	PromptEmptyDraft      = "I haven't heard your reply yet. What would you like me to say?"
	PromptDraftDiscarded  = "Okay, I discarded that reply. " + PromptReadingHint
	PromptFetchRetry      = "I had trouble reaching your email. Want me to try again? Say read my emails to retry, or ask for something else."
	PromptSendRetry       = "I had trouble sending that reply. Say done to try again, or cancel to skip it."
	PromptCalendarRetry   = "I couldn't reach your calendar. Say check my calendar to try again, or ask for something else."
	PromptTaskRetry       = "I couldn't save that task. Say it again to retry, or ask for something else."
	PromptTaskNeedsDetail = "Tell me the task in one sentence, for example: add a task to call the bank."
	PromptApology         = "I'm sorry, that isn't working right now. Let's move on. " + PromptAnythingElse
	PromptFarewell        = "You're welcome! Have a great day. Goodbye!"
	PromptRunaway         = "We've been talking for a while, so I'm going to end the call here. Goodbye!"
	PromptNoEmailSelected = "I lost track of which email you were on. " + PromptAnythingElse
	PromptSessionRestart  = "I'm sorry, I lost our conversation. Let me restart."
	PromptNoInputGreeting = "I didn't hear anything. Please let me know how I can help you."
	PromptNoInputReading  = PromptReadingHint
)

const maxSpokenBody = 500

var addressPattern = regexp.MustCompile(`\s*<[^>]+>`)

// SpeakableSender drops the address part of "Name <addr>" senders.
func SpeakableSender(sender string) string {
	name := strings.Trim(addressPattern.ReplaceAllString(sender, ""), `" `)
	if name == "" {
		return strings.Trim(sender, "<> ")
	}
	return name
}

// PromptReadEmail is the spoken text for the email at position of total.
func PromptReadEmail(email models.Email, position, total int) string {
	body := strings.Join(strings.Fields(email.Body), " ")
	if short := models.TruncateText(body, maxSpokenBody); short != body {
		body = short + "..."
	}
	if body == "" {
		body = email.Snippet
	}

	level := strings.ToLower(email.ImportanceLevel)
	if level == "" {
		level = strings.ToLower(models.LevelForScore(email.ImportanceScore))
	}

	return fmt.Sprintf("Email %d of %d. From %s. Subject: %s. %s. This email has %s priority. %s",
		position, total, SpeakableSender(email.Sender), email.Subject, body, level, PromptReadingHint)
}

func PromptReadingIntro(total int) string {
	if total == 1 {
		return "Sure! You have 1 email. You can say respond during any email to reply to it."
	}
	return fmt.Sprintf("Sure! I found %d emails, most important first. You can say respond during any email to reply to it.", total)
}

func PromptDictate(target models.Email) string {
	return fmt.Sprintf("What would you like me to say to %s? Say done when you're finished.",
		SpeakableSender(target.Sender))
}

func PromptReplySent(confirmation string) string {
	if confirmation == "" {
		confirmation = "Your reply was sent."
	}
	return confirmation + " " + PromptReadingHint
}

func PromptTaskCreated(confirmation string) string {
	return confirmation + " " + PromptAnythingElse
}
