package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/Ananth-NQI/inboxcall-backend/internal/config"
	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
)

const gmailUser = "me"

// GoogleWorkspace reads and sends Gmail and reads the primary calendar
// for the single account that authorized token.json.
type GoogleWorkspace struct {
	gmail    *gmail.Service
	calendar *calendar.Service
}

// NewGoogleWorkspace authorizes with the OAuth client credentials and a
// previously saved token.
func NewGoogleWorkspace(ctx context.Context, cfg *config.Config) (*GoogleWorkspace, error) {
	credentials, err := os.ReadFile(cfg.GoogleCredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(credentials,
		gmail.GmailReadonlyScope, gmail.GmailSendScope, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	token, err := loadToken(cfg.GoogleTokenPath)
	if err != nil {
		return nil, err
	}

	httpClient := oauthCfg.Client(ctx, token)

	gmailSvc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	calendarSvc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	log.Println("✅ Google Workspace services initialized")
	return &GoogleWorkspace{gmail: gmailSvc, calendar: calendarSvc}, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return token, nil
}

// ListInbox fetches the newest INBOX messages
func (g *GoogleWorkspace) ListInbox(ctx context.Context, max int) ([]models.Email, error) {
	list, err := g.gmail.Users.Messages.List(gmailUser).
		LabelIds("INBOX").
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	emails := make([]models.Email, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := g.gmail.Users.Messages.Get(gmailUser, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			log.Printf("⚠️  Skipping message %s: %v", ref.Id, err)
			continue
		}
		emails = append(emails, emailFromMessage(msg))
	}
	return emails, nil
}

// SendReply delivers reply in its original thread
func (g *GoogleWorkspace) SendReply(ctx context.Context, reply OutgoingReply) error {
	msg := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(BuildRawMessage(reply)),
		ThreadId: reply.ThreadID,
	}
	sent, err := g.gmail.Users.Messages.Send(gmailUser, msg).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	log.Printf("✅ Gmail message sent! ID: %s", sent.Id)
	return nil
}

// UpcomingEvents lists single events on the primary calendar
func (g *GoogleWorkspace) UpcomingEvents(ctx context.Context, from, to time.Time, max int) ([]CalendarEvent, error) {
	events, err := g.calendar.Events.List("primary").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	result := make([]CalendarEvent, 0, len(events.Items))
	for _, item := range events.Items {
		ev := CalendarEvent{Summary: item.Summary, Location: item.Location}
		if item.Start != nil {
			if item.Start.DateTime != "" {
				ev.Start, _ = time.Parse(time.RFC3339, item.Start.DateTime)
			} else if item.Start.Date != "" {
				ev.Start, _ = time.ParseInLocation("2006-01-02", item.Start.Date, from.Location())
				ev.AllDay = true
			}
		}
		result = append(result, ev)
	}
	return result, nil
}

func emailFromMessage(msg *gmail.Message) models.Email {
	email := models.Email{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  html.UnescapeString(msg.Snippet),
		Labels:   msg.LabelIds,
	}
	if msg.Payload == nil {
		return email
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			email.Subject = h.Value
		case "from":
			email.Sender = h.Value
		case "date":
			email.Date = h.Value
		case "message-id":
			email.MessageIDHeader = h.Value
		}
	}

	body := findPart(msg.Payload, "text/plain")
	if body == "" {
		body = StripHTML(findPart(msg.Payload, "text/html"))
	}
	if body == "" {
		body = email.Snippet
	}
	email.Body = strings.TrimSpace(body)
	return email
}

// findPart returns the first decoded body of mimeType in a message tree
func findPart(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		if decoded, err := decodeBody(part.Body.Data); err == nil {
			return decoded
		}
	}
	for _, child := range part.Parts {
		if body := findPart(child, mimeType); body != "" {
			return body
		}
	}
	return ""
}

func decodeBody(data string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	}
	return string(decoded), err
}

var (
	scriptPattern = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagPattern    = regexp.MustCompile(`<[^>]+>`)
)

// StripHTML reduces an HTML body to readable text
func StripHTML(s string) string {
	s = scriptPattern.ReplaceAllString(s, " ")
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// BuildRawMessage renders reply as an RFC 2822 message
func BuildRawMessage(reply OutgoingReply) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", reply.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", reply.Subject)
	if reply.InReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", reply.InReplyTo)
	}
	if reply.References != "" {
		fmt.Fprintf(&b, "References: %s\r\n", reply.References)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(reply.Body)
	return []byte(b.String())
}
