package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Ananth-NQI/inboxcall-backend/internal/conversation"
	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
	"github.com/Ananth-NQI/inboxcall-backend/internal/storage"
)

var errBoom = errors.New("boom")

// fakeGenerator answers prompts containing a key with a canned response
type fakeGenerator struct {
	mu        sync.Mutex
	responses map[string]string
	fallback  string
	err       error
	prompts   []string
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	for key, resp := range f.responses {
		if strings.Contains(prompt, key) {
			return resp, nil
		}
	}
	return f.fallback, nil
}

type fakeMailbox struct {
	emails []models.Email
	err    error
	max    int
}

func (f *fakeMailbox) ListInbox(ctx context.Context, max int) ([]models.Email, error) {
	f.max = max
	return f.emails, f.err
}

type fakeSender struct {
	sent []OutgoingReply
	err  error
}

func (f *fakeSender) SendReply(ctx context.Context, reply OutgoingReply) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, reply)
	return nil
}

type fakeEvents struct {
	events   []CalendarEvent
	err      error
	from, to time.Time
}

func (f *fakeEvents) UpcomingEvents(ctx context.Context, from, to time.Time, max int) ([]CalendarEvent, error) {
	f.from, f.to = from, to
	return f.events, f.err
}

type fakeClassifier struct {
	kinds map[string]conversation.IntentKind
	err   error
	calls int
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (conversation.Intent, error) {
	f.calls++
	if f.err != nil {
		return conversation.Intent{}, f.err
	}
	if kind, ok := f.kinds[strings.ToLower(text)]; ok {
		return conversation.NewIntent(kind, text), nil
	}
	return conversation.Unrecognized(text), nil
}

type blockingClassifier struct{}

func (blockingClassifier) Classify(ctx context.Context, text string) (conversation.Intent, error) {
	<-ctx.Done()
	return conversation.Intent{}, ctx.Err()
}

type stubRanker struct {
	emails []models.Email
	err    error
}

func (s *stubRanker) FetchAndRank(ctx context.Context) ([]models.Email, error) {
	return s.emails, s.err
}

type recordingMailer struct {
	drafts []string
	err    error
}

func (r *recordingMailer) Compose(ctx context.Context, draftText string, target models.Email) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.drafts = append(r.drafts, draftText)
	return "Your reply to " + conversation.SpeakableSender(target.Sender) + " has been sent.", nil
}

func rankedEmails() []models.Email {
	return []models.Email{
		{ID: "m1", ThreadID: "t1", Sender: "Alice <alice@example.com>", Subject: "Contract", Body: "Please sign today.", ImportanceScore: 80, ImportanceLevel: models.ImportanceHigh},
		{ID: "m2", ThreadID: "t2", Sender: "bob@example.com", Subject: "Lunch", Body: "Tacos?", ImportanceScore: 20, ImportanceLevel: models.ImportanceLow},
	}
}

func newTestStore() storage.Store {
	return storage.NewMemoryStore()
}
