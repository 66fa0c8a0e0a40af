package conversation

import (
	"context"
	"errors"
	"sync"

	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
)

var errBoom = errors.New("boom")

type fakeRanker struct {
	mu     sync.Mutex
	emails []models.Email
	errs   []error
	calls  int
}

func (f *fakeRanker) FetchAndRank(ctx context.Context) ([]models.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.emails, nil
}

type sentReply struct {
	text   string
	target models.Email
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []sentReply
}

func (f *fakeMailer) Compose(ctx context.Context, draftText string, target models.Email) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentReply{text: draftText, target: target})
	return "Your reply to " + SpeakableSender(target.Sender) + " was sent.", nil
}

type fakeCalendar struct {
	summary string
	err     error
}

func (f *fakeCalendar) CheckCalendar(ctx context.Context) (string, error) {
	return f.summary, f.err
}

type fakeTasks struct {
	created []string
	err     error
}

func (f *fakeTasks) CreateTask(ctx context.Context, owner, callID, description string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, description)
	return "I added the task: " + description + ".", nil
}

func testEmails() []models.Email {
	return []models.Email{
		{ID: "a", Sender: "Alice <alice@example.com>", Subject: "Contract", Body: "Please sign.", ImportanceScore: 0.9},
		{ID: "b", Sender: "bob@example.com", Subject: "Lunch", Body: "Tacos?", ImportanceScore: 0.3},
	}
}
