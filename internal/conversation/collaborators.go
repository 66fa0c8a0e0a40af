package conversation

import (
	"context"

	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
)

// Classifier maps recognized speech to an Intent.
type Classifier interface {
	Classify(ctx context.Context, text string) (Intent, error)
}

// Ranker fetches the inbox and orders it by descending importance.
type Ranker interface {
	FetchAndRank(ctx context.Context) ([]models.Email, error)
}

// Mailer turns a dictated draft into a reply to target and sends it,
// returning a short spoken confirmation.
type Mailer interface {
	Compose(ctx context.Context, draftText string, target models.Email) (string, error)
}

// Calendar summarizes upcoming events for speech.
type Calendar interface {
	CheckCalendar(ctx context.Context) (string, error)
}

// TaskCreator records a task for the caller.
type TaskCreator interface {
	CreateTask(ctx context.Context, owner, callID, description string) (string, error)
}

// Collaborators bundles everything the machine delegates to. Nil members
// behave as permanently failing.
type Collaborators struct {
	Ranker   Ranker
	Mailer   Mailer
	Calendar Calendar
	Tasks    TaskCreator
}
