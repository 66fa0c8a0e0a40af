package conversation

import (
	"fmt"

	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
)

// EmailQueue holds the ranked emails of one call and the read cursor.
// It never talks to external services.
type EmailQueue struct {
	emails []models.Email
	cursor int
}

func NewEmailQueue() *EmailQueue {
	return &EmailQueue{cursor: -1}
}

// Load replaces the queue and resets the cursor to 0. The emails must
// already be ordered by descending importance score.
func (q *EmailQueue) Load(emails []models.Email) error {
	for i := 1; i < len(emails); i++ {
		if emails[i].ImportanceScore > emails[i-1].ImportanceScore {
			return fmt.Errorf("emails not ranked: %s (%.2f) after %s (%.2f)",
				emails[i].ID, emails[i].ImportanceScore, emails[i-1].ID, emails[i-1].ImportanceScore)
		}
	}

	q.emails = append([]models.Email(nil), emails...)
	q.cursor = 0
	return nil
}

// Current returns the email under the cursor. ok is false when the cursor
// is outside the queue.
func (q *EmailQueue) Current() (email models.Email, ok bool) {
	if q.cursor < 0 || q.cursor >= len(q.emails) {
		return models.Email{}, false
	}
	return q.emails[q.cursor], true
}

// Advance moves the cursor forward and reports whether the queue is now
// exhausted.
func (q *EmailQueue) Advance() (exhausted bool) {
	if q.cursor < 0 {
		return true
	}
	if q.cursor < len(q.emails) {
		q.cursor++
	}
	return q.cursor >= len(q.emails)
}

func (q *EmailQueue) Clear() {
	q.emails = nil
	q.cursor = -1
}

func (q *EmailQueue) Cursor() int { return q.cursor }

func (q *EmailQueue) Len() int { return len(q.emails) }

// Position is the 1-based position of the cursor, for speech.
func (q *EmailQueue) Position() int { return q.cursor + 1 }

