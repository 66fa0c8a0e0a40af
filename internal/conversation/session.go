package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
)

// Mode is the conversation state of a call
type Mode int

const (
	ModeGreeting Mode = iota
	ModeListening
	ModeEmailReading
	ModeDictatingReply
	ModeEnding
)

func (m Mode) String() string {
	switch m {
	case ModeGreeting:
		return "greeting"
	case ModeListening:
		return "listening"
	case ModeEmailReading:
		return "email_reading"
	case ModeDictatingReply:
		return "dictating_reply"
	case ModeEnding:
		return "ending"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Draft is a reply being dictated across one or more turns
type Draft struct {
	ID         string
	Target     models.Email
	Transcript []string
	StartedAt  time.Time
}

func newDraft(target models.Email, now time.Time) *Draft {
	return &Draft{
		ID:        uuid.NewString(),
		Target:    target,
		StartedAt: now,
	}
}

func (d *Draft) Append(text string) {
	text = strings.TrimSpace(text)
	if text != "" {
		d.Transcript = append(d.Transcript, text)
	}
}

func (d *Draft) Text() string {
	return strings.Join(d.Transcript, " ")
}

func (d *Draft) Empty() bool {
	return len(d.Transcript) == 0
}

// Operation names a collaborator call for failure accounting
type Operation string

const (
	OpFetch    Operation = "fetch_emails"
	OpSend     Operation = "send_reply"
	OpCalendar Operation = "check_calendar"
	OpTask     Operation = "create_task"
)

type failureCount struct {
	op    Operation
	count int
}

// CallSession is the dialogue state of one live call. Only the session store
// hands it out, and only to the holder of its per-call lock.
type CallSession struct {
	ID           string
	Caller       string
	Mode         Mode
	Queue        *EmailQueue
	PendingDraft *Draft
	CreatedAt    time.Time
	LastActivity time.Time
	TurnCount    int

	failures failureCount
}

func NewCallSession(id string, now time.Time) *CallSession {
	return &CallSession{
		ID:           id,
		Mode:         ModeGreeting,
		Queue:        NewEmailQueue(),
		CreatedAt:    now,
		LastActivity: now,
	}
}

// ConsecutiveFailures reports the running failure count for op.
func (s *CallSession) ConsecutiveFailures(op Operation) int {
	if s.failures.op != op {
		return 0
	}
	return s.failures.count
}

func (s *CallSession) recordFailure(op Operation) int {
	if s.failures.op != op {
		s.failures = failureCount{op: op}
	}
	s.failures.count++
	return s.failures.count
}

func (s *CallSession) clearFailures() {
	s.failures = failureCount{}
}

// enterListening leaves any reading or dictation behind.
func (s *CallSession) enterListening() {
	s.Mode = ModeListening
	s.Queue.Clear()
	s.PendingDraft = nil
}

func (s *CallSession) end() {
	s.Mode = ModeEnding
	s.Queue.Clear()
	s.PendingDraft = nil
}

// CheckInvariants verifies the draft and cursor rules that must hold after
// every transition.
func (s *CallSession) CheckInvariants() error {
	if (s.PendingDraft != nil) != (s.Mode == ModeDictatingReply) {
		return fmt.Errorf("call %s: pending draft present=%t in mode %s",
			s.ID, s.PendingDraft != nil, s.Mode)
	}
	if s.Mode == ModeEmailReading || s.Mode == ModeDictatingReply {
		if _, ok := s.Queue.Current(); !ok {
			return fmt.Errorf("call %s: cursor %d outside queue of %d in mode %s",
				s.ID, s.Queue.Cursor(), s.Queue.Len(), s.Mode)
		}
	}
	return nil
}
