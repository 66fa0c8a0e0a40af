package conversation

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
)

// Instruction is what the transport should do after a turn
type Instruction struct {
	Prompt          string
	ExpectMoreInput bool
	EndCall         bool
	Mode            Mode
}

// MachineConfig bounds collaborator calls and failure loops
type MachineConfig struct {
	CollaboratorTimeout time.Duration
	MaxFailures         int
	MaxTurns            int
}

// DefaultMachineConfig returns the limits used in production
func DefaultMachineConfig() MachineConfig {
	return MachineConfig{
		CollaboratorTimeout: 15 * time.Second,
		MaxFailures:         3,
		MaxTurns:            200,
	}
}

type transitionKey struct {
	mode   Mode
	intent IntentKind
}

type transitionFunc func(m *Machine, ctx context.Context, s *CallSession, in Intent) Instruction

// transitions is keyed by (state, intent). Pairs missing from the table fall
// through to the per-mode fallback.
var transitions = map[transitionKey]transitionFunc{
	{ModeListening, IntentStartEmailReading}: (*Machine).startReading,
	{ModeListening, IntentCheckCalendar}:     (*Machine).checkCalendar,
	{ModeListening, IntentCreateTask}:        (*Machine).createTask,
	{ModeListening, IntentGoodbye}:           (*Machine).goodbye,
	{ModeListening, IntentUnrecognized}:      (*Machine).reprompt,

	{ModeEmailReading, IntentRespond}: (*Machine).beginReply,
	{ModeEmailReading, IntentNext}:    (*Machine).nextEmail,
	{ModeEmailReading, IntentStop}:    (*Machine).stopReading,
	{ModeEmailReading, IntentGoodbye}: (*Machine).goodbye,

	{ModeDictatingReply, IntentDictationText}:     (*Machine).appendDictation,
	{ModeDictatingReply, IntentStop}:              (*Machine).discardReply,
	{ModeDictatingReply, IntentGoodbye}:           (*Machine).goodbye,
	{ModeDictatingReply, IntentCompleteDictation}: (*Machine).sendReply,
}

var fallbacks = map[Mode]transitionFunc{
	ModeListening:      (*Machine).notReading,
	ModeEmailReading:   (*Machine).readingHint,
	ModeDictatingReply: (*Machine).stillDictating,
}

// Machine decides the next state and prompt for one turn. It keeps no
// per-call state of its own; all effects go through its collaborators.
type Machine struct {
	collab Collaborators
	cfg    MachineConfig
	now    func() time.Time
}

func NewMachine(collab Collaborators, cfg MachineConfig) *Machine {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	return &Machine{
		collab: collab,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Step applies one intent to the session and returns the instruction for
// the transport. The caller must hold the session's lock.
func (m *Machine) Step(ctx context.Context, s *CallSession, in Intent) Instruction {
	if out, done := m.beginTurn(s); done {
		return out
	}

	out := m.step(ctx, s, in)

	if err := s.CheckInvariants(); err != nil {
		log.Printf("❌ Invariant violated after %s: %v", in.Kind, err)
		s.clearFailures()
		s.enterListening()
		out = Instruction{Prompt: PromptApology, ExpectMoreInput: true}
	}
	out.Mode = s.Mode
	return out
}

// beginTurn counts a turn against the session. It reports done when the
// call is over or has run past MaxTurns, with the farewell to speak.
func (m *Machine) beginTurn(s *CallSession) (Instruction, bool) {
	s.TurnCount++
	s.LastActivity = m.now()

	if s.Mode == ModeEnding {
		out := farewell(PromptFarewell)
		out.Mode = s.Mode
		return out, true
	}
	if m.cfg.MaxTurns > 0 && s.TurnCount > m.cfg.MaxTurns {
		log.Printf("⚠️  Call %s exceeded %d turns, ending", s.ID, m.cfg.MaxTurns)
		s.end()
		out := farewell(PromptRunaway)
		out.Mode = s.Mode
		return out, true
	}
	return Instruction{}, false
}

func (m *Machine) step(ctx context.Context, s *CallSession, in Intent) Instruction {
	if s.Mode != ModeGreeting {
		return m.dispatch(ctx, s, in)
	}

	// The greeting is spoken once, then the intent is handled as if the
	// call had been listening all along.
	s.Mode = ModeListening
	if in.Kind == IntentUnrecognized && in.Text == "" {
		return listen(PromptGreeting)
	}
	out := m.dispatch(ctx, s, in)
	out.Prompt = PromptGreeting + " " + out.Prompt
	return out
}

func (m *Machine) dispatch(ctx context.Context, s *CallSession, in Intent) Instruction {
	if fn, ok := transitions[transitionKey{s.Mode, in.Kind}]; ok {
		return fn(m, ctx, s, in)
	}
	if fn, ok := fallbacks[s.Mode]; ok {
		return fn(m, ctx, s, in)
	}
	return listen(PromptReprompt)
}

// ReadCurrent repeats the email under the cursor without changing state.
// It counts as a turn, so a caller who never answers still reaches
// MaxTurns.
func (m *Machine) ReadCurrent(s *CallSession) Instruction {
	if out, done := m.beginTurn(s); done {
		return out
	}

	switch s.Mode {
	case ModeEmailReading:
		return Instruction{Prompt: m.currentEmailPrompt(s), ExpectMoreInput: true, Mode: s.Mode}
	case ModeDictatingReply:
		return Instruction{Prompt: PromptStillDictating, ExpectMoreInput: true, Mode: s.Mode}
	default:
		return Instruction{Prompt: "No more emails to read. " + PromptAnythingElse, ExpectMoreInput: true, Mode: s.Mode}
	}
}

// Listening

func (m *Machine) startReading(ctx context.Context, s *CallSession, _ Intent) Instruction {
	emails, err := callWithTimeout(ctx, m.cfg.CollaboratorTimeout, func(ctx context.Context) ([]models.Email, error) {
		if m.collab.Ranker == nil {
			return nil, errors.New("ranker not configured")
		}
		return m.collab.Ranker.FetchAndRank(ctx)
	})
	if err == nil {
		err = s.Queue.Load(emails)
	}
	if err != nil {
		return m.failed(s, OpFetch, &FetchError{Err: err}, PromptFetchRetry)
	}
	s.clearFailures()

	if len(emails) == 0 {
		s.enterListening()
		return listen(PromptInboxEmpty)
	}

	s.Mode = ModeEmailReading
	return listen(PromptReadingIntro(len(emails)) + " " + m.currentEmailPrompt(s))
}

func (m *Machine) checkCalendar(ctx context.Context, s *CallSession, _ Intent) Instruction {
	summary, err := callWithTimeout(ctx, m.cfg.CollaboratorTimeout, func(ctx context.Context) (string, error) {
		if m.collab.Calendar == nil {
			return "", errors.New("calendar not configured")
		}
		return m.collab.Calendar.CheckCalendar(ctx)
	})
	if err != nil {
		return m.failed(s, OpCalendar, &CollaboratorError{Op: OpCalendar, Err: err}, PromptCalendarRetry)
	}
	s.clearFailures()
	return listen(summary + " " + PromptAnythingElse)
}

func (m *Machine) createTask(ctx context.Context, s *CallSession, in Intent) Instruction {
	description := TaskDescription(in.Text)
	if description == "" {
		return listen(PromptTaskNeedsDetail)
	}

	confirmation, err := callWithTimeout(ctx, m.cfg.CollaboratorTimeout, func(ctx context.Context) (string, error) {
		if m.collab.Tasks == nil {
			return "", errors.New("task store not configured")
		}
		return m.collab.Tasks.CreateTask(ctx, s.Caller, s.ID, description)
	})
	if err != nil {
		return m.failed(s, OpTask, &CollaboratorError{Op: OpTask, Err: err}, PromptTaskRetry)
	}
	s.clearFailures()
	return listen(PromptTaskCreated(confirmation))
}

func (m *Machine) goodbye(_ context.Context, s *CallSession, _ Intent) Instruction {
	s.end()
	return farewell(PromptFarewell)
}

func (m *Machine) reprompt(_ context.Context, _ *CallSession, _ Intent) Instruction {
	return listen(PromptReprompt)
}

func (m *Machine) notReading(_ context.Context, _ *CallSession, _ Intent) Instruction {
	return listen(PromptNotReading)
}

// EmailReading

func (m *Machine) beginReply(_ context.Context, s *CallSession, _ Intent) Instruction {
	target, ok := s.Queue.Current()
	if !ok {
		s.enterListening()
		return listen(PromptNoEmailSelected)
	}
	s.PendingDraft = newDraft(target, m.now())
	s.Mode = ModeDictatingReply
	return listen(PromptDictate(target))
}

func (m *Machine) nextEmail(_ context.Context, s *CallSession, _ Intent) Instruction {
	if exhausted := s.Queue.Advance(); exhausted {
		s.enterListening()
		return listen(PromptNoMoreEmails)
	}
	return listen(m.currentEmailPrompt(s))
}

func (m *Machine) stopReading(_ context.Context, s *CallSession, _ Intent) Instruction {
	s.enterListening()
	return listen(PromptStoppedReading)
}

func (m *Machine) readingHint(_ context.Context, _ *CallSession, _ Intent) Instruction {
	return listen("I'll wait here. " + PromptReadingHint)
}

// DictatingReply. None of these move the queue cursor, so reading resumes
// at the same email whatever happens to the reply.

func (m *Machine) appendDictation(_ context.Context, s *CallSession, in Intent) Instruction {
	s.PendingDraft.Append(in.Text)
	return listen(PromptContinueDictate)
}

func (m *Machine) discardReply(_ context.Context, s *CallSession, _ Intent) Instruction {
	s.PendingDraft = nil
	s.clearFailures()
	s.Mode = ModeEmailReading
	return listen(PromptDraftDiscarded)
}

func (m *Machine) stillDictating(_ context.Context, _ *CallSession, _ Intent) Instruction {
	return listen(PromptStillDictating)
}

func (m *Machine) sendReply(ctx context.Context, s *CallSession, in Intent) Instruction {
	draft := s.PendingDraft
	draft.Append(in.Text)
	if draft.Empty() {
		return listen(PromptEmptyDraft)
	}

	confirmation, err := callWithTimeout(ctx, m.cfg.CollaboratorTimeout, func(ctx context.Context) (string, error) {
		if m.collab.Mailer == nil {
			return "", errors.New("mailer not configured")
		}
		return m.collab.Mailer.Compose(ctx, draft.Text(), draft.Target)
	})
	if err != nil {
		return m.failed(s, OpSend, &SendError{EmailID: draft.Target.ID, Err: err}, PromptSendRetry)
	}
	s.clearFailures()

	log.Printf("✅ Reply %s sent for email %s on call %s", draft.ID, draft.Target.ID, s.ID)
	s.PendingDraft = nil
	s.Mode = ModeEmailReading
	return listen(PromptReplySent(confirmation))
}

// failed keeps the session where it is and asks the caller to retry, until
// MaxFailures consecutive failures of op force it back to Listening.
func (m *Machine) failed(s *CallSession, op Operation, err error, retryPrompt string) Instruction {
	count := s.recordFailure(op)
	log.Printf("❌ Call %s: %v (attempt %d/%d)", s.ID, err, count, m.cfg.MaxFailures)

	if count >= m.cfg.MaxFailures {
		s.clearFailures()
		s.enterListening()
		return listen(PromptApology)
	}
	return listen(retryPrompt)
}

func (m *Machine) currentEmailPrompt(s *CallSession) string {
	email, ok := s.Queue.Current()
	if !ok {
		return PromptNoMoreEmails
	}
	return PromptReadEmail(email, s.Queue.Position(), s.Queue.Len())
}

func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

func listen(prompt string) Instruction {
	return Instruction{Prompt: prompt, ExpectMoreInput: true}
}

func farewell(prompt string) Instruction {
	return Instruction{Prompt: prompt, EndCall: true}
}

var taskCommandPattern = regexp.MustCompile(`(?i)^\s*(please\s+)?((can|could) you\s+)?(remind me|(create|add|make|set|new)?\s*(a\s+|an\s+|the\s+)?(new\s+)?(task|todo|to-do|reminder)s?)\b\s*((to|for|that)\b|:)?\s*`)

// IsTaskCommand reports whether text opens with a task command such as
// "add a task" or "remind me", whatever the rest of the sentence says.
func IsTaskCommand(text string) bool {
	return taskCommandPattern.MatchString(text)
}

// TaskDescription strips command words such as "add a task to" from an
// utterance, leaving the task itself.
func TaskDescription(text string) string {
	desc := taskCommandPattern.ReplaceAllString(text, "")
	desc = strings.TrimSpace(strings.TrimRight(desc, ".!? "))
	if desc == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(desc)
	return string(unicode.ToUpper(first)) + desc[size:]
}
