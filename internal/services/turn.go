package services

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/Ananth-NQI/inboxcall-backend/internal/conversation"
)

// Signal is the kind of inbound turn
type Signal string

const (
	SignalSpeech Signal = "SPEECH"
	SignalDigits Signal = "DIGITS"
	SignalHangup Signal = "HANGUP"
)

// Turn is one inbound webhook for a call
type Turn struct {
	CallID string
	Caller string
	Speech string
	Digits string
	Signal Signal
}

// keypadIntents lets callers drive the menu without speech
var keypadIntents = map[string]conversation.IntentKind{
	"1": conversation.IntentStartEmailReading,
	"2": conversation.IntentRespond,
	"3": conversation.IntentNext,
	"4": conversation.IntentStop,
	"5": conversation.IntentCheckCalendar,
	"0": conversation.IntentGoodbye,
}

// TurnAdapter routes one inbound turn through the classifier and the
// conversation machine, holding the call's session lock throughout.
type TurnAdapter struct {
	sessions        *SessionManager
	machine         *conversation.Machine
	classifier      conversation.Classifier
	classifyTimeout time.Duration
}

func NewTurnAdapter(sessions *SessionManager, machine *conversation.Machine,
	classifier conversation.Classifier, classifyTimeout time.Duration) *TurnAdapter {
	return &TurnAdapter{
		sessions:        sessions,
		machine:         machine,
		classifier:      classifier,
		classifyTimeout: classifyTimeout,
	}
}

// HandleTurn processes one turn. Only a MalformedTurnError is returned as an
// error; every other failure is already a spoken prompt in the instruction.
func (ta *TurnAdapter) HandleTurn(ctx context.Context, t Turn) (conversation.Instruction, error) {
	t.CallID = strings.TrimSpace(t.CallID)
	if t.CallID == "" {
		return conversation.Instruction{}, &conversation.MalformedTurnError{Reason: "missing call identifier"}
	}

	switch t.Signal {
	case SignalHangup:
		return ta.hangup(ctx, t.CallID)
	case SignalSpeech, SignalDigits:
	default:
		return conversation.Instruction{}, &conversation.MalformedTurnError{Reason: "unknown signal " + string(t.Signal)}
	}

	var out conversation.Instruction
	err := ta.sessions.WithSession(ctx, t.CallID, true, func(s *conversation.CallSession, created bool) error {
		if created {
			s.Caller = t.Caller
		}
		in := ta.intentFor(ctx, s, t)
		out = ta.machine.Step(ctx, s, in)
		log.Printf("🗣️  Call %s: %s -> %s", t.CallID, in, out.Mode)
		if out.EndCall {
			ta.sessions.Remove(t.CallID)
		}
		return nil
	})
	if err != nil {
		// Only a cancelled request context gets here.
		log.Printf("❌ Turn for call %s abandoned: %v", t.CallID, err)
		return conversation.Instruction{Prompt: conversation.PromptApology, ExpectMoreInput: true}, nil
	}
	return out, nil
}

// hangup ends the call's session as an implicit Goodbye. A call with no
// session has nothing to clean up.
func (ta *TurnAdapter) hangup(ctx context.Context, callID string) (conversation.Instruction, error) {
	out := conversation.Instruction{Prompt: conversation.PromptFarewell, EndCall: true, Mode: conversation.ModeEnding}
	err := ta.sessions.WithSession(ctx, callID, false, func(s *conversation.CallSession, _ bool) error {
		out = ta.machine.Step(ctx, s, conversation.NewIntent(conversation.IntentGoodbye, ""))
		ta.sessions.Remove(callID)
		return nil
	})

	var notFound *conversation.SessionNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		log.Printf("⚠️  Hangup for call %s not applied: %v", callID, err)
	}
	return out, nil
}

// ReadCurrent repeats the email under the cursor for callID.
func (ta *TurnAdapter) ReadCurrent(ctx context.Context, callID string) (conversation.Instruction, error) {
	var out conversation.Instruction
	err := ta.sessions.WithSession(ctx, callID, false, func(s *conversation.CallSession, _ bool) error {
		out = ta.machine.ReadCurrent(s)
		if out.EndCall {
			ta.sessions.Remove(callID)
		}
		return nil
	})
	return out, err
}

func (ta *TurnAdapter) intentFor(ctx context.Context, s *conversation.CallSession, t Turn) conversation.Intent {
	speech := strings.TrimSpace(t.Speech)

	if s.Mode == conversation.ModeDictatingReply {
		return DictationIntent(speech, t.Digits)
	}

	if speech == "" {
		if kind, ok := keypadIntents[strings.Trim(t.Digits, "#")]; ok {
			return conversation.NewIntent(kind, "")
		}
		return conversation.Unrecognized("")
	}

	if ta.classifier == nil {
		return conversation.Unrecognized(speech)
	}

	classifyCtx := ctx
	if ta.classifyTimeout > 0 {
		var cancel context.CancelFunc
		classifyCtx, cancel = context.WithTimeout(ctx, ta.classifyTimeout)
		defer cancel()
	}

	in, err := ta.classifier.Classify(classifyCtx, speech)
	if err != nil {
		log.Printf("⚠️  %v", &conversation.ClassificationError{Text: speech, Err: err})
		return conversation.Unrecognized(speech)
	}
	// Handlers such as task creation need the caller's own words.
	return conversation.NewIntent(in.Kind, speech)
}

var (
	completionPattern = regexp.MustCompile(`(?i)[\s,;:]*\b(i'?m done|i am done|send it|that'?s it|that is it|done|finished)[\s.!?]*$`)
	stopPhrases       = map[string]bool{"cancel": true, "stop": true, "never mind": true, "nevermind": true, "cancel that": true, "cancel reply": true}
	goodbyePhrases    = map[string]bool{"goodbye": true, "good bye": true, "bye": true, "bye bye": true, "hang up": true}
)

// DictationIntent interprets a turn taken while a reply is being dictated.
// A trailing completion phrase or the # key sends the reply with any words
// spoken before it. A bare cancel discards it and a bare goodbye ends the
// call. Anything else said is more dictation.
func DictationIntent(speech, digits string) conversation.Intent {
	speech = strings.TrimSpace(speech)

	if strings.Contains(digits, "#") {
		return conversation.CompleteDictation(speech)
	}
	if speech == "" {
		// Silence or a stray key leaves the draft as it is.
		return conversation.Unrecognized("")
	}

	phrase := strings.ToLower(strings.TrimRight(speech, ".!? "))
	if stopPhrases[phrase] {
		return conversation.NewIntent(conversation.IntentStop, "")
	}
	if goodbyePhrases[phrase] {
		return conversation.NewIntent(conversation.IntentGoodbye, "")
	}

	if loc := completionPattern.FindStringIndex(speech); loc != nil {
		return conversation.CompleteDictation(strings.TrimRight(speech[:loc[0]], ",;: "))
	}
	return conversation.Dictation(speech)
}
