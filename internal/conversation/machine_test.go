package conversation

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/inboxcall-backend/internal/models"
)

func newTestMachine(c Collaborators) *Machine {
	return NewMachine(c, MachineConfig{
		CollaboratorTimeout: time.Second,
		MaxFailures:         3,
		MaxTurns:            100,
	})
}

func step(t *testing.T, m *Machine, s *CallSession, in Intent) Instruction {
	t.Helper()
	out := m.Step(context.Background(), s, in)
	require.NoError(t, s.CheckInvariants(), "after %s", in)
	return out
}

// readingSession returns a session that has been greeted and is reading
// the ranker's emails.
func readingSession(t *testing.T, m *Machine) *CallSession {
	t.Helper()
	s := NewCallSession("CA123", time.Now())
	step(t, m, s, Unrecognized(""))
	out := step(t, m, s, NewIntent(IntentStartEmailReading, "read my emails"))
	require.Equal(t, ModeEmailReading, s.Mode, out.Prompt)
	return s
}

func TestMachine_GreetingWithoutSpeech(t *testing.T) {
	m := newTestMachine(Collaborators{})
	s := NewCallSession("CA1", time.Now())

	out := step(t, m, s, Unrecognized(""))

	assert.Equal(t, PromptGreeting, out.Prompt)
	assert.True(t, out.ExpectMoreInput)
	assert.False(t, out.EndCall)
	assert.Equal(t, ModeListening, s.Mode)
	assert.Equal(t, ModeListening, out.Mode)
	assert.Equal(t, 1, s.TurnCount)
}

func TestMachine_GreetingThenProcessesIntent(t *testing.T) {
	m := newTestMachine(Collaborators{Ranker: &fakeRanker{emails: testEmails()}})
	s := NewCallSession("CA1", time.Now())

	out := step(t, m, s, NewIntent(IntentStartEmailReading, "read my emails"))

	assert.True(t, strings.HasPrefix(out.Prompt, PromptGreeting))
	assert.Contains(t, out.Prompt, "Email 1 of 2")
	assert.Equal(t, ModeEmailReading, s.Mode)
	assert.Equal(t, 0, s.Queue.Cursor())
}

func TestMachine_GoodbyeFromListeningEndsCall(t *testing.T) {
	m := newTestMachine(Collaborators{})
	s := NewCallSession("CA1", time.Now())
	step(t, m, s, Unrecognized(""))

	out := step(t, m, s, NewIntent(IntentGoodbye, "bye"))

	assert.Equal(t, ModeEnding, s.Mode)
	assert.True(t, out.EndCall)
	assert.False(t, out.ExpectMoreInput)
	assert.Equal(t, PromptFarewell, out.Prompt)
}

func TestMachine_EndingIsTerminal(t *testing.T) {
	m := newTestMachine(Collaborators{Ranker: &fakeRanker{emails: testEmails()}})
	s := NewCallSession("CA1", time.Now())
	step(t, m, s, NewIntent(IntentGoodbye, "bye"))

	out := step(t, m, s, NewIntent(IntentStartEmailReading, "read my emails"))

	assert.Equal(t, ModeEnding, s.Mode)
	assert.True(t, out.EndCall)
}

func TestMachine_ReadingScenario(t *testing.T) {
	m := newTestMachine(Collaborators{Ranker: &fakeRanker{emails: testEmails()}})
	s := readingSession(t, m)

	email, ok := s.Queue.Current()
	require.True(t, ok)
	assert.Equal(t, "a", email.ID)

	out := step(t, m, s, NewIntent(IntentNext, "next"))
	email, ok = s.Queue.Current()
	require.True(t, ok)
	assert.Equal(t, "b", email.ID)
	assert.Contains(t, out.Prompt, "Email 2 of 2")
	assert.Contains(t, out.Prompt, "From bob@example.com")

	out = step(t, m, s, NewIntent(IntentNext, "next"))
	assert.Equal(t, ModeListening, s.Mode)
	assert.Equal(t, PromptNoMoreEmails, out.Prompt)
	assert.Equal(t, -1, s.Queue.Cursor())
}

func TestMachine_NextReachesListeningAfterExactlyN(t *testing.T) {
	for n := 1; n <= 6; n++ {
		emails := make([]models.Email, n)
		for i := range emails {
			emails[i] = models.Email{ID: string(rune('a' + i)), ImportanceScore: float64(n - i)}
		}
		m := newTestMachine(Collaborators{Ranker: &fakeRanker{emails: emails}})
		s := readingSession(t, m)

		for i := 1; i < n; i++ {
			step(t, m, s, NewIntent(IntentNext, "next"))
			require.Equal(t, ModeEmailReading, s.Mode, "n=%d after %d nexts", n, i)
		}
		step(t, m, s, NewIntent(IntentNext, "next"))
		assert.Equal(t, ModeListening, s.Mode, "n=%d", n)
	}
}

func TestMachine_StopClearsQueue(t *testing.T) {
	m := newTestMachine(Collaborators{Ranker: &fakeRanker{emails: testEmails()}})
	s := readingSession(t, m)

	out := step(t, m, s, NewIntent(IntentStop, "stop"))

	assert.Equal(t, ModeListening, s.Mode)
	assert.Equal(t, 0, s.Queue.Len())
	assert.Equal(t, PromptStoppedReading, out.Prompt)
}

func TestMachine_EmptyInboxStaysListening(t *testing.T) {
	m := newTestMachine(Collaborators{Ranker: &fakeRanker{}})
	s := NewCallSession("CA1", time.Now())
	step(t, m, s, Unrecognized(""))

	out := step(t, m, s, NewIntent(IntentStartEmailReading, "read my emails"))

	assert.Equal(t, ModeListening, s.Mode)
	assert.Equal(t, PromptInboxEmpty, out.Prompt)
}

func TestMachine_RespondDictateSendResumesAtSameCursor(t *testing.T) {
	mailer := &fakeMailer{}
	m := newTestMachine(Collaborators{Ranker: &fakeRanker{emails: testEmails()}, Mailer: mailer})
	s := readingSession(t, m)
	step(t, m, s, NewIntent(IntentNext, "next"))
	cursor := s.Queue.Cursor()

	out := step(t, m, s, NewIntent(IntentRespond, "respond"))
	assert.Equal(t, ModeDictatingReply, s.Mode)
	require.NotNil(t, s.PendingDraft)
	assert.Equal(t, "b", s.PendingDraft.Target.ID)
	assert.Contains(t, out.Prompt, "bob@example.com")

	step(t, m, s, Dictation("Tacos sound great."))
	out = step(t, m, s, Dictation("See you at noon."))
	assert.Equal(t, PromptContinueDictate, out.Prompt)
	assert.Equal(t, cursor, s.Queue.Cursor())

	out = step(t, m, s, CompleteDictation(""))

	assert.Equal(t, ModeEmailReading, s.Mode)
	assert.Nil(t, s.PendingDraft)
	assert.Equal(t, cursor, s.Queue.Cursor())
	assert.Contains(t, out.Prompt, "was sent")
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Tacos sound great. See you at noon.", mailer.sent[0].text)
	assert.Equal(t, "b", mailer.sent[0].target.ID)
}

func TestMachine_CompletionAppendsTrailingWords(t *testing.T) {
	mailer := &fakeMailer{}
	m := newTestMachine(Collaborators{Ranker: &fakeRanker{emails: testEmails()}, Mailer: mailer})
	s := readingSession(t, m)
	step(t, m, s, NewIntent(IntentRespond, "reply"))

	step(t, m, s, CompleteDictation("I'll sign it today"))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "I'll sign it today", mailer.sent[0].text)
}

func TestMachine_CompletionWithEmptyDraftAsksAgain(t *testing.T) {
	mailer := &fakeMailer{}
	m := newTestMachine(Collaborators{Ranker: &fakeRanker{emails: testEmails()}, Mailer: mailer})
	s := readingSession(t, m)
	step(t, m, s, NewIntent(IntentRespond, "reply"))

	out := step(t, m, s, CompleteDictation(""))

	assert.Equal(t, PromptEmptyDraft, out.Prompt)
	assert.Equal(t, ModeDictatingReply, s.Mode)
	assert.Empty(t, mailer.sent)
}

func TestMachine_SendErrorKeepsDraftForRetry(t *testing.T) {
	mailer := &fakeMailer{err: errBoom}
	m := newTestMachine(Collaborators{Ranker: &fakeRanker{emails: testEmails()}, Mailer: mailer})
	s := readingSession(t, m)
	step(t, m, s, NewIntent(IntentRespond, "respond"))
	step(t, m, s, Dictation("Signed."))

	out := step(t, m, s, CompleteDictation(""))

	assert.Equal(t, ModeDictatingReply, s.Mode)
	require.NotNil(t, s.PendingDraft)
	assert.Equal(t, "Signed.", s.PendingDraft.Text())
	assert.Equal(t, PromptSendRetry, out.Prompt)
	assert.Equal(t, 1, s.ConsecutiveFailures(OpSend))

	// a successful retry sends the preserved draft
	mailer.err = nil
	step(t, m, s, CompleteDictation(""))
	assert.Equal(t, ModeEmailReading, s.Mode)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Signed.", mailer.sent[0].text)
	assert.Equal(t, 0, s.ConsecutiveFailures(OpSend))
}

func TestMachine_ThreeSendErrorsForceListening(t *testing.T) {
	m := newTestMachine(Collaborators{Ranker: &fakeRanker{emails: testEmails()}, Mailer: &fakeMailer{err: errBoom}})
	s := readingSession(t, m)
	step(t, m, s, NewIntent(IntentRespond, "respond"))
	step(t, m, s, Dictation("Signed."))

	step(t, m, s, CompleteDictation(""))
	step(t, m, s, CompleteDictation(""))
	out := step(t, m, s, CompleteDictation(""))

	assert.Equal(t, ModeListening, s.Mode)
	assert.Nil(t, s.PendingDraft)
	assert.Equal(t, PromptApology, out.Prompt)
}

func TestMachine_ThreeFetchErrorsForceApology(t *testing.T) {
	ranker := &fakeRanker{emails: testEmails(), errs: []error{errBoom, errBoom, errBoom}}
	m := newTestMachine(Collaborators{Ranker: ranker})
	s := NewCallSession("CA1", time.Now())
	step(t, m, s, Unrecognized(""))

	for i := 1; i <= 2; i++ {
		out := step(t, m, s, NewIntent(IntentStartEmailReading, "read my emails"))
		assert.Equal(t, ModeListening, s.Mode)
		assert.Equal(t, PromptFetchRetry, out.Prompt)
		assert.Equal(t, i, s.ConsecutiveFailures(OpFetch))
	}

	out := step(t, m, s, NewIntent(IntentStartEmailReading, "read my emails"))
	assert.Equal(t, ModeListening, s.Mode)
	assert.Equal(t, PromptApology, out.Prompt)
	assert.Equal(t, 0, s.ConsecutiveFailures(OpFetch))
	assert.Equal(t, 3, ranker.calls)

	// the counter starts over and the next attempt succeeds
	step(t, m, s, NewIntent(IntentStartEmailReading, "read my emails"))
	assert.Equal(t, ModeEmailReading, s.Mode)
}

func TestMachine_FailuresOfDifferentOperationsDoNotAccumulate(t *testing.T) {
	ranker := &fakeRanker{errs: []error{errBoom, errBoom, errBoom}}
	m := newTestMachine(Collaborators{Ranker: ranker, Calendar: &fakeCalendar{err: errBoom}})
	s := NewCallSession("CA1", time.Now())
	step(t, m, s, Unrecognized(""))

	step(t, m, s, NewIntent(IntentStartEmailReading, "read my emails"))
	step(t, m, s, NewIntent(IntentStartEmailReading, "read my emails"))
	out := step(t, m, s, NewIntent(IntentCheckCalendar, "my calendar"))
	assert.Equal(t, PromptCalendarRetry, out.Prompt)

	out = step(t, m, s, NewIntent(IntentStartEmailReading, "read my emails"))
	assert.Equal(t, PromptFetchRetry, out.Prompt)
	assert.Equal(t, 1, s.ConsecutiveFailures(OpFetch))
}

func TestMachine_MissingRankerIsAFetchFailure(t *testing.T) {
	m := newTestMachine(Collaborators{})
	s := NewCallSession("CA1", time.Now())
	step(t, m, s, Unrecognized(""))

	out := step(t, m, s, NewIntent(IntentStartEmailReading, "read my emails"))

	assert.Equal(t, PromptFetchRetry, out.Prompt)
	assert.Equal(t, ModeListening, s.Mode)
}

type blockingRanker struct{}

func (blockingRanker) FetchAndRank(ctx context.Context) ([]models.Email, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestMachine_CollaboratorTimeoutIsAFailure(t *testing.T) {
	m := NewMachine(Collaborators{Ranker: blockingRanker{}}, MachineConfig{CollaboratorTimeout: 10 * time.Millisecond})
	s := NewCallSession("CA1", time.Now())
	step(t, m, s, Unrecognized(""))

	start := time.Now()
	out := step(t, m, s, NewIntent(IntentStartEmailReading, "read my emails"))

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, PromptFetchRetry, out.Prompt)
}

func TestMachine_StopDuringDictationDiscardsDraft(t *testing.T) {
	mailer := &fakeMailer{}
	m := newTestMachine(Collaborators{Ranker: &fakeRanker{emails: testEmails()}, Mailer: mailer})
	s := readingSession(t, m)
	step(t, m, s, NewIntent(IntentRespond, "respond"))
	step(t, m, s, Dictation("No thanks"))

	out := step(t, m, s, NewIntent(IntentStop, "cancel"))

	assert.Equal(t, ModeEmailReading, s.Mode)
	assert.Nil(t, s.PendingDraft)
	assert.Equal(t, 0, s.Queue.Cursor())
	assert.Equal(t, PromptDraftDiscarded, out.Prompt)
	assert.Empty(t, mailer.sent)
}

func TestMachine_GoodbyeDuringDictationEndsCall(t *testing.T) {
	m := newTestMachine(Collaborators{Ranker: &fakeRanker{emails: testEmails()}})
	s := readingSession(t, m)
	step(t, m, s, NewIntent(IntentRespond, "respond"))

	out := step(t, m, s, NewIntent(IntentGoodbye, "goodbye"))

	assert.Equal(t, ModeEnding, s.Mode)
	assert.Nil(t, s.PendingDraft)
	assert.True(t, out.EndCall)
}

func TestMachine_CalendarAndTasks(t *testing.T) {
	tasks := &fakeTasks{}
	m := newTestMachine(Collaborators{
		Calendar: &fakeCalendar{summary: "You have 1 event: Standup on Monday at 9 AM."},
		Tasks:    tasks,
	})
	s := NewCallSession("CA1", time.Now())
	s.Caller = "+15550001111"
	step(t, m, s, Unrecognized(""))

	out := step(t, m, s, NewIntent(IntentCheckCalendar, "what's on my calendar"))
	assert.Equal(t, ModeListening, s.Mode)
	assert.Contains(t, out.Prompt, "Standup")

	out = step(t, m, s, NewIntent(IntentCreateTask, "add a task to call the bank"))
	assert.Equal(t, ModeListening, s.Mode)
	assert.Equal(t, []string{"Call the bank"}, tasks.created)
	assert.Contains(t, out.Prompt, "Call the bank")

	out = step(t, m, s, NewIntent(IntentCreateTask, "create a task"))
	assert.Equal(t, PromptTaskNeedsDetail, out.Prompt)
	assert.Len(t, tasks.created, 1)
}

func TestMachine_RunawayGuardEndsCall(t *testing.T) {
	m := NewMachine(Collaborators{}, MachineConfig{MaxTurns: 3})
	s := NewCallSession("CA1", time.Now())

	for i := 0; i < 3; i++ {
		out := step(t, m, s, Unrecognized("hmm"))
		require.False(t, out.EndCall)
	}
	out := step(t, m, s, Unrecognized("hmm"))

	assert.True(t, out.EndCall)
	assert.Equal(t, PromptRunaway, out.Prompt)
	assert.Equal(t, ModeEnding, s.Mode)
}

func TestMachine_ReadCurrentDoesNotMoveCursor(t *testing.T) {
	m := newTestMachine(Collaborators{Ranker: &fakeRanker{emails: testEmails()}})
	s := readingSession(t, m)
	step(t, m, s, NewIntent(IntentNext, "next"))

	out := m.ReadCurrent(s)

	assert.Equal(t, 1, s.Queue.Cursor())
	assert.Equal(t, ModeEmailReading, out.Mode)
	assert.Contains(t, out.Prompt, "Email 2 of 2")

	s.enterListening()
	out = m.ReadCurrent(s)
	assert.Contains(t, out.Prompt, "No more emails")
}

func TestMachine_ReadCurrentCountsTowardRunawayGuard(t *testing.T) {
	m := NewMachine(Collaborators{Ranker: &fakeRanker{emails: testEmails()}}, MachineConfig{MaxTurns: 5})
	s := readingSession(t, m)

	var out Instruction
	for i := 0; i < 50 && !out.EndCall; i++ {
		out = m.ReadCurrent(s)
	}

	assert.True(t, out.EndCall)
	assert.Equal(t, PromptRunaway, out.Prompt)
	assert.Equal(t, ModeEnding, s.Mode)
	assert.Equal(t, 6, s.TurnCount)

	out = m.ReadCurrent(s)
	assert.True(t, out.EndCall)
	assert.Equal(t, PromptFarewell, out.Prompt)
}

func TestMachine_DiscardingReplyResetsSendFailures(t *testing.T) {
	mailer := &fakeMailer{err: errBoom}
	m := newTestMachine(Collaborators{Ranker: &fakeRanker{emails: testEmails()}, Mailer: mailer})
	s := readingSession(t, m)
	step(t, m, s, NewIntent(IntentRespond, "respond"))
	step(t, m, s, Dictation("Signed."))
	step(t, m, s, CompleteDictation(""))
	step(t, m, s, CompleteDictation(""))
	require.Equal(t, 2, s.ConsecutiveFailures(OpSend))

	step(t, m, s, NewIntent(IntentStop, "cancel"))
	assert.Equal(t, 0, s.ConsecutiveFailures(OpSend))

	step(t, m, s, NewIntent(IntentRespond, "respond"))
	step(t, m, s, Dictation("Signed again."))
	out := step(t, m, s, CompleteDictation(""))

	assert.Equal(t, PromptSendRetry, out.Prompt)
	assert.Equal(t, ModeDictatingReply, s.Mode)
	assert.Equal(t, 1, s.ConsecutiveFailures(OpSend))
}

func TestMachine_InvariantBreachApologizes(t *testing.T) {
	m := newTestMachine(Collaborators{Ranker: &fakeRanker{emails: testEmails()}})
	s := readingSession(t, m)
	s.Queue.Clear()

	out := m.Step(context.Background(), s, Unrecognized("hmm"))

	assert.Equal(t, PromptApology, out.Prompt)
	assert.True(t, out.ExpectMoreInput)
	assert.Equal(t, ModeListening, out.Mode)
	assert.NoError(t, s.CheckInvariants())
}

// sessionIn builds a session already in mode, for exhaustive table checks.
func sessionIn(t *testing.T, m *Machine, mode Mode) *CallSession {
	t.Helper()
	switch mode {
	case ModeGreeting:
		return NewCallSession("CA1", time.Now())
	case ModeListening:
		s := NewCallSession("CA1", time.Now())
		step(t, m, s, Unrecognized(""))
		return s
	case ModeEmailReading:
		return readingSession(t, m)
	case ModeDictatingReply:
		s := readingSession(t, m)
		step(t, m, s, NewIntent(IntentRespond, "respond"))
		return s
	default:
		s := NewCallSession("CA1", time.Now())
		step(t, m, s, NewIntent(IntentGoodbye, "bye"))
		return s
	}
}

func TestMachine_EveryStateIntentPairKeepsInvariants(t *testing.T) {
	modes := []Mode{ModeGreeting, ModeListening, ModeEmailReading, ModeDictatingReply, ModeEnding}
	for _, mode := range modes {
		for kind := IntentUnrecognized; kind <= IntentCompleteDictation; kind++ {
			t.Run(mode.String()+"/"+kind.String(), func(t *testing.T) {
				m := newTestMachine(Collaborators{
					Ranker:   &fakeRanker{emails: testEmails()},
					Mailer:   &fakeMailer{},
					Calendar: &fakeCalendar{summary: "Nothing scheduled."},
					Tasks:    &fakeTasks{},
				})
				s := sessionIn(t, m, mode)
				cursor := s.Queue.Cursor()

				out := step(t, m, s, NewIntent(kind, "some words"))

				assert.NotEmpty(t, out.Prompt)
				assert.NotEqual(t, out.EndCall, out.ExpectMoreInput)
				assert.Equal(t, out.EndCall, s.Mode == ModeEnding)
				if mode == ModeDictatingReply && s.Mode != ModeListening && s.Mode != ModeEnding {
					assert.Equal(t, cursor, s.Queue.Cursor(), "dictation must not move the cursor")
				}
			})
		}
	}
}

type flakyMailer struct {
	rng *rand.Rand
}

func (f *flakyMailer) Compose(ctx context.Context, draftText string, target models.Email) (string, error) {
	if f.rng.Intn(2) == 0 {
		return "", errBoom
	}
	return "Sent.", nil
}

func TestMachine_RandomSequencesKeepDraftInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	kinds := []IntentKind{
		IntentUnrecognized, IntentStartEmailReading, IntentRespond, IntentNext, IntentStop,
		IntentCheckCalendar, IntentCreateTask, IntentDictationText, IntentCompleteDictation,
	}

	for run := 0; run < 200; run++ {
		ranker := &fakeRanker{emails: testEmails()}
		if rng.Intn(3) == 0 {
			ranker.errs = []error{errBoom}
		}
		m := newTestMachine(Collaborators{
			Ranker:   ranker,
			Mailer:   &flakyMailer{rng: rng},
			Calendar: &fakeCalendar{summary: "Free all week."},
			Tasks:    &fakeTasks{},
		})
		s := NewCallSession("CA1", time.Now())

		for i := 0; i < 40; i++ {
			kind := kinds[rng.Intn(len(kinds))]
			out := m.Step(context.Background(), s, NewIntent(kind, "words"))
			require.NoError(t, s.CheckInvariants(), "run %d step %d %s", run, i, kind)
			require.Equal(t, s.PendingDraft != nil, s.Mode == ModeDictatingReply)
			require.Equal(t, s.Mode, out.Mode)
		}
	}
}

func TestTaskDescription(t *testing.T) {
	cases := map[string]string{
		"add a task to call the bank":            "Call the bank",
		"Create a new task: renew passport.":     "Renew passport",
		"please add a reminder to water plants":  "Water plants",
		"buy milk":                               "Buy milk",
		"create a task":                          "",
		"todo":                                   "",
		"remind me to cancel the gym membership": "Cancel the gym membership",
		"remind me tomorrow about rent":          "Tomorrow about rent",
		"add a task to übersetzen the contract":  "Übersetzen the contract",
	}
	for in, want := range cases {
		assert.Equal(t, want, TaskDescription(in), in)
	}
}

func TestIsTaskCommand(t *testing.T) {
	assert.True(t, IsTaskCommand("add a task to reply to Sarah"))
	assert.True(t, IsTaskCommand("Remind me to stop the newspaper"))
	assert.True(t, IsTaskCommand("new todo: schedule a haircut"))
	assert.False(t, IsTaskCommand("read my emails"))
	assert.False(t, IsTaskCommand("what are my tasks"))
	assert.False(t, IsTaskCommand("taskbar is broken"))
}

func TestParseIntentKind(t *testing.T) {
	kind, ok := ParseIntentKind(" Check_Calendar ")
	assert.True(t, ok)
	assert.Equal(t, IntentCheckCalendar, kind)

	_, ok = ParseIntentKind("dictation_text")
	assert.False(t, ok)

	_, ok = ParseIntentKind("dance")
	assert.False(t, ok)
}
