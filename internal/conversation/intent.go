package conversation

import "strings"

// IntentKind is the closed set of meanings a turn can carry
type IntentKind int

const (
	IntentUnrecognized IntentKind = iota
	IntentStartEmailReading
	IntentRespond
	IntentNext
	IntentStop
	IntentCheckCalendar
	IntentCreateTask
	IntentGoodbye
	IntentDictationText
	// IntentCompleteDictation is produced by the turn adapter, never by a
	// classifier, when the caller signals the dictated reply is finished.
	IntentCompleteDictation
)

var intentNames = map[IntentKind]string{
	IntentUnrecognized:      "unrecognized",
	IntentStartEmailReading: "start_email_reading",
	IntentRespond:           "respond",
	IntentNext:              "next",
	IntentStop:              "stop",
	IntentCheckCalendar:     "check_calendar",
	IntentCreateTask:        "create_task",
	IntentGoodbye:           "goodbye",
	IntentDictationText:     "dictation_text",
	IntentCompleteDictation: "complete_dictation",
}

func (k IntentKind) String() string {
	if name, ok := intentNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseIntentKind maps a label such as "check_calendar" back to its kind.
// Only labels a classifier may return are accepted.
func ParseIntentKind(label string) (IntentKind, bool) {
	label = strings.ToLower(strings.TrimSpace(label))
	for kind, name := range intentNames {
		if name != label {
			continue
		}
		switch kind {
		case IntentDictationText, IntentCompleteDictation:
			return IntentUnrecognized, false
		}
		return kind, true
	}
	return IntentUnrecognized, false
}

// Intent is the classified meaning of one turn. Text carries the raw speech
// for CreateTask and the dictated words for DictationText.
type Intent struct {
	Kind IntentKind
	Text string
}

func NewIntent(kind IntentKind, text string) Intent {
	return Intent{Kind: kind, Text: strings.TrimSpace(text)}
}

func Unrecognized(text string) Intent {
	return NewIntent(IntentUnrecognized, text)
}

func Dictation(text string) Intent {
	return NewIntent(IntentDictationText, text)
}

func CompleteDictation(trailing string) Intent {
	return NewIntent(IntentCompleteDictation, trailing)
}

func (i Intent) String() string {
	if i.Text == "" {
		return i.Kind.String()
	}
	return i.Kind.String() + "(" + i.Text + ")"
}
