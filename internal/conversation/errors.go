package conversation

import "fmt"

// ClassificationError means the classifier timed out or returned something
// unusable. Callers treat the turn as Unrecognized.
type ClassificationError struct {
	Text string
	Err  error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %q: %v", e.Text, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// FetchError means the inbox could not be fetched or ranked.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch emails: %v", e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }

// SendError means a dictated reply could not be composed or delivered.
type SendError struct {
	EmailID string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send reply to %s: %v", e.EmailID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// MalformedTurnError aborts a turn before any session is touched.
type MalformedTurnError struct {
	Reason string
}

func (e *MalformedTurnError) Error() string { return "malformed turn: " + e.Reason }

// SessionNotFoundError is reported when a turn references a call with no
// live session, usually after idle eviction.
type SessionNotFoundError struct {
	CallID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session not found for call %s", e.CallID)
}

// CollaboratorError wraps calendar and task failures.
type CollaboratorError struct {
	Op  Operation
	Err error
}

func (e *CollaboratorError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *CollaboratorError) Unwrap() error { return e.Err }
