package models

import (
	"time"
	"unicode/utf8"
)

// Email is a fetched inbox message together with its importance analysis.
// It is never mutated after ranking.
type Email struct {
	ID              string    `json:"id"`
	ThreadID        string    `json:"thread_id"`
	MessageIDHeader string    `json:"message_id_header,omitempty"`
	Sender          string    `json:"sender"`
	Subject         string    `json:"subject"`
	Date            string    `json:"date"`
	Body            string    `json:"body"`
	Snippet         string    `json:"snippet"`
	Labels          []string  `json:"labels,omitempty"`
	ImportanceScore float64   `json:"importance_score"`
	ImportanceLevel string    `json:"importance_level"` // HIGH, MEDIUM, LOW
	Reasoning       []string  `json:"reasoning,omitempty"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// Importance levels
const (
	ImportanceHigh   = "HIGH"
	ImportanceMedium = "MEDIUM"
	ImportanceLow    = "LOW"
)

// LevelForScore maps a 0-100 score onto an importance level.
func LevelForScore(score float64) string {
	switch {
	case score >= 50:
		return ImportanceHigh
	case score >= 25:
		return ImportanceMedium
	default:
		return ImportanceLow
	}
}

// TruncateText cuts s to at most max characters, never splitting a
// multi-byte character.
func TruncateText(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
