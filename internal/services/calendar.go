package services

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CalendarEvent is one upcoming entry on the caller's calendar
type CalendarEvent struct {
	Summary  string
	Start    time.Time
	AllDay   bool
	Location string
}

// EventSource lists calendar events in a time window
type EventSource interface {
	UpcomingEvents(ctx context.Context, from, to time.Time, max int) ([]CalendarEvent, error)
}

const (
	calendarWindow    = 7 * 24 * time.Hour
	calendarMaxEvents = 5
)

// CalendarService summarizes the coming week for speech
type CalendarService struct {
	events EventSource
	now    func() time.Time
}

func NewCalendarService(events EventSource) *CalendarService {
	return &CalendarService{events: events, now: time.Now}
}

func (c *CalendarService) CheckCalendar(ctx context.Context) (string, error) {
	if c.events == nil {
		return "", fmt.Errorf("calendar not configured")
	}

	now := c.now()
	events, err := c.events.UpcomingEvents(ctx, now, now.Add(calendarWindow), calendarMaxEvents)
	if err != nil {
		return "", fmt.Errorf("list events: %w", err)
	}
	return SummarizeEvents(events, now), nil
}

// SummarizeEvents turns events into one spoken paragraph
func SummarizeEvents(events []CalendarEvent, now time.Time) string {
	if len(events) == 0 {
		return "You have no events in the next seven days."
	}
	if len(events) > calendarMaxEvents {
		events = events[:calendarMaxEvents]
	}

	var b strings.Builder
	if len(events) == 1 {
		b.WriteString("You have 1 upcoming event.")
	} else {
		fmt.Fprintf(&b, "You have %d upcoming events.", len(events))
	}

	for _, ev := range events {
		summary := strings.TrimSpace(ev.Summary)
		if summary == "" {
			summary = "Untitled event"
		}
		fmt.Fprintf(&b, " %s, %s", summary, spokenWhen(ev, now))
		if ev.Location != "" {
			fmt.Fprintf(&b, " at %s", ev.Location)
		}
		b.WriteString(".")
	}
	return b.String()
}

func spokenWhen(ev CalendarEvent, now time.Time) string {
	start := ev.Start.In(now.Location())
	y1, m1, d1 := now.Date()
	y2, m2, d2 := start.Date()
	days := int(time.Date(y2, m2, d2, 0, 0, 0, 0, now.Location()).
		Sub(time.Date(y1, m1, d1, 0, 0, 0, 0, now.Location())).Hours() / 24)

	var day string
	switch days {
	case 0:
		day = "today"
	case 1:
		day = "tomorrow"
	default:
		day = "on " + start.Format("Monday, January 2")
	}

	if ev.AllDay {
		return day + ", all day"
	}
	return day + " at " + start.Format("3:04 PM")
}
