package notification

import (
	"fmt"
	"strings"
	"time"

	"guest-visits-backend/internal/events"
	"guest-visits-backend/internal/parse"
)

// Message is a rendered notification.
type Message struct {
	Type  events.Type `json:"type"`
	Title string      `json:"title"`
	Body  string      `json:"body"`
}

// Text joins title and body for plain-text channels.
func (m Message) Text() string {
	if m.Body == "" {
		return m.Title
	}
	return m.Title + "\n" + m.Body
}

// Render turns an event into a human-readable message.
func Render(typ events.Type, change events.Change, loc *time.Location) Message {
	var lines []string
	if change.Actor != "" {
		lines = append(lines, "By: "+change.Actor)
	}
	if e := change.Entry; e != nil {
		lines = append(lines, "Guest: "+e.Name)
		if e.Responsible != nil && *e.Responsible != "" {
			lines = append(lines, "Responsible: "+*e.Responsible)
		}
		lines = append(lines, "When: "+humanTime(e.ScheduledAt, loc))
		if change.PreviousTime != "" {
			lines = append(lines, "Was: "+humanTime(change.PreviousTime, loc))
		}
	}
	if change.FromDate != "" {
		lines = append(lines, "From: "+change.FromDate)
	}
	if change.DeletedCount != nil {
		lines = append(lines, fmt.Sprintf("Deleted: %d", *change.DeletedCount))
	}
	return Message{Type: typ, Title: typ.Title(), Body: strings.Join(lines, "\n")}
}

func humanTime(raw string, loc *time.Location) string {
	t, err := parse.DateTime(raw, loc)
	if err != nil {
		return raw
	}
	return t.Format("02.01.2006 15:04")
}
