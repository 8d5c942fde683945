// Package events defines the vocabulary shared by the realtime broadcast
// and the outbound notifications.
package events

import (
	"fmt"

	"guest-visits-backend/internal/model"
	"guest-visits-backend/internal/projection"
)

// Type names a mutation kind.
type Type string

const (
	EntryCreated         Type = "entry_created"
	EntryUpdated         Type = "entry_updated"
	EntryCompleted       Type = "entry_completed"
	EntryUncompleted     Type = "entry_uncompleted"
	VisitCancelled       Type = "visit_cancelled"
	VisitUncancelled     Type = "visit_uncancelled"
	EntryMoved           Type = "entry_moved"
	EntryDeleted         Type = "entry_deleted"
	EntriesDeletedAll    Type = "entries_deleted_all"
	EntriesDeletedFuture Type = "entries_deleted_future"
	PassOrdered          Type = "pass_ordered"
	PassRevoked          Type = "pass_revoked"
)

// All lists every event type.
func All() []Type {
	return []Type{
		EntryCreated, EntryUpdated, EntryCompleted, EntryUncompleted,
		VisitCancelled, VisitUncancelled, EntryMoved, EntryDeleted,
		EntriesDeletedAll, EntriesDeletedFuture, PassOrdered, PassRevoked,
	}
}

// ParseTypes converts configured type names, rejecting any name that is not
// an event type.
func ParseTypes(names []string) ([]Type, error) {
	known := make(map[Type]bool)
	for _, t := range All() {
		known[t] = true
	}
	out := make([]Type, 0, len(names))
	for _, name := range names {
		t := Type(name)
		if !known[t] {
			return nil, fmt.Errorf("unknown event type %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}

// Title is the human-readable heading used in notifications.
func (t Type) Title() string {
	switch t {
	case EntryCreated:
		return "New visit"
	case EntryUpdated:
		return "Visit updated"
	case EntryCompleted:
		return "Guest arrived"
	case EntryUncompleted:
		return "Arrival mark cleared"
	case VisitCancelled:
		return "Visit cancelled"
	case VisitUncancelled:
		return "Visit restored"
	case EntryMoved:
		return "Visit rescheduled"
	case EntryDeleted:
		return "Visit deleted"
	case EntriesDeletedAll:
		return "All visits deleted"
	case EntriesDeletedFuture:
		return "Upcoming visits deleted"
	case PassOrdered:
		return "Pass ordered"
	case PassRevoked:
		return "Pass revoked"
	default:
		return string(t)
	}
}

// Change describes one mutation. Fields not relevant to the mutation are left empty.
type Change struct {
	Actor        string       `json:"actor"`
	ActorID      string       `json:"actor_id"`
	Entry        *model.Entry `json:"entry,omitempty"`
	Pass         *model.Pass  `json:"pass,omitempty"`
	PreviousTime string       `json:"previous_datetime,omitempty"`
	DeletedCount *int64       `json:"deleted_count,omitempty"`
	FromDate     string       `json:"from_date,omitempty"`
}

// Envelope is the message delivered to every subscriber after a mutation.
// Data holds the window rebuilt after the mutation committed.
type Envelope struct {
	Type   Type               `json:"type"`
	Change Change             `json:"change"`
	Data   *projection.Window `json:"data"`
}
