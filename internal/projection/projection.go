package projection

import (
	"context"
	"strings"
	"time"

	"guest-visits-backend/internal/apperr"
	"guest-visits-backend/internal/parse"
	"guest-visits-backend/internal/store"
	"guest-visits-backend/internal/workdays"
)

// EntryLister reads the visible entries of a scheduled range.
type EntryLister interface {
	ListWindowEntries(ctx context.Context, from, toExclusive string) ([]store.EntryView, error)
}

// ReferenceDates are the working days nearest to the reference date.
type ReferenceDates struct {
	PreviousWorkday string `json:"previous_workday"`
	NextWorkday     string `json:"next_workday"`
}

// Calendar is the day structure of a window without its entries.
type Calendar struct {
	ReferenceDates    ReferenceDates         `json:"reference_dates"`
	CalendarStructure []workdays.CalendarDay `json:"calendar_structure"`

	// Degraded is set when any day in the range, or a day scanned for the
	// reference days, was answered by the weekday fallback.
	Degraded bool `json:"-"`

	from time.Time
	to   time.Time
}

// Window is the full view sent to clients: the visible entries of the
// week around a reference date, the reference days and the day structure.
type Window struct {
	Entries []store.EntryView `json:"entries"`
	Calendar
}

// Builder composes windows.
type Builder struct {
	resolver *workdays.Resolver
	entries  EntryLister
	now      func() time.Time
}

// NewBuilder creates a projection builder.
func NewBuilder(resolver *workdays.Resolver, entries EntryLister) *Builder {
	return &Builder{resolver: resolver, entries: entries, now: time.Now}
}

// WithClock replaces the clock used to resolve "today".
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Calendar resolves the day structure for ref, a YYYY-MM-DD date. An empty
// ref means today in the configured timezone.
//
// The structure is the Monday to Sunday week holding ref, extended by the
// previous and next working days of ref when they fall outside that week.
func (b *Builder) Calendar(ctx context.Context, ref string) (*Calendar, error) {
	loc := b.resolver.Location()

	var refDate time.Time
	if strings.TrimSpace(ref) == "" {
		refDate = parse.Midnight(b.now().In(loc))
	} else {
		d, err := parse.Date(ref, loc)
		if err != nil {
			return nil, apperr.BadRequest("invalid reference date %q", ref)
		}
		refDate = d
	}

	weekStart, weekEnd := b.resolver.WeekWindow(refDate)
	prev := b.resolver.PreviousWorking(ctx, refDate)
	next := b.resolver.NextWorking(ctx, refDate)

	days := make([]workdays.CalendarDay, 0, 9)
	from := weekStart
	if prev.Before(weekStart) {
		days = append(days, b.resolver.Day(ctx, prev))
		from = prev
	}
	for i := 0; i < 7; i++ {
		days = append(days, b.resolver.Day(ctx, weekStart.AddDate(0, 0, i)))
	}
	to := weekStart.AddDate(0, 0, 7)
	if next.After(weekEnd) {
		days = append(days, b.resolver.Day(ctx, next))
		to = next.AddDate(0, 0, 1)
	}

	return &Calendar{
		ReferenceDates: ReferenceDates{
			PreviousWorkday: prev.Format(parse.DateLayout),
			NextWorkday:     next.Format(parse.DateLayout),
		},
		CalendarStructure: days,
		Degraded:          b.degraded(from, to, prev, next),
		from:              from,
		to:                to,
	}, nil
}

// degraded reports whether [from, to) or the reference days rest on a
// fallback answer. The nearest-working-day scans only visit days inside
// that range.
func (b *Builder) degraded(from, to, prev, next time.Time) bool {
	for _, d := range []time.Time{prev, next} {
		if dt, ok := b.resolver.Known(d); !ok || dt != workdays.Working {
			return true
		}
	}
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		if !b.resolver.Cached(d) {
			return true
		}
	}
	return false
}

// Build resolves the calendar for ref and loads the visible entries
// scheduled anywhere in its range, ordered by scheduled instant.
func (b *Builder) Build(ctx context.Context, ref string) (*Window, error) {
	cal, err := b.Calendar(ctx, ref)
	if err != nil {
		return nil, err
	}

	rows, err := b.entries.ListWindowEntries(ctx,
		cal.from.Format(parse.DateTimeLayout),
		cal.to.Format(parse.DateTimeLayout))
	if err != nil {
		return nil, apperr.Internal("list window entries", err)
	}

	return &Window{Entries: rows, Calendar: *cal}, nil
}
