package workdays

import (
	"context"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"guest-visits-backend/internal/parse"
)

// maxScanDays bounds the nearest-working-day search against an oracle
// that never reports a working day.
const maxScanDays = 366

// Resolver classifies dates and computes week windows.
//
// Oracle answers are kept in an unbounded cache without expiry: a confirmed
// classification never changes, and a year of dates is a few hundred keys.
// Fallback answers are never cached, so the oracle is asked again once it
// recovers.
type Resolver struct {
	oracle Oracle
	cache  *cache.Cache
	loc    *time.Location
	logger *slog.Logger
}

// NewResolver creates a resolver backed by oracle, computing days in loc.
func NewResolver(oracle Oracle, loc *time.Location, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		oracle: oracle,
		cache:  cache.New(cache.NoExpiration, 0),
		loc:    loc,
		logger: logger.With("component", "workdays"),
	}
}

// Location returns the timezone days are computed in.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Classify returns the day type of date. It never fails: oracle errors are
// logged and answered by the weekday rule.
func (r *Resolver) Classify(ctx context.Context, date time.Time) DayType {
	date = parse.Midnight(date.In(r.loc))
	key := date.Format(parse.DateLayout)

	if v, found := r.cache.Get(key); found {
		return v.(DayType)
	}

	dt, err := r.oracle.DayType(ctx, date)
	if err != nil {
		fallback := Fallback(date)
		r.logger.Warn("day type oracle failed, using weekday fallback",
			"date", key, "fallback", fallback.String(), "error", err)
		return fallback
	}

	r.cache.Set(key, dt, cache.NoExpiration)
	return dt
}

// IsWorking reports whether date is a working day.
func (r *Resolver) IsWorking(ctx context.Context, date time.Time) bool {
	return r.Classify(ctx, date) == Working
}

// Cached reports whether the classification of date is held in the cache.
func (r *Resolver) Cached(date time.Time) bool {
	_, found := r.Known(date)
	return found
}

// Known returns the oracle's classification of date without querying it.
// Dates answered only by the weekday fallback are not known.
func (r *Resolver) Known(date time.Time) (DayType, bool) {
	v, found := r.cache.Get(date.In(r.loc).Format(parse.DateLayout))
	if !found {
		return 0, false
	}
	return v.(DayType), true
}

// NextWorking returns the first working day strictly after date, at midnight.
func (r *Resolver) NextWorking(ctx context.Context, date time.Time) time.Time {
	return r.scan(ctx, date, 1)
}

// PreviousWorking returns the last working day strictly before date, at midnight.
func (r *Resolver) PreviousWorking(ctx context.Context, date time.Time) time.Time {
	return r.scan(ctx, date, -1)
}

func (r *Resolver) scan(ctx context.Context, date time.Time, step int) time.Time {
	start := parse.Midnight(date.In(r.loc))
	d := start
	for i := 0; i < maxScanDays; i++ {
		d = d.AddDate(0, 0, step)
		if r.IsWorking(ctx, d) {
			return d
		}
	}

	r.logger.Error("no working day found within scan limit, using weekday rule",
		"from", start.Format(parse.DateLayout), "step", step)
	d = start
	for {
		d = d.AddDate(0, 0, step)
		if Fallback(d) == Working {
			return d
		}
	}
}

// WeekWindow returns Monday 00:00 and Sunday end-of-day of the week
// containing ref, in the resolver's timezone.
func (r *Resolver) WeekWindow(ref time.Time) (time.Time, time.Time) {
	return WeekWindow(ref.In(r.loc))
}

// WeekWindow returns Monday 00:00 and Sunday end-of-day of the week
// containing ref, in ref's location.
func WeekWindow(ref time.Time) (time.Time, time.Time) {
	day := parse.Midnight(ref)
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	end := start.AddDate(0, 0, 7).Add(-time.Nanosecond)
	return start, end
}

// Fallback classifies a date by weekday alone: Saturday and Sunday are non-working.
func Fallback(date time.Time) DayType {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return NonWorking
	default:
		return Working
	}
}

// CalendarDay is one day of a rendered window.
type CalendarDay struct {
	Date      string `json:"date"`
	Weekday   string `json:"weekday"`
	IsWorkday bool   `json:"is_workday"`
}

// Day classifies date and renders it as a CalendarDay.
func (r *Resolver) Day(ctx context.Context, date time.Time) CalendarDay {
	date = date.In(r.loc)
	return CalendarDay{
		Date:      date.Format(parse.DateLayout),
		Weekday:   date.Weekday().String(),
		IsWorkday: r.IsWorking(ctx, date),
	}
}
