package parse

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// DateLayout is the calendar date format used on the wire and in pass records.
	DateLayout = "2006-01-02"
	// DateTimeLayout is the stored form of a scheduled instant, wall clock in the server timezone.
	DateTimeLayout = "2006-01-02T15:04:05"
	// TimestampLayout is the audit timestamp format, with microseconds and offset.
	TimestampLayout = "2006-01-02T15:04:05.000000-07:00"
)

var dateTimeRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[T ](\d{2}:\d{2})(:\d{2}(?:\.\d{1,9})?)?(Z|[+-]\d{2}:?\d{2})?$`)

// Date parses a YYYY-MM-DD string into midnight of that day in loc.
func Date(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return d, nil
}

// DateTime parses an ISO-8601 date-time. Seconds and fractions are optional.
// A value carrying a zone designator is converted to loc; one without is
// taken as wall clock in loc.
func DateTime(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	m := dateTimeRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("invalid datetime %q", raw)
	}

	seconds := m[3]
	if seconds == "" {
		seconds = ":00"
	}
	normalized := m[1] + "T" + m[2] + seconds

	zone := m[4]
	if zone == "" {
		t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", normalized, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid datetime %q", raw)
		}
		return t, nil
	}

	if zone != "Z" && !strings.Contains(zone, ":") {
		zone = zone[:3] + ":" + zone[3:]
	}
	t, err := time.Parse(time.RFC3339Nano, normalized+zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime %q", raw)
	}
	return t.In(loc), nil
}

// NormalizeDateTime parses raw and renders it in the stored scheduled form.
// Sub-second precision is dropped.
func NormalizeDateTime(raw string, loc *time.Location) (string, error) {
	t, err := DateTime(raw, loc)
	if err != nil {
		return "", err
	}
	return t.Format(DateTimeLayout), nil
}

// Timestamp renders an audit timestamp for t in loc.
func Timestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(TimestampLayout)
}

// Midnight returns the start of t's calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
