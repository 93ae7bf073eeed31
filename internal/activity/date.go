package activity

import (
	"strings"
	"time"
)

// DateLayout is the wire format of calendar days.
const DateLayout = "2006-01-02"

// Day truncates t to its calendar day, expressed as midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// ResolveDate picks the day an activity event is attributed to. A valid
// client date wins; an empty or malformed one falls back to the server's
// current date in loc. usedClient reports which source was taken.
func ResolveDate(clientDate string, now time.Time, loc *time.Location) (day time.Time, usedClient bool) {
	if loc == nil {
		loc = time.UTC
	}
	serverDay := Day(now.In(loc))
	if strings.TrimSpace(clientDate) == "" {
		return serverDay, false
	}
	d, err := ParseDay(clientDate)
	if err != nil {
		return serverDay, false
	}
	return d, true
}

// Window returns the inclusive range of days days long ending at today.
func Window(today time.Time, days int) (start, end time.Time) {
	end = Day(today)
	start = end.AddDate(0, 0, -(days - 1))
	return start, end
}

// DaysBetween lists every calendar day in [start, end].
func DaysBetween(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil
	}
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
