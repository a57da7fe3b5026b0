package utils

import "time"

// SameDay reports whether a and b fall on the same calendar date in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates. A plain
// date is midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation("2006-01-02", value, loc)
}
