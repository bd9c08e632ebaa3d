package domain

import (
	"time"
)

const dateKeyLayout = "2006-01-02"

// DateKeyOf buckets an instant into its calendar day in loc.
func DateKeyOf(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format(dateKeyLayout)
}

// ValidDateKey accepts only zero-padded YYYY-MM-DD strings naming a real calendar day.
func ValidDateKey(key string) bool {
	_, ok := parseDateKey(key)
	return ok
}

// DayIndex counts days from 1970-01-01 for a date key. Calendar arithmetic
// keeps adjacent days exactly one apart regardless of DST shifts.
func DayIndex(key string) (int64, bool) {
	day, ok := parseDateKey(key)
	if !ok {
		return 0, false
	}
	return day.Unix() / 86400, true
}

func parseDateKey(key string) (time.Time, bool) {
	if len(key) != len(dateKeyLayout) {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(dateKeyLayout, key, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}
