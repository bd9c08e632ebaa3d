package domain

import (
	"cmp"
	"slices"
)

// SortNewestFirst orders sessions by start time descending, id descending on ties.
func SortNewestFirst(sessions []Session) {
	slices.SortStableFunc(sessions, func(a, b Session) int {
		if c := cmp.Compare(b.StartAt, a.StartAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// ActiveSession returns the most recently started open session. Older open
// sessions, which only a bad import or racing writers can produce, are not active.
func ActiveSession(newestFirst []Session) (Session, bool) {
	for _, s := range newestFirst {
		if s.IsOpen() {
			return s, true
		}
	}
	return Session{}, false
}

func LastCompletedSession(newestFirst []Session) (Session, bool) {
	for _, s := range newestFirst {
		if s.IsCompleted() {
			return s, true
		}
	}
	return Session{}, false
}

// ConsecutiveDayStreak counts the unbroken run of calendar days, ending at
// the most recent completed day, that hold at least one completed session.
func ConsecutiveDayStreak(sessions []Session) int {
	seen := map[string]struct{}{}
	keys := make([]string, 0, len(sessions))
	for _, s := range sessions {
		if s.EndAt == nil {
			continue
		}
		if _, ok := seen[s.DateKey]; ok {
			continue
		}
		seen[s.DateKey] = struct{}{}
		keys = append(keys, s.DateKey)
	}
	if len(keys) == 0 {
		return 0
	}
	slices.Sort(keys)
	slices.Reverse(keys)

	streak := 1
	prev, ok := DayIndex(keys[0])
	if !ok {
		return streak
	}
	for _, key := range keys[1:] {
		current, ok := DayIndex(key)
		if !ok || prev-current != 1 {
			break
		}
		streak++
		prev = current
	}
	return streak
}
