package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxInstantMillis is the widest instant a calendar date can be derived for
// (±100,000,000 days around the epoch).
const maxInstantMillis = 8.64e15

// Payload is the portable export form of the whole store.
type Payload struct {
	Version    int       `json:"version" yaml:"version"`
	ExportedAt int64     `json:"exportedAt" yaml:"exportedAt"`
	Checksum   string    `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	Sessions   []Session `json:"fastingLogs" yaml:"fastingLogs"`
}

// RawPayload is an untrusted payload as decoded from disk, before validation.
type RawPayload struct {
	Version  int
	Checksum string
	Records  []any
}

type ImportSummary struct {
	Accepted         int
	Rejected         int
	Duplicates       int
	Reconciled       int
	ChecksumMismatch bool
	NewerVersion     bool
}

// SanitizeRecord validates one untrusted record and coerces it into a Session.
// It reports false when the record must be dropped.
func SanitizeRecord(raw any, loc *time.Location) (Session, bool) {
	fields, ok := raw.(map[string]any)
	if !ok {
		return Session{}, false
	}
	id, ok := identifier(fields["id"])
	if !ok {
		return Session{}, false
	}
	personID, ok := identifier(fields["personId"])
	if !ok {
		return Session{}, false
	}
	startAt, ok := instant(fields["startAt"])
	if !ok {
		return Session{}, false
	}

	session := Session{ID: id, PersonID: personID, StartAt: startAt}
	if rawEnd, present := fields["endAt"]; present && rawEnd != nil {
		endAt, ok := instant(rawEnd)
		if !ok {
			endAt = startAt
		}
		session.EndAt = &endAt
	}

	if key, ok := fields["dateKey"].(string); ok && ValidDateKey(key) {
		session.DateKey = key
	} else {
		session.DateKey = DateKeyOf(startAt, loc)
	}
	return session, true
}

// DedupeByID keeps the last occurrence of every id, in first-seen order, and
// reports how many earlier occurrences were overwritten.
func DedupeByID(sessions []Session) ([]Session, int) {
	index := make(map[string]int, len(sessions))
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if i, seen := index[s.ID]; seen {
			out[i] = s
			continue
		}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	return out, len(sessions) - len(out)
}

// ReconcileOpen keeps only the newest open session per person and closes the
// older ones at their own start time. It returns the sessions and how many were closed.
func ReconcileOpen(sessions []Session) ([]Session, int) {
	newestOpen := map[string]int{}
	for i, s := range sessions {
		if !s.IsOpen() {
			continue
		}
		j, ok := newestOpen[s.PersonID]
		if !ok || s.StartAt > sessions[j].StartAt || (s.StartAt == sessions[j].StartAt && s.ID > sessions[j].ID) {
			newestOpen[s.PersonID] = i
		}
	}

	out := make([]Session, len(sessions))
	closed := 0
	for i, s := range sessions {
		if s.IsOpen() && newestOpen[s.PersonID] != i {
			s = s.Close(s.StartAt)
			closed++
		}
		out[i] = s
	}
	return out, closed
}

func identifier(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case json.Number:
		return t.String(), t.String() != "" && t.String() != "0"
	case int:
		return strconv.Itoa(t), t != 0
	case int64:
		return strconv.FormatInt(t, 10), t != 0
	case uint64:
		return strconv.FormatUint(t, 10), t != 0
	case float64:
		if t == 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

func instant(v any) (int64, bool) {
	var f float64
	switch t := v.(type) {
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint64:
		f = float64(t)
	case float64:
		f = t
	case json.Number:
		parsed, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxInstantMillis {
		return 0, false
	}
	return int64(f), true
}
