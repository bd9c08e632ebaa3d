package domain

const SchemaVersion = 1

// Session is one fasting interval. EndAt is nil while the session is open.
// Instants are epoch milliseconds.
type Session struct {
	ID       string `json:"id" yaml:"id"`
	PersonID string `json:"personId" yaml:"personId"`
	StartAt  int64  `json:"startAt" yaml:"startAt"`
	EndAt    *int64 `json:"endAt" yaml:"endAt"`
	DateKey  string `json:"dateKey" yaml:"dateKey"`
}

func (s Session) IsOpen() bool {
	return s.EndAt == nil
}

// IsCompleted reports a closed session with a non-negative duration.
func (s Session) IsCompleted() bool {
	return s.EndAt != nil && *s.EndAt >= s.StartAt
}

// Close sets EndAt to now, clamped so the session never has a negative duration.
func (s Session) Close(now int64) Session {
	end := max(now, s.StartAt)
	s.EndAt = &end
	return s
}

// ElapsedMillis is now-startAt for an open session and endAt-startAt for a
// closed one, never negative.
func (s Session) ElapsedMillis(now int64) int64 {
	end := now
	if s.EndAt != nil {
		end = *s.EndAt
	}
	return max(end-s.StartAt, 0)
}

// Report is a point-in-time summary of one person's log.
type Report struct {
	PersonID      string
	GeneratedAt   int64
	Streak        int
	Active        *Session
	LastCompleted *Session
	Recent        []Session
}
