package dto

import (
	"io"
	"time"
)

type SessionInput struct {
	PersonID string
	// Now overrides the clock when non-zero.
	Now time.Time
}

type SessionOutput struct {
	ID         string
	PersonID   string
	StartAt    int64
	EndAt      *int64
	DateKey    string
	Open       bool
	DurationMs int64
}

type EndOutput struct {
	Ended   bool
	Session SessionOutput
}

type ToggleOutput struct {
	Action  string
	Session SessionOutput
}

const (
	ActionStarted = "started"
	ActionEnded   = "ended"
)

type HistoryInput struct {
	PersonID string
	FromKey  string
	ToKey    string
	Limit    int
}

type StatusInput struct {
	PersonID    string
	Now         time.Time
	PresetHours float64
}

type StatusOutput struct {
	PersonID       string
	Active         *SessionOutput
	LastCompleted  *SessionOutput
	Streak         int
	CTALabel       string
	DurationLabel  string
	TargetEndLabel string
}

type ExportInput struct {
	Format string
	Writer io.Writer
}

type ExportOutput struct {
	Format   string
	Count    int
	Checksum string
}

type ImportInput struct {
	Format string
	Reader io.Reader
}

type ImportOutput struct {
	Accepted         int
	Rejected         int
	Duplicates       int
	Reconciled       int
	ChecksumMismatch bool
	NewerVersion     bool
}

type ReportInput struct {
	PersonID string
	NotePath string
	Recent   int
}

type ReportOutput struct {
	Path   string
	Streak int
}
