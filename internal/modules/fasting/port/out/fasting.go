package out

import (
	"context"
	"io"

	"macrotrack/internal/modules/fasting/domain"
)

// SessionStore is the per-person log. It performs no validation.
type SessionStore interface {
	ListByPerson(ctx context.Context, personID string) ([]domain.Session, error)
	ListByPersonDateRange(ctx context.Context, personID, fromKey, toKey string) ([]domain.Session, error)
	Put(ctx context.Context, session domain.Session) error
}

// SnapshotStore reads and replaces the whole store at once.
type SnapshotStore interface {
	ListAll(ctx context.Context) ([]domain.Session, error)
	ReplaceAll(ctx context.Context, sessions []domain.Session) error
	Clear(ctx context.Context) error
}

type PayloadCodec interface {
	Format() string
	Encode(w io.Writer, payload domain.Payload) error
	Decode(r io.Reader) (domain.RawPayload, error)
}

type ReportWriter interface {
	WriteReport(ctx context.Context, path string, report domain.Report) (string, error)
}
