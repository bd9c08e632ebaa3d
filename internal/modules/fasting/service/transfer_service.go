package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"macrotrack/internal/modules/fasting/domain"
	fastingout "macrotrack/internal/modules/fasting/port/out"
	"macrotrack/internal/platform/canon"
	"macrotrack/internal/platform/clock"
	apperrors "macrotrack/internal/platform/errors"
	"macrotrack/internal/platform/logging"
)

const DefaultFormat = "json"

type TransferOptions struct {
	Location      *time.Location
	ReconcileOpen bool
	Logger        *slog.Logger
}

// TransferService moves the whole store to and from a portable payload.
// Imports are untrusted: malformed records are dropped, never fatal.
type TransferService struct {
	clock  clock.Clock
	store  fastingout.SnapshotStore
	codecs map[string]fastingout.PayloadCodec
	opts   TransferOptions
}

func NewTransferService(clk clock.Clock, store fastingout.SnapshotStore, codecs []fastingout.PayloadCodec, opts TransferOptions) *TransferService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	byFormat := make(map[string]fastingout.PayloadCodec, len(codecs))
	for _, c := range codecs {
		byFormat[c.Format()] = c
	}
	return &TransferService{clock: clk, store: store, codecs: byFormat, opts: opts}
}

func (s *TransferService) Export(ctx context.Context) (domain.Payload, error) {
	sessions, err := s.store.ListAll(ctx)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("export sessions: %w", err)
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	checksum, err := canon.Digest(sessions)
	if err != nil {
		return domain.Payload{}, err
	}
	return domain.Payload{
		Version:    domain.SchemaVersion,
		ExportedAt: clock.Millis(s.clock.Now()),
		Checksum:   checksum,
		Sessions:   sessions,
	}, nil
}

func (s *TransferService) ExportTo(ctx context.Context, w io.Writer, format string) (domain.Payload, error) {
	codec, err := s.codec(format)
	if err != nil {
		return domain.Payload{}, err
	}
	payload, err := s.Export(ctx)
	if err != nil {
		return domain.Payload{}, err
	}
	if err := codec.Encode(w, payload); err != nil {
		return domain.Payload{}, fmt.Errorf("encode %s payload: %w", codec.Format(), err)
	}
	s.opts.Logger.Info("export completed", "format", codec.Format(), "sessions", len(payload.Sessions))
	return payload, nil
}

// Import replaces the store with every acceptable record of raw.
func (s *TransferService) Import(ctx context.Context, raw domain.RawPayload) (domain.ImportSummary, error) {
	summary := domain.ImportSummary{}
	if raw.Version > domain.SchemaVersion {
		summary.NewerVersion = true
		s.opts.Logger.Warn("import payload written by a newer version", "version", raw.Version, "supported", domain.SchemaVersion)
	}
	if raw.Checksum != "" {
		digest, err := canon.Digest(recordsOrEmpty(raw.Records))
		if err != nil || digest != raw.Checksum {
			summary.ChecksumMismatch = true
			s.opts.Logger.Warn("import checksum does not match payload", "expected", raw.Checksum, "actual", digest)
		}
	}

	accepted := make([]domain.Session, 0, len(raw.Records))
	for _, record := range raw.Records {
		session, ok := domain.SanitizeRecord(record, s.opts.Location)
		if !ok {
			summary.Rejected++
			continue
		}
		accepted = append(accepted, session)
	}
	accepted, summary.Duplicates = domain.DedupeByID(accepted)
	if summary.Duplicates > 0 {
		s.opts.Logger.Warn("import payload repeats session ids; last occurrence kept", "count", summary.Duplicates)
	}
	if s.opts.ReconcileOpen {
		accepted, summary.Reconciled = domain.ReconcileOpen(accepted)
		if summary.Reconciled > 0 {
			s.opts.Logger.Warn("closed surplus open sessions during import", "count", summary.Reconciled)
		}
	}

	if err := s.store.ReplaceAll(ctx, accepted); err != nil {
		return domain.ImportSummary{}, fmt.Errorf("import sessions: %w", err)
	}
	summary.Accepted = len(accepted)
	s.opts.Logger.Info("import completed", "accepted", summary.Accepted, "rejected", summary.Rejected, "duplicates", summary.Duplicates)
	return summary, nil
}

func (s *TransferService) ImportFrom(ctx context.Context, r io.Reader, format string) (domain.ImportSummary, error) {
	codec, err := s.codec(format)
	if err != nil {
		return domain.ImportSummary{}, err
	}
	raw, err := codec.Decode(r)
	if err != nil {
		return domain.ImportSummary{}, err
	}
	return s.Import(ctx, raw)
}

// Wipe deletes every session of every person.
func (s *TransferService) Wipe(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("wipe sessions: %w", err)
	}
	s.opts.Logger.Info("all sessions deleted")
	return nil
}

func (s *TransferService) codec(format string) (fastingout.PayloadCodec, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = DefaultFormat
	}
	codec, ok := s.codecs[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format)
	}
	return codec, nil
}

func recordsOrEmpty(records []any) []any {
	if records == nil {
		return []any{}
	}
	return records
}
