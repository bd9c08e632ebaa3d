package usecase

import (
	"context"
	"fmt"
	"time"

	"macrotrack/internal/modules/fasting/domain"
	"macrotrack/internal/modules/fasting/dto"
	fastingin "macrotrack/internal/modules/fasting/port/in"
	fastingout "macrotrack/internal/modules/fasting/port/out"
	"macrotrack/internal/modules/fasting/service"
	"macrotrack/internal/platform/clock"
	apperrors "macrotrack/internal/platform/errors"
	"macrotrack/internal/platform/tx"
)

const (
	DefaultPresetHours = 16
	defaultRecent      = 10

	ctaStart = "Start fast"
	ctaEnd   = "End fast"
)

type Options struct {
	PresetHours float64
	Reports     fastingout.ReportWriter
}

type Interactor struct {
	fasting  *service.FastingService
	transfer *service.TransferService
	locks    tx.Manager
	opts     Options
}

func NewInteractor(fasting *service.FastingService, transfer *service.TransferService, locks tx.Manager, opts Options) fastingin.Usecase {
	if locks == nil {
		locks = tx.NewKeyedMutex()
	}
	if opts.PresetHours <= 0 {
		opts.PresetHours = DefaultPresetHours
	}
	return &Interactor{fasting: fasting, transfer: transfer, locks: locks, opts: opts}
}

func (i *Interactor) Start(ctx context.Context, input dto.SessionInput) (dto.SessionOutput, error) {
	now := i.fasting.Now(input.Now)
	var out dto.SessionOutput
	err := i.locks.Within(ctx, input.PersonID, func(ctx context.Context) error {
		session, err := i.fasting.Start(ctx, input.PersonID, now)
		if err != nil {
			return err
		}
		out = toOutput(session, now)
		return nil
	})
	return out, err
}

func (i *Interactor) End(ctx context.Context, input dto.SessionInput) (dto.EndOutput, error) {
	now := i.fasting.Now(input.Now)
	var out dto.EndOutput
	err := i.locks.Within(ctx, input.PersonID, func(ctx context.Context) error {
		session, ended, err := i.fasting.End(ctx, input.PersonID, now)
		if err != nil {
			return err
		}
		out.Ended = ended
		if ended {
			out.Session = toOutput(session, now)
		}
		return nil
	})
	return out, err
}

func (i *Interactor) Toggle(ctx context.Context, input dto.SessionInput) (dto.ToggleOutput, error) {
	now := i.fasting.Now(input.Now)
	var out dto.ToggleOutput
	err := i.locks.Within(ctx, input.PersonID, func(ctx context.Context) error {
		session, started, err := i.fasting.Toggle(ctx, input.PersonID, now)
		if err != nil {
			return err
		}
		out.Action = dto.ActionEnded
		if started {
			out.Action = dto.ActionStarted
		}
		out.Session = toOutput(session, now)
		return nil
	})
	return out, err
}

func (i *Interactor) GetActive(ctx context.Context, personID string) (dto.SessionOutput, error) {
	active, ok, err := i.fasting.Active(ctx, personID)
	if err != nil {
		return dto.SessionOutput{}, err
	}
	if !ok {
		return dto.SessionOutput{}, apperrors.ErrNoActiveSession
	}
	return toOutput(active, i.fasting.Now(time.Time{})), nil
}

func (i *Interactor) GetLastCompleted(ctx context.Context, personID string) (dto.SessionOutput, error) {
	last, ok, err := i.fasting.LastCompleted(ctx, personID)
	if err != nil {
		return dto.SessionOutput{}, err
	}
	if !ok {
		return dto.SessionOutput{}, fmt.Errorf("%w: no completed session for %s", apperrors.ErrNotFound, personID)
	}
	return toOutput(last, time.Time{}), nil
}

func (i *Interactor) Streak(ctx context.Context, personID string) (int, error) {
	return i.fasting.Streak(ctx, personID)
}

func (i *Interactor) History(ctx context.Context, input dto.HistoryInput) ([]dto.SessionOutput, error) {
	if input.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must be non-negative", apperrors.ErrInvalidInput)
	}
	logs, err := i.fasting.ListRange(ctx, input.PersonID, input.FromKey, input.ToKey)
	if err != nil {
		return nil, err
	}
	if input.Limit > 0 && len(logs) > input.Limit {
		logs = logs[:input.Limit]
	}
	now := i.fasting.Now(time.Time{})
	out := make([]dto.SessionOutput, 0, len(logs))
	for _, session := range logs {
		out = append(out, toOutput(session, now))
	}
	return out, nil
}

// Status builds what a timer screen shows for one person at now.
func (i *Interactor) Status(ctx context.Context, input dto.StatusInput) (dto.StatusOutput, error) {
	now := i.fasting.Now(input.Now)
	preset := input.PresetHours
	if preset <= 0 {
		preset = i.opts.PresetHours
	}
	logs, err := i.fasting.List(ctx, input.PersonID)
	if err != nil {
		return dto.StatusOutput{}, err
	}

	out := dto.StatusOutput{
		PersonID: input.PersonID,
		Streak:   domain.ConsecutiveDayStreak(logs),
		CTALabel: ctaStart,
	}
	if last, ok := domain.LastCompletedSession(logs); ok {
		lastOut := toOutput(last, now)
		out.LastCompleted = &lastOut
	}
	active, ok := domain.ActiveSession(logs)
	switch {
	case ok:
		activeOut := toOutput(active, now)
		out.Active = &activeOut
		out.CTALabel = ctaEnd
		out.DurationLabel = "Active duration: " + domain.FormatDuration(activeOut.DurationMs)
		target := active.StartAt + int64(preset*float64(time.Hour/time.Millisecond))
		out.TargetEndLabel = "Target end: " + domain.FormatClock(target, i.fasting.Location())
	case out.LastCompleted != nil:
		out.DurationLabel = "Last fast duration: " + domain.FormatDuration(out.LastCompleted.DurationMs)
	default:
		out.DurationLabel = "Last fast duration: —"
	}
	return out, nil
}

func (i *Interactor) Export(ctx context.Context, input dto.ExportInput) (dto.ExportOutput, error) {
	if input.Writer == nil {
		return dto.ExportOutput{}, fmt.Errorf("%w: export writer is required", apperrors.ErrInvalidInput)
	}
	format := input.Format
	if format == "" {
		format = service.DefaultFormat
	}
	payload, err := i.transfer.ExportTo(ctx, input.Writer, format)
	if err != nil {
		return dto.ExportOutput{}, err
	}
	return dto.ExportOutput{Format: format, Count: len(payload.Sessions), Checksum: payload.Checksum}, nil
}

func (i *Interactor) Import(ctx context.Context, input dto.ImportInput) (dto.ImportOutput, error) {
	if input.Reader == nil {
		return dto.ImportOutput{}, fmt.Errorf("%w: import reader is required", apperrors.ErrInvalidInput)
	}
	summary, err := i.transfer.ImportFrom(ctx, input.Reader, input.Format)
	if err != nil {
		return dto.ImportOutput{}, err
	}
	return dto.ImportOutput{
		Accepted:         summary.Accepted,
		Rejected:         summary.Rejected,
		Duplicates:       summary.Duplicates,
		Reconciled:       summary.Reconciled,
		ChecksumMismatch: summary.ChecksumMismatch,
		NewerVersion:     summary.NewerVersion,
	}, nil
}

func (i *Interactor) Report(ctx context.Context, input dto.ReportInput) (dto.ReportOutput, error) {
	if i.opts.Reports == nil {
		return dto.ReportOutput{}, fmt.Errorf("report writer is not configured")
	}
	recent := input.Recent
	if recent <= 0 {
		recent = defaultRecent
	}
	report, err := i.fasting.Report(ctx, input.PersonID, i.fasting.Now(time.Time{}), recent)
	if err != nil {
		return dto.ReportOutput{}, err
	}
	path, err := i.opts.Reports.WriteReport(ctx, input.NotePath, report)
	if err != nil {
		return dto.ReportOutput{}, err
	}
	return dto.ReportOutput{Path: path, Streak: report.Streak}, nil
}

func (i *Interactor) Wipe(ctx context.Context) error {
	return i.transfer.Wipe(ctx)
}

// toOutput measures open sessions against now; a zero now leaves their duration at 0.
func toOutput(session domain.Session, now time.Time) dto.SessionOutput {
	out := dto.SessionOutput{
		ID:       session.ID,
		PersonID: session.PersonID,
		StartAt:  session.StartAt,
		EndAt:    session.EndAt,
		DateKey:  session.DateKey,
		Open:     session.IsOpen(),
	}
	switch {
	case !out.Open:
		out.DurationMs = session.ElapsedMillis(0)
	case !now.IsZero():
		out.DurationMs = session.ElapsedMillis(clock.Millis(now))
	}
	return out
}
