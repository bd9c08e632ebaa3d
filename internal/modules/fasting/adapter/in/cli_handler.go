package in

import (
	"context"
	"io"
	"time"

	"macrotrack/internal/modules/fasting/dto"
	fastingin "macrotrack/internal/modules/fasting/port/in"
)

// CLIHandler adapts command-line and TUI arguments to the fasting usecase.
type CLIHandler struct {
	usecase fastingin.Usecase
}

func NewCLIHandler(usecase fastingin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Start(ctx context.Context, personID string) (dto.SessionOutput, error) {
	return h.usecase.Start(ctx, dto.SessionInput{PersonID: personID})
}

func (h CLIHandler) End(ctx context.Context, personID string) (dto.EndOutput, error) {
	return h.usecase.End(ctx, dto.SessionInput{PersonID: personID})
}

func (h CLIHandler) Toggle(ctx context.Context, personID string) (dto.ToggleOutput, error) {
	return h.usecase.Toggle(ctx, dto.SessionInput{PersonID: personID})
}

func (h CLIHandler) GetActive(ctx context.Context, personID string) (dto.SessionOutput, error) {
	return h.usecase.GetActive(ctx, personID)
}

func (h CLIHandler) GetLastCompleted(ctx context.Context, personID string) (dto.SessionOutput, error) {
	return h.usecase.GetLastCompleted(ctx, personID)
}

func (h CLIHandler) Streak(ctx context.Context, personID string) (int, error) {
	return h.usecase.Streak(ctx, personID)
}

func (h CLIHandler) History(ctx context.Context, personID, from, to string, limit int) ([]dto.SessionOutput, error) {
	return h.usecase.History(ctx, dto.HistoryInput{PersonID: personID, FromKey: from, ToKey: to, Limit: limit})
}

// Status uses the wall clock; presetHours <= 0 falls back to the configured preset.
func (h CLIHandler) Status(ctx context.Context, personID string, presetHours float64) (dto.StatusOutput, error) {
	return h.usecase.Status(ctx, dto.StatusInput{PersonID: personID, Now: time.Time{}, PresetHours: presetHours})
}

func (h CLIHandler) Export(ctx context.Context, w io.Writer, format string) (dto.ExportOutput, error) {
	return h.usecase.Export(ctx, dto.ExportInput{Format: format, Writer: w})
}

func (h CLIHandler) Import(ctx context.Context, r io.Reader, format string) (dto.ImportOutput, error) {
	return h.usecase.Import(ctx, dto.ImportInput{Format: format, Reader: r})
}

func (h CLIHandler) Report(ctx context.Context, personID, notePath string, recent int) (dto.ReportOutput, error) {
	return h.usecase.Report(ctx, dto.ReportInput{PersonID: personID, NotePath: notePath, Recent: recent})
}

func (h CLIHandler) Wipe(ctx context.Context) error {
	return h.usecase.Wipe(ctx)
}
