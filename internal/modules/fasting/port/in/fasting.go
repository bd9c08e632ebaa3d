package in

import (
	"context"

	"macrotrack/internal/modules/fasting/dto"
)

type Usecase interface {
	Start(ctx context.Context, input dto.SessionInput) (dto.SessionOutput, error)
	End(ctx context.Context, input dto.SessionInput) (dto.EndOutput, error)
	Toggle(ctx context.Context, input dto.SessionInput) (dto.ToggleOutput, error)
	GetActive(ctx context.Context, personID string) (dto.SessionOutput, error)
	GetLastCompleted(ctx context.Context, personID string) (dto.SessionOutput, error)
	Streak(ctx context.Context, personID string) (int, error)
	History(ctx context.Context, input dto.HistoryInput) ([]dto.SessionOutput, error)
	Status(ctx context.Context, input dto.StatusInput) (dto.StatusOutput, error)
	Export(ctx context.Context, input dto.ExportInput) (dto.ExportOutput, error)
	Import(ctx context.Context, input dto.ImportInput) (dto.ImportOutput, error)
	Report(ctx context.Context, input dto.ReportInput) (dto.ReportOutput, error)
	Wipe(ctx context.Context) error
}
