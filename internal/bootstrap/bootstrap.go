package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	fastinginadapter "macrotrack/internal/modules/fasting/adapter/in"
	fastingoutadapter "macrotrack/internal/modules/fasting/adapter/out"
	fastingservice "macrotrack/internal/modules/fasting/service"
	fastingusecase "macrotrack/internal/modules/fasting/usecase"
	"macrotrack/internal/platform/clock"
	"macrotrack/internal/platform/config"
	"macrotrack/internal/platform/id"
	"macrotrack/internal/platform/logging"
	"macrotrack/internal/platform/tx"
	uiapp "macrotrack/internal/ui/app"
)

type App struct {
	Config     config.Config
	FastingCLI fastinginadapter.CLIHandler

	store *fastingoutadapter.SQLiteSessionStore
}

// New opens the store under cfg.DataDir and wires the fasting module.
// Callers must Close the returned App.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	clk := clock.SystemClock{}

	store, err := fastingoutadapter.OpenSQLiteSessionStore(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	logger.Debug("session store opened", "path", cfg.DBPath)

	fastingSvc := fastingservice.NewFastingService(clk, id.UUID{}, store, cfg.Location, logger)
	transferSvc := fastingservice.NewTransferService(clk, store, fastingoutadapter.NewPayloadCodecs(cfg.Location), fastingservice.TransferOptions{
		Location:      cfg.Location,
		ReconcileOpen: cfg.ReconcileOpen,
		Logger:        logger,
	})
	fastingUC := fastingusecase.NewInteractor(fastingSvc, transferSvc, tx.NewKeyedMutex(), fastingusecase.Options{
		PresetHours: cfg.PresetHours,
		Reports:     fastingoutadapter.NewNoteReportWriter(cfg.DataDir, cfg.Location),
	})

	return &App{
		Config:     cfg,
		FastingCLI: fastinginadapter.NewCLIHandler(fastingUC),
		store:      store,
	}, nil
}

func (a *App) Close() error {
	if a == nil || a.store == nil {
		return nil
	}
	return a.store.Close()
}

func RunTUI(app *App, personID string) error {
	model := uiapp.NewModel(app.FastingCLI, personID, app.Config.PresetHours, app.Config.Location)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
