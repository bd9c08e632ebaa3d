package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	fastingout "macrotrack/internal/modules/fasting/adapter/out"
	"macrotrack/internal/modules/fasting/dto"
	fastingin "macrotrack/internal/modules/fasting/port/in"
	"macrotrack/internal/modules/fasting/service"
	"macrotrack/internal/modules/fasting/usecase"
	"macrotrack/internal/platform/clock"
	apperrors "macrotrack/internal/platform/errors"
	"macrotrack/internal/platform/id"
	"macrotrack/internal/platform/tx"
)

const t0 = int64(1_700_000_000_000)

func newInteractor(t *testing.T, dir string) fastingin.Usecase {
	t.Helper()
	store, err := fastingout.OpenSQLiteSessionStore(context.Background(), filepath.Join(dir, "macrotrack.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	clk := clock.Fixed{At: time.UnixMilli(t0)}
	fasting := service.NewFastingService(clk, id.UUID{}, store, time.UTC, nil)
	transfer := service.NewTransferService(clk, store, fastingout.NewPayloadCodecs(time.UTC), service.TransferOptions{
		Location:      time.UTC,
		ReconcileOpen: true,
	})
	return usecase.NewInteractor(fasting, transfer, tx.NewKeyedMutex(), usecase.Options{
		Reports: fastingout.NewNoteReportWriter(dir, time.UTC),
	})
}

func at(offset int64) dto.SessionInput {
	return dto.SessionInput{PersonID: "p1", Now: time.UnixMilli(t0 + offset)}
}

func TestEndToEndFastingScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	uc := newInteractor(t, t.TempDir())

	started, err := uc.Start(ctx, at(0))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	active, err := uc.GetActive(ctx, "p1")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.ID != started.ID || active.StartAt != t0 || active.EndAt != nil || !active.Open {
		t.Fatalf("unexpected active session %+v", active)
	}

	ended, err := uc.End(ctx, at(57_600_000))
	if err != nil || !ended.Ended {
		t.Fatalf("end: %+v err=%v", ended, err)
	}
	if *ended.Session.EndAt != t0+57_600_000 || ended.Session.DurationMs != 57_600_000 {
		t.Fatalf("unexpected ended session %+v", ended.Session)
	}
	last, err := uc.GetLastCompleted(ctx, "p1")
	if err != nil || last.ID != started.ID {
		t.Fatalf("expected last completed %s, got %+v err=%v", started.ID, last, err)
	}
	if _, err := uc.GetActive(ctx, "p1"); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("expected no active session, got %v", err)
	}
}

func TestEndWithoutActiveSessionIsNoop(t *testing.T) {
	t.Parallel()
	uc := newInteractor(t, t.TempDir())
	out, err := uc.End(context.Background(), at(0))
	if err != nil || out.Ended {
		t.Fatalf("expected no-op end, got %+v err=%v", out, err)
	}
	if _, err := uc.GetLastCompleted(context.Background(), "p1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestToggleReportsAction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	uc := newInteractor(t, t.TempDir())

	first, err := uc.Toggle(ctx, at(0))
	if err != nil || first.Action != dto.ActionStarted {
		t.Fatalf("first toggle: %+v err=%v", first, err)
	}
	second, err := uc.Toggle(ctx, at(60_000))
	if err != nil || second.Action != dto.ActionEnded || second.Session.ID != first.Session.ID {
		t.Fatalf("second toggle: %+v err=%v", second, err)
	}
}

func TestConcurrentStartsOpenOneSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	uc := newInteractor(t, t.TempDir())

	var wg sync.WaitGroup
	ids := make([]string, 16)
	for n := range ids {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			out, err := uc.Start(ctx, at(int64(n)))
			if err != nil {
				t.Errorf("start: %v", err)
				return
			}
			ids[n] = out.ID
		}(n)
	}
	wg.Wait()
	for _, got := range ids[1:] {
		if got != ids[0] {
			t.Fatalf("concurrent starts opened more than one session: %v", ids)
		}
	}
	history, err := uc.History(ctx, dto.HistoryInput{PersonID: "p1"})
	if err != nil || len(history) != 1 {
		t.Fatalf("expected one stored session, got %d err=%v", len(history), err)
	}
}

func TestStatusLabels(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	uc := newInteractor(t, t.TempDir())

	idle, err := uc.Status(ctx, dto.StatusInput{PersonID: "p1", Now: time.UnixMilli(t0)})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if idle.CTALabel != "Start fast" || idle.DurationLabel != "Last fast duration: —" || idle.TargetEndLabel != "" {
		t.Fatalf("unexpected idle status %+v", idle)
	}

	if _, err := uc.Start(ctx, at(0)); err != nil {
		t.Fatalf("start: %v", err)
	}
	running, err := uc.Status(ctx, dto.StatusInput{PersonID: "p1", Now: time.UnixMilli(t0 + 9*3_600_000 + 5*60_000)})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if running.CTALabel != "End fast" || running.DurationLabel != "Active duration: 9h 5m" || running.TargetEndLabel != "Target end: 14:13" {
		t.Fatalf("unexpected running status %+v", running)
	}

	if _, err := uc.End(ctx, at(57_600_000)); err != nil {
		t.Fatalf("end: %v", err)
	}
	done, err := uc.Status(ctx, dto.StatusInput{PersonID: "p1", Now: time.UnixMilli(t0 + 60_000_000), PresetHours: 12})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if done.CTALabel != "Start fast" || done.DurationLabel != "Last fast duration: 16h 0m" || done.Streak != 1 || done.Active != nil {
		t.Fatalf("unexpected finished status %+v", done)
	}
}

func TestHistoryLimitAndRange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	uc := newInteractor(t, t.TempDir())
	for day := int64(0); day < 4; day++ {
		if _, err := uc.Toggle(ctx, at(day*86_400_000)); err != nil {
			t.Fatalf("toggle: %v", err)
		}
		if _, err := uc.Toggle(ctx, at(day*86_400_000+3_600_000)); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}

	limited, err := uc.History(ctx, dto.HistoryInput{PersonID: "p1", Limit: 2})
	if err != nil || len(limited) != 2 || limited[0].DateKey != "2023-11-17" {
		t.Fatalf("unexpected limited history %+v err=%v", limited, err)
	}
	ranged, err := uc.History(ctx, dto.HistoryInput{PersonID: "p1", FromKey: "2023-11-15", ToKey: "2023-11-16"})
	if err != nil || len(ranged) != 2 {
		t.Fatalf("unexpected ranged history %+v err=%v", ranged, err)
	}
	if _, err := uc.History(ctx, dto.HistoryInput{PersonID: "p1", FromKey: "yesterday"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	streak, err := uc.Streak(ctx, "p1")
	if err != nil || streak != 4 {
		t.Fatalf("expected streak 4, got %d err=%v", streak, err)
	}
}

func TestExportImportThroughSQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	source := newInteractor(t, t.TempDir())
	if _, err := source.Toggle(ctx, at(0)); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := source.Toggle(ctx, at(3_600_000)); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := source.Start(ctx, dto.SessionInput{PersonID: "p2", Now: time.UnixMilli(t0)}); err != nil {
		t.Fatalf("start p2: %v", err)
	}

	buf := &bytes.Buffer{}
	exported, err := source.Export(ctx, dto.ExportInput{Writer: buf})
	if err != nil || exported.Count != 2 || exported.Format != "json" || exported.Checksum == "" {
		t.Fatalf("unexpected export %+v err=%v", exported, err)
	}

	target := newInteractor(t, t.TempDir())
	imported, err := target.Import(ctx, dto.ImportInput{Format: "json", Reader: buf})
	if err != nil || imported.Accepted != 2 || imported.Rejected != 0 || imported.ChecksumMismatch {
		t.Fatalf("unexpected import %+v err=%v", imported, err)
	}
	active, err := target.GetActive(ctx, "p2")
	if err != nil || active.StartAt != t0 {
		t.Fatalf("expected p2 active after import, got %+v err=%v", active, err)
	}

	if err := target.Wipe(ctx); err != nil {
		t.Fatalf("wipe: %v", err)
	}
	if _, err := target.GetActive(ctx, "p2"); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("expected empty store after wipe, got %v", err)
	}
}

func TestImportWithRepeatedIDsKeepsLiveSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	uc := newInteractor(t, t.TempDir())
	payload := `{"fastingLogs":[
		{"id":"x","personId":"p1","startAt":100},
		{"id":"y","personId":"p1","startAt":80},
		{"id":"x","personId":"p1","startAt":10,"endAt":20}
	]}`
	imported, err := uc.Import(ctx, dto.ImportInput{Format: "json", Reader: strings.NewReader(payload)})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported.Accepted != 2 || imported.Duplicates != 1 || imported.Reconciled != 0 {
		t.Fatalf("unexpected import %+v", imported)
	}
	active, err := uc.GetActive(ctx, "p1")
	if err != nil || active.ID != "y" {
		t.Fatalf("expected y to stay open, got %+v err=%v", active, err)
	}
	history, err := uc.History(ctx, dto.HistoryInput{PersonID: "p1"})
	if err != nil || len(history) != 2 {
		t.Fatalf("expected 2 stored sessions, got %d err=%v", len(history), err)
	}
}

func TestReportWritesNote(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	uc := newInteractor(t, dir)
	if _, err := uc.Toggle(ctx, at(0)); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := uc.Toggle(ctx, at(57_600_000)); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	out, err := uc.Report(ctx, dto.ReportInput{PersonID: "p1"})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if out.Path != filepath.Join(dir, "fasting-p1.md") || out.Streak != 1 {
		t.Fatalf("unexpected report output %+v", out)
	}
	raw, err := os.ReadFile(out.Path)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	if !strings.Contains(string(raw), "- Last fast: 16h 0m") {
		t.Fatalf("expected last fast in note, got:\n%s", raw)
	}
}
