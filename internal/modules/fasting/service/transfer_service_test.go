package service_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"macrotrack/internal/modules/fasting/domain"
	fastingout "macrotrack/internal/modules/fasting/port/out"
	"macrotrack/internal/modules/fasting/service"
	apperrors "macrotrack/internal/platform/errors"
)

func newTransferService(store *memStore, reconcile bool) *service.TransferService {
	clk := &fakeClock{now: time.UnixMilli(t0)}
	return service.NewTransferService(clk, store, []fastingout.PayloadCodec{jsonCodec{}}, service.TransferOptions{
		Location:      time.UTC,
		ReconcileOpen: reconcile,
	})
}

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	source := newMemStore()
	fasting := newFastingService(source)
	for i, person := range []string{"p1", "p2", "p1", "p1"} {
		at := time.UnixMilli(t0 + int64(i)*86_400_000)
		if _, _, err := fasting.Toggle(ctx, person, at); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}
	if _, _, err := fasting.End(ctx, "p2", time.UnixMilli(t0+90_000_000)); err != nil {
		t.Fatalf("end p2: %v", err)
	}

	buf := &bytes.Buffer{}
	payload, err := newTransferService(source, true).ExportTo(ctx, buf, "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if payload.Checksum == "" || len(payload.Sessions) != 3 {
		t.Fatalf("unexpected payload %+v", payload)
	}

	target := newMemStore()
	summary, err := newTransferService(target, true).ImportFrom(ctx, buf, "json")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.Accepted != 3 || summary.Rejected != 0 || summary.ChecksumMismatch || summary.Reconciled != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	for _, person := range []string{"p1", "p2"} {
		want, _ := fasting.List(ctx, person)
		got, _ := newFastingService(target).List(ctx, person)
		if !reflect.DeepEqual(want, got) {
			t.Fatalf("%s: round trip mismatch\nwant %+v\ngot  %+v", person, want, got)
		}
	}
}

func TestImportDropsMalformedRecords(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	store.rows["stale"] = domain.Session{ID: "stale", PersonID: "p9", StartAt: 1, DateKey: "1970-01-01"}
	raw := decodeJSON(`{"fastingLogs":[
		{"id":"a","personId":"p1","startAt":1700000000000,"endAt":1700003600000,"dateKey":"2023-11-14"},
		{"id":"b","startAt":1700100000000},
		{"id":"c","personId":"p1","startAt":"1700200000000","endAt":null},
		{"id":"d","personId":"p2","startAt":1700300000000,"dateKey":42}
	]}`)
	summary, err := newTransferService(store, true).Import(context.Background(), raw)
	if err != nil {
		t.Fatalf("import should not fail on bad records: %v", err)
	}
	if summary.Accepted != 3 || summary.Rejected != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, ok := store.rows["stale"]; ok {
		t.Fatalf("import must replace, not merge")
	}
	if _, ok := store.rows["b"]; ok {
		t.Fatalf("record without person must be dropped")
	}
	if store.rows["d"].DateKey != "2023-11-18" {
		t.Fatalf("expected recomputed date key, got %q", store.rows["d"].DateKey)
	}
	if !store.rows["c"].IsOpen() {
		t.Fatalf("null endAt must import as open")
	}
}

func TestImportReportsChecksumMismatch(t *testing.T) {
	t.Parallel()
	raw := decodeJSON(`{"checksum":"deadbeef","fastingLogs":[{"id":"a","personId":"p1","startAt":1}]}`)
	summary, err := newTransferService(newMemStore(), true).Import(context.Background(), raw)
	if err != nil {
		t.Fatalf("mismatch must not fail the import: %v", err)
	}
	if !summary.ChecksumMismatch || summary.Accepted != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestImportReconcilesMultipleOpenSessions(t *testing.T) {
	t.Parallel()
	payload := `{"fastingLogs":[
		{"id":"old","personId":"p1","startAt":1000},
		{"id":"new","personId":"p1","startAt":5000}
	]}`

	store := newMemStore()
	summary, err := newTransferService(store, true).Import(context.Background(), decodeJSON(payload))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.Reconciled != 1 || store.rows["old"].IsOpen() || !store.rows["new"].IsOpen() {
		t.Fatalf("expected old session closed, summary %+v", summary)
	}

	raw := newMemStore()
	summary, err = newTransferService(raw, false).Import(context.Background(), decodeJSON(payload))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.Reconciled != 0 || !raw.rows["old"].IsOpen() {
		t.Fatalf("reconciliation disabled must keep both open")
	}
	active, ok, _ := newFastingService(raw).Active(context.Background(), "p1")
	if !ok || active.ID != "new" {
		t.Fatalf("newest open session should win at read time, got %+v", active)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	t.Parallel()
	svc := newTransferService(newMemStore(), true)
	if _, err := svc.ExportTo(context.Background(), &bytes.Buffer{}, "csv"); !errors.Is(err, apperrors.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
	if _, err := svc.ImportFrom(context.Background(), strings.NewReader("{}"), "xml"); !errors.Is(err, apperrors.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
}

func TestWipeClearsEverything(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newMemStore()
	if _, err := newFastingService(store).Start(ctx, "p1", time.UnixMilli(t0)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := newTransferService(store, true).Wipe(ctx); err != nil {
		t.Fatalf("wipe: %v", err)
	}
	payload, err := newTransferService(store, true).Export(ctx)
	if err != nil || len(payload.Sessions) != 0 {
		t.Fatalf("expected empty export, got %+v err=%v", payload, err)
	}
}

func TestImportKeepsLastDuplicateBeforeReconciling(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	raw := decodeJSON(`{"fastingLogs":[
		{"id":"x","personId":"p1","startAt":100},
		{"id":"y","personId":"p1","startAt":80},
		{"id":"x","personId":"p1","startAt":10,"endAt":20}
	]}`)
	summary, err := newTransferService(store, true).Import(context.Background(), raw)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.Accepted != 2 || summary.Duplicates != 1 || summary.Reconciled != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if store.rows["x"].IsOpen() || !store.rows["y"].IsOpen() {
		t.Fatalf("last x must win and y must stay open, got %+v", store.rows)
	}
}

func TestImportClosesUnreadableEndAtStart(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	raw := decodeJSON(`{"fastingLogs":[{"id":"a","personId":"p1","startAt":1700000000000,"endAt":"oops"}]}`)
	summary, err := newTransferService(store, true).Import(context.Background(), raw)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	got := store.rows["a"]
	if summary.Accepted != 1 || summary.Rejected != 0 || got.EndAt == nil || *got.EndAt != got.StartAt {
		t.Fatalf("expected record closed at its start, summary %+v row %+v", summary, got)
	}
}

func TestImportFlagsNewerPayloadVersion(t *testing.T) {
	t.Parallel()
	raw := decodeJSON(`{"version":99,"fastingLogs":[{"id":"a","personId":"p1","startAt":1}]}`)
	summary, err := newTransferService(newMemStore(), true).Import(context.Background(), raw)
	if err != nil {
		t.Fatalf("newer version must not fail the import: %v", err)
	}
	if !summary.NewerVersion || summary.Accepted != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	current := decodeJSON(`{"version":1,"fastingLogs":[]}`)
	summary, err = newTransferService(newMemStore(), true).Import(context.Background(), current)
	if err != nil || summary.NewerVersion {
		t.Fatalf("current version must not be flagged, summary %+v err=%v", summary, err)
	}
}
