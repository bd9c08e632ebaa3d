package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"macrotrack/internal/modules/fasting/domain"
	"macrotrack/internal/platform/markdown"
)

const reportBlock = "fasting"

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// NoteReportWriter keeps a generated summary block up to date inside a
// markdown note, leaving the rest of the note alone.
type NoteReportWriter struct {
	dir string
	loc *time.Location
}

func NewNoteReportWriter(dir string, loc *time.Location) *NoteReportWriter {
	if loc == nil {
		loc = time.Local
	}
	return &NoteReportWriter{dir: dir, loc: loc}
}

// WriteReport refreshes the note at path, or fasting-<person>.md in the
// writer's directory when path is empty, and returns the path written.
func (w *NoteReportWriter) WriteReport(_ context.Context, path string, report domain.Report) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = filepath.Join(w.dir, "fasting-"+noteSlug(report.PersonID)+".md")
	}

	note := markdown.Note{Meta: map[string]any{}, Body: "# Fasting\n"}
	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		note, err = markdown.ParseNote(string(existing))
		if err != nil {
			return "", fmt.Errorf("parse note %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return "", fmt.Errorf("read note: %w", err)
	}

	note.Meta["person_id"] = report.PersonID
	note.Meta["streak"] = report.Streak
	note.Meta["updated_at"] = time.UnixMilli(report.GeneratedAt).In(w.loc).Format(time.RFC3339)
	note.ReplaceBlock(reportBlock, w.render(report))

	rendered, err := note.Render()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create note dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write note: %w", err)
	}
	return path, nil
}

func (w *NoteReportWriter) render(report domain.Report) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "- Streak: %d day(s)\n", report.Streak)
	if report.Active != nil {
		fmt.Fprintf(&b, "- Fasting since %s %s (%s so far)\n",
			report.Active.DateKey,
			domain.FormatClock(report.Active.StartAt, w.loc),
			domain.FormatDuration(report.Active.ElapsedMillis(report.GeneratedAt)))
	} else {
		b.WriteString("- Not fasting\n")
	}
	if report.LastCompleted != nil {
		fmt.Fprintf(&b, "- Last fast: %s\n", domain.FormatDuration(report.LastCompleted.ElapsedMillis(0)))
	}
	if len(report.Recent) > 0 {
		b.WriteString("\n")
		b.WriteString(tableHeader)
		for _, s := range report.Recent {
			b.WriteString(tableRow(s, w.loc))
		}
	}
	return b.String()
}

func noteSlug(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = nonAlphaNum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "person"
	}
	return s
}
