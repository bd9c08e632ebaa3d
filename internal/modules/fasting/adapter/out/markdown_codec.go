package out

import (
	"fmt"
	"io"
	"strings"
	"time"

	"macrotrack/internal/modules/fasting/domain"
	apperrors "macrotrack/internal/platform/errors"
	"macrotrack/internal/platform/markdown"
)

// MarkdownCodec renders a human-readable export. It cannot be imported back.
type MarkdownCodec struct {
	loc *time.Location
}

func NewMarkdownCodec(loc *time.Location) MarkdownCodec {
	if loc == nil {
		loc = time.Local
	}
	return MarkdownCodec{loc: loc}
}

func (MarkdownCodec) Format() string { return "markdown" }

func (c MarkdownCodec) Encode(w io.Writer, payload domain.Payload) error {
	note := markdown.Note{
		Meta: map[string]any{
			"version":     payload.Version,
			"exported_at": time.UnixMilli(payload.ExportedAt).In(c.loc).Format(time.RFC3339),
			"checksum":    payload.Checksum,
			"sessions":    len(payload.Sessions),
		},
		Body: c.body(payload.Sessions),
	}
	rendered, err := note.Render()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, rendered)
	return err
}

func (MarkdownCodec) Decode(io.Reader) (domain.RawPayload, error) {
	return domain.RawPayload{}, fmt.Errorf("%w: markdown exports cannot be imported", apperrors.ErrUnsupportedFormat)
}

func (c MarkdownCodec) body(sessions []domain.Session) string {
	b := strings.Builder{}
	b.WriteString("# Fasting log export\n")
	if len(sessions) == 0 {
		b.WriteString("\nNo sessions.\n")
		return b.String()
	}
	person := ""
	for _, s := range sessions {
		if s.PersonID != person {
			person = s.PersonID
			fmt.Fprintf(&b, "\n## %s\n\n", person)
			b.WriteString(tableHeader)
		}
		b.WriteString(tableRow(s, c.loc))
	}
	return b.String()
}

const tableHeader = "| Date | Start | End | Duration | ID |\n|---|---|---|---|---|\n"

func tableRow(s domain.Session, loc *time.Location) string {
	end, duration := "open", "—"
	if s.EndAt != nil {
		end = domain.FormatClock(*s.EndAt, loc)
		duration = domain.FormatDuration(s.ElapsedMillis(0))
	}
	return fmt.Sprintf("| %s | %s | %s | %s | %s |\n", s.DateKey, domain.FormatClock(s.StartAt, loc), end, duration, s.ID)
}
