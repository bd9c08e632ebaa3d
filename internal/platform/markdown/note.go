package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const separator = "---\n"

// Note is a markdown document with optional YAML frontmatter.
type Note struct {
	Meta map[string]any
	Body string
}

func ParseNote(content string) (Note, error) {
	if !strings.HasPrefix(content, separator) {
		return Note{Meta: map[string]any{}, Body: content}, nil
	}
	rest := strings.TrimPrefix(content, separator)
	idx := strings.Index(rest, "\n"+separator)
	if idx < 0 {
		return Note{}, fmt.Errorf("invalid frontmatter: missing closing separator")
	}
	meta := map[string]any{}
	if err := yaml.Unmarshal([]byte(rest[:idx]), &meta); err != nil {
		return Note{}, fmt.Errorf("unmarshal frontmatter: %w", err)
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return Note{Meta: meta, Body: rest[idx+len("\n"+separator):]}, nil
}

func (n Note) Render() (string, error) {
	buf := bytes.Buffer{}
	if len(n.Meta) > 0 {
		raw, err := yaml.Marshal(n.Meta)
		if err != nil {
			return "", fmt.Errorf("marshal frontmatter: %w", err)
		}
		buf.WriteString(separator)
		buf.Write(raw)
		buf.WriteString(separator)
		if !strings.HasPrefix(n.Body, "\n") {
			buf.WriteString("\n")
		}
	}
	buf.WriteString(n.Body)
	return buf.String(), nil
}

// BlockMarkers returns the HTML comments delimiting the generated block called name.
func BlockMarkers(name string) (string, string) {
	return "<!-- macrotrack:" + name + ":start -->", "<!-- macrotrack:" + name + ":end -->"
}

// ReplaceBlock swaps the generated block in place, or appends it when absent.
// Text outside the markers is left untouched.
func (n *Note) ReplaceBlock(name, generated string) {
	startMarker, endMarker := BlockMarkers(name)
	block := startMarker + "\n" + strings.TrimRight(generated, "\n") + "\n" + endMarker

	start := strings.Index(n.Body, startMarker)
	end := strings.Index(n.Body, endMarker)
	switch {
	case start >= 0 && end > start:
		n.Body = n.Body[:start] + block + n.Body[end+len(endMarker):]
	case strings.TrimSpace(n.Body) == "":
		n.Body = block + "\n"
	case strings.HasSuffix(n.Body, "\n"):
		n.Body = n.Body + "\n" + block + "\n"
	default:
		n.Body = n.Body + "\n\n" + block + "\n"
	}
}
