package out

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"macrotrack/internal/modules/fasting/domain"
	fastingout "macrotrack/internal/modules/fasting/port/out"
	apperrors "macrotrack/internal/platform/errors"
)

// recordKeys lists the envelope keys that may hold the session array, in priority order.
var recordKeys = []string{"fastingLogs", "sessions"}

// NewPayloadCodecs returns every codec the transfer service understands.
func NewPayloadCodecs(loc *time.Location) []fastingout.PayloadCodec {
	return []fastingout.PayloadCodec{JSONCodec{}, YAMLCodec{}, NewMarkdownCodec(loc)}
}

type JSONCodec struct{}

func (JSONCodec) Format() string { return "json" }

func (JSONCodec) Encode(w io.Writer, payload domain.Payload) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// Decode keeps numbers as json.Number so ids and instants survive untouched
// until the record sanitiser coerces them.
func (JSONCodec) Decode(r io.Reader) (domain.RawPayload, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	envelope := map[string]any{}
	if err := dec.Decode(&envelope); err != nil {
		return domain.RawPayload{}, fmt.Errorf("%w: decode json payload: %v", apperrors.ErrInvalidInput, err)
	}
	return rawFromEnvelope(envelope), nil
}

type YAMLCodec struct{}

func (YAMLCodec) Format() string { return "yaml" }

func (YAMLCodec) Encode(w io.Writer, payload domain.Payload) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(payload)
}

func (YAMLCodec) Decode(r io.Reader) (domain.RawPayload, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return domain.RawPayload{}, fmt.Errorf("read yaml payload: %w", err)
	}
	envelope := map[string]any{}
	if err := yaml.Unmarshal(content, &envelope); err != nil {
		return domain.RawPayload{}, fmt.Errorf("%w: decode yaml payload: %v", apperrors.ErrInvalidInput, err)
	}
	return rawFromEnvelope(envelope), nil
}

// rawFromEnvelope pulls the record array out of a decoded envelope. A missing
// or non-array record field yields no records.
func rawFromEnvelope(envelope map[string]any) domain.RawPayload {
	raw := domain.RawPayload{}
	for _, key := range recordKeys {
		if records, ok := envelope[key].([]any); ok {
			raw.Records = records
			break
		}
	}
	if checksum, ok := envelope["checksum"].(string); ok {
		raw.Checksum = checksum
	}
	switch v := envelope["version"].(type) {
	case int:
		raw.Version = v
	case json.Number:
		if n, err := strconv.Atoi(v.String()); err == nil {
			raw.Version = n
		}
	}
	return raw
}
