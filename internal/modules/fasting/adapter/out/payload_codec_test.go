package out

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macrotrack/internal/modules/fasting/domain"
	fastingout "macrotrack/internal/modules/fasting/port/out"
	apperrors "macrotrack/internal/platform/errors"
)

func samplePayload() domain.Payload {
	end := int64(1_700_057_600_000)
	return domain.Payload{
		Version:    1,
		ExportedAt: 1_700_000_000_000,
		Checksum:   "abc",
		Sessions: []domain.Session{
			{ID: "a", PersonID: "p1", StartAt: 1_700_000_000_000, EndAt: &end, DateKey: "2023-11-14"},
			{ID: "b", PersonID: "p1", StartAt: 1_700_100_000_000, DateKey: "2023-11-16"},
		},
	}
}

func TestJSONEncodeGolden(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, JSONCodec{}.Encode(buf, samplePayload()))

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "export_json", buf.Bytes())
}

func TestCodecsRoundTripRecords(t *testing.T) {
	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			codec := codecFor(t, format)
			buf := &bytes.Buffer{}
			require.NoError(t, codec.Encode(buf, samplePayload()))

			raw, err := codec.Decode(buf)
			require.NoError(t, err)
			assert.Equal(t, 1, raw.Version)
			assert.Equal(t, "abc", raw.Checksum)
			require.Len(t, raw.Records, 2)

			first, ok := domain.SanitizeRecord(raw.Records[0], time.UTC)
			require.True(t, ok)
			assert.Equal(t, samplePayload().Sessions[0], first)
			second, ok := domain.SanitizeRecord(raw.Records[1], time.UTC)
			require.True(t, ok)
			assert.True(t, second.IsOpen())
		})
	}
}

func TestDecodeAcceptsSessionsAlias(t *testing.T) {
	raw, err := JSONCodec{}.Decode(strings.NewReader(`{"sessions":[{"id":"a","personId":"p1","startAt":1}]}`))
	require.NoError(t, err)
	assert.Len(t, raw.Records, 1)

	raw, err = YAMLCodec{}.Decode(strings.NewReader("sessions:\n  - id: a\n    personId: p1\n    startAt: 1\n"))
	require.NoError(t, err)
	assert.Len(t, raw.Records, 1)
}

func TestDecodeWithoutRecordArrayYieldsNothing(t *testing.T) {
	raw, err := JSONCodec{}.Decode(strings.NewReader(`{"fastingLogs":"nope"}`))
	require.NoError(t, err)
	assert.Empty(t, raw.Records)
}

func TestDecodeRejectsMalformedEnvelope(t *testing.T) {
	_, err := JSONCodec{}.Decode(strings.NewReader(`[1,2,3]`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = JSONCodec{}.Decode(strings.NewReader(`{"fastingLogs":`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = YAMLCodec{}.Decode(strings.NewReader("- just\n- a list\n"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestMarkdownExportIsOneWay(t *testing.T) {
	codec := NewMarkdownCodec(time.UTC)
	buf := &bytes.Buffer{}
	require.NoError(t, codec.Encode(buf, samplePayload()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "---\n"))
	assert.Contains(t, out, "checksum: abc")
	assert.Contains(t, out, "## p1")
	assert.Contains(t, out, "| 2023-11-14 | 22:13 | 14:13 | 16h 0m | a |")
	assert.Contains(t, out, "| 2023-11-16 | 02:00 | open | — | b |")

	_, err := codec.Decode(strings.NewReader(out))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
}

func codecFor(t *testing.T, format string) fastingout.PayloadCodec {
	t.Helper()
	for _, c := range NewPayloadCodecs(time.UTC) {
		if c.Format() == format {
			return c
		}
	}
	t.Fatalf("no codec for %s", format)
	return nil
}
