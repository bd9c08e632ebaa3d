package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"macrotrack/internal/modules/fasting/domain"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

type seqID struct {
	n int
}

func (s *seqID) New() string {
	s.n++
	return fmt.Sprintf("sess-%d", s.n)
}

type memStore struct {
	rows    map[string]domain.Session
	puts    int
	failPut error
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]domain.Session{}}
}

func (m *memStore) ListByPerson(_ context.Context, personID string) ([]domain.Session, error) {
	out := []domain.Session{}
	for _, s := range m.rows {
		if s.PersonID == personID {
			out = append(out, s)
		}
	}
	// deliberately oldest first; the service must order results itself
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt < out[j].StartAt })
	return out, nil
}

func (m *memStore) ListByPersonDateRange(ctx context.Context, personID, fromKey, toKey string) ([]domain.Session, error) {
	all, _ := m.ListByPerson(ctx, personID)
	out := []domain.Session{}
	for _, s := range all {
		if (fromKey == "" || s.DateKey >= fromKey) && (toKey == "" || s.DateKey <= toKey) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) Put(_ context.Context, s domain.Session) error {
	if m.failPut != nil {
		return m.failPut
	}
	m.puts++
	m.rows[s.ID] = s
	return nil
}

func (m *memStore) ListAll(_ context.Context) ([]domain.Session, error) {
	out := make([]domain.Session, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PersonID != out[j].PersonID {
			return out[i].PersonID < out[j].PersonID
		}
		return out[i].StartAt < out[j].StartAt
	})
	return out, nil
}

func (m *memStore) ReplaceAll(_ context.Context, sessions []domain.Session) error {
	m.rows = map[string]domain.Session{}
	for _, s := range sessions {
		m.rows[s.ID] = s
	}
	return nil
}

func (m *memStore) Clear(_ context.Context) error {
	m.rows = map[string]domain.Session{}
	return nil
}

// jsonCodec mirrors the real JSON adapter closely enough for service tests.
type jsonCodec struct{}

func (jsonCodec) Format() string { return "json" }

func (jsonCodec) Encode(w io.Writer, payload domain.Payload) error {
	return json.NewEncoder(w).Encode(payload)
}

func (jsonCodec) Decode(r io.Reader) (domain.RawPayload, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var envelope struct {
		Version     int    `json:"version"`
		Checksum    string `json:"checksum"`
		FastingLogs []any  `json:"fastingLogs"`
	}
	if err := dec.Decode(&envelope); err != nil {
		return domain.RawPayload{}, err
	}
	return domain.RawPayload{Version: envelope.Version, Checksum: envelope.Checksum, Records: envelope.FastingLogs}, nil
}

var errDisk = errors.New("disk full")

func decodeJSON(s string) domain.RawPayload {
	raw, err := jsonCodec{}.Decode(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return raw
}

func encodeJSON(p domain.Payload) *bytes.Buffer {
	buf := &bytes.Buffer{}
	if err := (jsonCodec{}).Encode(buf, p); err != nil {
		panic(err)
	}
	return buf
}
