package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"macrotrack/internal/modules/fasting/domain"
	fastingout "macrotrack/internal/modules/fasting/port/out"
	"macrotrack/internal/platform/clock"
	apperrors "macrotrack/internal/platform/errors"
	"macrotrack/internal/platform/id"
	"macrotrack/internal/platform/logging"
)

// FastingService guards the log invariants: at most one open session per
// person, and no session ending before it started. Every mutation is
// idempotent so replaying a start or end never corrupts the log.
type FastingService struct {
	clock  clock.Clock
	idGen  id.Generator
	store  fastingout.SessionStore
	loc    *time.Location
	logger *slog.Logger
}

func NewFastingService(clk clock.Clock, idGen id.Generator, store fastingout.SessionStore, loc *time.Location, logger *slog.Logger) *FastingService {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &FastingService{clock: clk, idGen: idGen, store: store, loc: loc, logger: logger}
}

func (s *FastingService) Location() *time.Location {
	return s.loc
}

// Now resolves an optional caller-supplied instant against the clock.
func (s *FastingService) Now(at time.Time) time.Time {
	if at.IsZero() {
		return s.clock.Now()
	}
	return at
}

// List returns the person's log, newest start first.
func (s *FastingService) List(ctx context.Context, personID string) ([]domain.Session, error) {
	if err := requirePerson(personID); err != nil {
		return nil, err
	}
	logs, err := s.store.ListByPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	domain.SortNewestFirst(logs)
	return logs, nil
}

func (s *FastingService) ListRange(ctx context.Context, personID, fromKey, toKey string) ([]domain.Session, error) {
	if err := requirePerson(personID); err != nil {
		return nil, err
	}
	for _, key := range []string{fromKey, toKey} {
		if key != "" && !domain.ValidDateKey(key) {
			return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD", apperrors.ErrInvalidInput, key)
		}
	}
	if fromKey == "" && toKey == "" {
		return s.List(ctx, personID)
	}
	logs, err := s.store.ListByPersonDateRange(ctx, personID, fromKey, toKey)
	if err != nil {
		return nil, err
	}
	domain.SortNewestFirst(logs)
	return logs, nil
}

func (s *FastingService) Active(ctx context.Context, personID string) (domain.Session, bool, error) {
	logs, err := s.List(ctx, personID)
	if err != nil {
		return domain.Session{}, false, err
	}
	active, ok := domain.ActiveSession(logs)
	return active, ok, nil
}

func (s *FastingService) LastCompleted(ctx context.Context, personID string) (domain.Session, bool, error) {
	logs, err := s.List(ctx, personID)
	if err != nil {
		return domain.Session{}, false, err
	}
	last, ok := domain.LastCompletedSession(logs)
	return last, ok, nil
}

func (s *FastingService) Streak(ctx context.Context, personID string) (int, error) {
	logs, err := s.List(ctx, personID)
	if err != nil {
		return 0, err
	}
	return domain.ConsecutiveDayStreak(logs), nil
}

// Start opens a session at now unless one is already open, in which case the
// open session is returned unchanged.
func (s *FastingService) Start(ctx context.Context, personID string, now time.Time) (domain.Session, error) {
	active, ok, err := s.Active(ctx, personID)
	if err != nil {
		return domain.Session{}, err
	}
	if ok {
		s.logger.Debug("start ignored: session already open", "person", personID, "session", active.ID)
		return active, nil
	}

	startAt := clock.Millis(now)
	session := domain.Session{
		ID:       s.idGen.New(),
		PersonID: personID,
		StartAt:  startAt,
		DateKey:  domain.DateKeyOf(startAt, s.loc),
	}
	if err := s.store.Put(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("start session: %w", err)
	}
	s.logger.Debug("session started", "person", personID, "session", session.ID, "date", session.DateKey)
	return session, nil
}

// End closes the open session at max(now, startAt). With nothing open it
// reports false and leaves the store untouched.
func (s *FastingService) End(ctx context.Context, personID string, now time.Time) (domain.Session, bool, error) {
	active, ok, err := s.Active(ctx, personID)
	if err != nil {
		return domain.Session{}, false, err
	}
	if !ok {
		s.logger.Debug("end ignored: no open session", "person", personID)
		return domain.Session{}, false, nil
	}

	ended := active.Close(clock.Millis(now))
	if err := s.store.Put(ctx, ended); err != nil {
		return domain.Session{}, false, fmt.Errorf("end session: %w", err)
	}
	s.logger.Debug("session ended", "person", personID, "session", ended.ID, "duration_ms", ended.ElapsedMillis(0))
	return ended, true, nil
}

// Toggle ends the open session if there is one and starts a new one otherwise.
// started reports which of the two happened.
func (s *FastingService) Toggle(ctx context.Context, personID string, now time.Time) (domain.Session, bool, error) {
	_, open, err := s.Active(ctx, personID)
	if err != nil {
		return domain.Session{}, false, err
	}
	if open {
		ended, _, err := s.End(ctx, personID, now)
		return ended, false, err
	}
	started, err := s.Start(ctx, personID, now)
	return started, true, err
}

// Report gathers the read models for one person into a single snapshot.
func (s *FastingService) Report(ctx context.Context, personID string, now time.Time, recent int) (domain.Report, error) {
	logs, err := s.List(ctx, personID)
	if err != nil {
		return domain.Report{}, err
	}
	report := domain.Report{
		PersonID:    personID,
		GeneratedAt: clock.Millis(now),
		Streak:      domain.ConsecutiveDayStreak(logs),
	}
	if active, ok := domain.ActiveSession(logs); ok {
		report.Active = &active
	}
	if last, ok := domain.LastCompletedSession(logs); ok {
		report.LastCompleted = &last
	}
	if recent > 0 && len(logs) > recent {
		logs = logs[:recent]
	}
	report.Recent = logs
	return report, nil
}

func requirePerson(personID string) error {
	if strings.TrimSpace(personID) == "" {
		return fmt.Errorf("%w: person id is required", apperrors.ErrInvalidInput)
	}
	return nil
}
