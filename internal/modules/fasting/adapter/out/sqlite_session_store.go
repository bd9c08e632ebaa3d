package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"macrotrack/internal/modules/fasting/domain"
	apperrors "macrotrack/internal/platform/errors"

	_ "modernc.org/sqlite"
)

// SQLiteSessionStore keeps the fasting log in a single SQLite file. It is a
// dumb keyed container: callers own validation and invariants.
type SQLiteSessionStore struct {
	db *sql.DB
}

func OpenSQLiteSessionStore(ctx context.Context, dbPath string) (*SQLiteSessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, unavailable("create db dir", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, unavailable("open sqlite", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteSessionStore{db: db}
	if err := store.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteSessionStore) init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("connect sqlite", err)
	}
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
	} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return unavailable("apply pragma", err)
		}
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS meta (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS fasting_logs (
  id TEXT PRIMARY KEY,
  person_id TEXT NOT NULL,
  start_at INTEGER NOT NULL,
  end_at INTEGER,
  date_key TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fasting_logs_person_start ON fasting_logs(person_id, start_at);
CREATE INDEX IF NOT EXISTS idx_fasting_logs_person_date ON fasting_logs(person_id, date_key);
CREATE INDEX IF NOT EXISTS idx_fasting_logs_person_end ON fasting_logs(person_id, end_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return unavailable("create fasting schema", err)
	}
	return s.checkSchemaVersion(ctx)
}

func (s *SQLiteSessionStore) checkSchemaVersion(ctx context.Context) error {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, strconv.Itoa(domain.SchemaVersion)); err != nil {
			return unavailable("record schema version", err)
		}
		return nil
	}
	if err != nil {
		return unavailable("read schema version", err)
	}
	version, err := strconv.Atoi(raw)
	if err != nil || version > domain.SchemaVersion {
		return fmt.Errorf("%w: %w: store has %q, binary supports %d", apperrors.ErrStorageUnavailable, apperrors.ErrUnsupportedSchema, raw, domain.SchemaVersion)
	}
	return nil
}

func (s *SQLiteSessionStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteSessionStore) ListByPerson(ctx context.Context, personID string) ([]domain.Session, error) {
	return s.query(ctx, "list sessions", `
SELECT id, person_id, start_at, end_at, date_key
FROM fasting_logs
WHERE person_id = ?
ORDER BY start_at DESC, id DESC`, personID)
}

// ListByPersonDateRange scans the (person_id, date_key) index. Empty bounds are open.
func (s *SQLiteSessionStore) ListByPersonDateRange(ctx context.Context, personID, fromKey, toKey string) ([]domain.Session, error) {
	clauses := []string{"person_id = ?"}
	args := []any{personID}
	if fromKey != "" {
		clauses = append(clauses, "date_key >= ?")
		args = append(args, fromKey)
	}
	if toKey != "" {
		clauses = append(clauses, "date_key <= ?")
		args = append(args, toKey)
	}
	stmt := `
SELECT id, person_id, start_at, end_at, date_key
FROM fasting_logs
WHERE ` + strings.Join(clauses, " AND ") + `
ORDER BY start_at DESC, id DESC`
	return s.query(ctx, "list sessions by date", stmt, args...)
}

func (s *SQLiteSessionStore) ListAll(ctx context.Context) ([]domain.Session, error) {
	return s.query(ctx, "list all sessions", `
SELECT id, person_id, start_at, end_at, date_key
FROM fasting_logs
ORDER BY person_id ASC, start_at ASC, id ASC`)
}

func (s *SQLiteSessionStore) Put(ctx context.Context, session domain.Session) error {
	if _, err := s.db.ExecContext(ctx, upsertStmt, upsertArgs(session)...); err != nil {
		return unavailable("upsert session", err)
	}
	return nil
}

// ReplaceAll clears the table and writes sessions inside one transaction.
func (s *SQLiteSessionStore) ReplaceAll(ctx context.Context, sessions []domain.Session) (err error) {
	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin replace", err)
	}
	defer func() {
		if err != nil {
			_ = txn.Rollback()
		}
	}()

	if _, err = txn.ExecContext(ctx, `DELETE FROM fasting_logs`); err != nil {
		return unavailable("clear sessions", err)
	}
	stmt, err := txn.PrepareContext(ctx, upsertStmt)
	if err != nil {
		return unavailable("prepare replace", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, session := range sessions {
		if _, err = stmt.ExecContext(ctx, upsertArgs(session)...); err != nil {
			return unavailable("replay session "+session.ID, err)
		}
	}
	if err = txn.Commit(); err != nil {
		return unavailable("commit replace", err)
	}
	return nil
}

func (s *SQLiteSessionStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM fasting_logs`); err != nil {
		return unavailable("clear sessions", err)
	}
	return nil
}

const upsertStmt = `
INSERT INTO fasting_logs (id, person_id, start_at, end_at, date_key)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  person_id=excluded.person_id,
  start_at=excluded.start_at,
  end_at=excluded.end_at,
  date_key=excluded.date_key;
`

func upsertArgs(session domain.Session) []any {
	var endAt sql.NullInt64
	if session.EndAt != nil {
		endAt = sql.NullInt64{Int64: *session.EndAt, Valid: true}
	}
	return []any{session.ID, session.PersonID, session.StartAt, endAt, session.DateKey}
}

func (s *SQLiteSessionStore) query(ctx context.Context, op, stmt string, args ...any) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.Session{}
	for rows.Next() {
		var (
			session domain.Session
			endAt   sql.NullInt64
		)
		if err := rows.Scan(&session.ID, &session.PersonID, &session.StartAt, &endAt, &session.DateKey); err != nil {
			return nil, unavailable(op, err)
		}
		if endAt.Valid {
			end := endAt.Int64
			session.EndAt = &end
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrStorageUnavailable, err)
}
