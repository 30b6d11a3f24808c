// Package history persists one row per session in a local SQLite file.
package history

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/08351ty/Google-Meet-Bot/internal/domain/meeting"
)

// CurrentSchemaVersion is the latest schema version.
const CurrentSchemaVersion = 1

// ErrNotFound is returned when no session matches an id.
var ErrNotFound = errors.New("session not found")

// Store is the session history.
type Store struct {
	db *sql.DB
}

// Init opens baseDir/history.db, creating and migrating it as needed.
func Init(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(baseDir, "history.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(dbPath, 0o600)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("failed to get user_version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS sessions (
		  id              TEXT PRIMARY KEY,
		  name            TEXT,
		  url             TEXT NOT NULL,
		  dir             TEXT NOT NULL,
		  started_at      INTEGER NOT NULL,
		  ended_at        INTEGER,
		  outcome         TEXT,
		  audio_path      TEXT,
		  audio_ms        INTEGER NOT NULL DEFAULT 0,
		  transcript_path TEXT,
		  summary_path    TEXT,
		  archived_to     TEXT,
		  manual_leave    INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_started
		ON sessions(started_at DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", 1)); err != nil {
			return fmt.Errorf("failed to set user_version: %w", err)
		}
	}
	return nil
}

func newID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Begin inserts a row for a session that is starting and sets m.ID.
func (s *Store) Begin(ctx context.Context, m *meeting.Meeting) error {
	m.ID = newID(m.StartedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name, url, dir, started_at, audio_path) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.URL, m.Dir, m.StartedAt.UnixMilli(), m.AudioPath)
	if err != nil {
		return fmt.Errorf("recording session start: %w", err)
	}
	return nil
}

// Finish stores the final state of m.
func (s *Store) Finish(ctx context.Context, m *meeting.Meeting) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET
		  ended_at = ?, outcome = ?, audio_path = ?, audio_ms = ?,
		  transcript_path = ?, summary_path = ?, archived_to = ?, manual_leave = ?
		WHERE id = ?`,
		nullTime(m.EndedAt), m.Outcome.String(), m.AudioPath, m.AudioDuration.Milliseconds(),
		m.TranscriptPath, m.SummaryPath, m.ArchivedTo, boolInt(m.ManualLeave),
		m.ID)
	if err != nil {
		return fmt.Errorf("recording session end: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, m.ID)
	}
	return nil
}

const selectColumns = `id, name, url, dir, started_at, ended_at, outcome, audio_path, audio_ms,
	transcript_path, summary_path, archived_to, manual_leave`

// Get returns one session.
func (s *Store) Get(ctx context.Context, id string) (*meeting.Meeting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM sessions WHERE id = ?`, id)
	m, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m, err
}

// List returns up to limit sessions, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]meeting.Meeting, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM sessions ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []meeting.Meeting
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (*meeting.Meeting, error) {
	var (
		m                                               meeting.Meeting
		name, outcome, audio, transcript, summary, arch sql.NullString
		started                                         int64
		ended                                           sql.NullInt64
		audioMS                                         int64
		manual                                          int
	)
	if err := r.Scan(&m.ID, &name, &m.URL, &m.Dir, &started, &ended, &outcome, &audio, &audioMS,
		&transcript, &summary, &arch, &manual); err != nil {
		return nil, err
	}
	m.Name = name.String
	m.StartedAt = time.UnixMilli(started)
	if ended.Valid {
		m.EndedAt = time.UnixMilli(ended.Int64)
	}
	m.Outcome = meeting.StateRecording
	if outcome.Valid {
		if st, ok := meeting.ParseState(outcome.String); ok {
			m.Outcome = st
		}
	}
	m.AudioPath = audio.String
	m.AudioDuration = time.Duration(audioMS) * time.Millisecond
	m.TranscriptPath = transcript.String
	m.SummaryPath = summary.String
	m.ArchivedTo = arch.String
	m.ManualLeave = manual != 0
	return &m, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
