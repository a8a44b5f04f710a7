package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"atscore/internal/errors"
	"atscore/internal/types"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS user_summaries (
	user_id       TEXT PRIMARY KEY,
	average_score INTEGER NOT NULL,
	latest_score  INTEGER NOT NULL,
	improvement   INTEGER NOT NULL,
	event_count   INTEGER NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS resume_versions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	score      INTEGER NOT NULL,
	job_id     TEXT,
	scored_at  TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resume_versions_user ON resume_versions(user_id);
CREATE TABLE IF NOT EXISTS submissions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	score      INTEGER NOT NULL,
	job_id     TEXT,
	scored_at  TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_submissions_user ON submissions(user_id);
`

// eventTables maps an event source to the collection holding it
var eventTables = map[string]string{
	types.EventSourceResumeVersion: "resume_versions",
	types.EventSourceSubmission:    "submissions",
}

// SQLiteStore is the default single-file store
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and bootstraps its schema
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "sqlite path is required", nil)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, storeError("create database directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storeError("open database", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, storeError("init schema", err)
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user *types.User) error {
	if err := prepareUser(user, s.now()); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, formatTime(user.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("a user with email %s already exists", user.Email), err)
		}
		return storeError("create user", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*types.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.name, u.created_at,
		        s.average_score, s.latest_score, s.improvement, s.event_count, s.updated_at
		   FROM users u LEFT JOIN user_summaries s ON s.user_id = u.id
		  WHERE u.id = ?`, userID)

	user, err := scanUser(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, storeError("get user", err)
	}
	return user, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]types.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.name, u.created_at,
		        s.average_score, s.latest_score, s.improvement, s.event_count, s.updated_at
		   FROM users u LEFT JOIN user_summaries s ON s.user_id = u.id
		  ORDER BY u.created_at`)
	if err != nil {
		return nil, storeError("list users", err)
	}
	defer rows.Close()

	users := []types.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, storeError("list users", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list users", err)
	}
	return users, nil
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, event *types.ScoredEvent) error {
	if err := prepareEvent(event, s.now()); err != nil {
		return err
	}
	if err := s.requireUser(ctx, event.UserID); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, score, job_id, scored_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		eventTables[event.Source])
	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.UserID, event.Score, nullString(event.JobID),
		nullTime(event.CreatedAt), formatTime(event.ParentCreatedAt),
	)
	if err != nil {
		return storeError("append event", err)
	}
	return nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, userID, source string) ([]types.ScoredEvent, error) {
	if err := checkSource(source); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, user_id, score, job_id, scored_at, created_at FROM %s WHERE user_id = ?`,
		eventTables[source])
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, storeError("list events", err)
	}
	defer rows.Close()

	events := []types.ScoredEvent{}
	for rows.Next() {
		var (
			event     types.ScoredEvent
			jobID     sql.NullString
			scoredAt  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&event.ID, &event.UserID, &event.Score, &jobID, &scoredAt, &createdAt); err != nil {
			return nil, storeError("list events", err)
		}
		event.Source = source
		event.JobID = jobID.String
		if scoredAt.Valid {
			if event.CreatedAt, err = parseTime(scoredAt.String); err != nil {
				return nil, storeError("list events", err)
			}
		}
		if event.ParentCreatedAt, err = parseTime(createdAt); err != nil {
			return nil, storeError("list events", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list events", err)
	}
	return events, nil
}

func (s *SQLiteStore) SaveSummary(ctx context.Context, summary types.UserScoreSummary) error {
	if err := s.requireUser(ctx, summary.UserID); err != nil {
		return err
	}
	if summary.UpdatedAt.IsZero() {
		summary.UpdatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_summaries (user_id, average_score, latest_score, improvement, event_count, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   average_score = excluded.average_score,
		   latest_score  = excluded.latest_score,
		   improvement   = excluded.improvement,
		   event_count   = excluded.event_count,
		   updated_at    = excluded.updated_at`,
		summary.UserID, summary.AverageScore, summary.LatestScore, summary.Improvement,
		summary.EventCount, formatTime(summary.UpdatedAt),
	)
	if err != nil {
		return storeError("save summary", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) requireUser(ctx context.Context, userID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&one)
	if stderrors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return storeError("lookup user", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*types.User, error) {
	var (
		user                            types.User
		createdAt                       string
		average, latest, improve, count sql.NullInt64
		updatedAt                       sql.NullString
	)
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &createdAt,
		&average, &latest, &improve, &count, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		summary := &types.UserScoreSummary{
			UserID:       user.ID,
			AverageScore: int(average.Int64),
			LatestScore:  int(latest.Int64),
			Improvement:  int(improve.Int64),
			EventCount:   int(count.Int64),
		}
		if summary.UpdatedAt, err = parseTime(updatedAt.String); err != nil {
			return nil, err
		}
		user.Summary = summary
	}
	return &user, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
