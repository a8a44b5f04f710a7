package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"atscore/internal/errors"
	"atscore/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS user_summaries (
	user_id       TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	average_score INTEGER NOT NULL,
	latest_score  INTEGER NOT NULL,
	improvement   INTEGER NOT NULL,
	event_count   INTEGER NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS resume_versions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	score      INTEGER NOT NULL,
	job_id     TEXT,
	scored_at  TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resume_versions_user ON resume_versions(user_id);
CREATE TABLE IF NOT EXISTS submissions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	score      INTEGER NOT NULL,
	job_id     TEXT,
	scored_at  TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_submissions_user ON submissions(user_id);
`

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore keeps the same collections in PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool to dsn and bootstraps the schema
func OpenPostgres(ctx context.Context, dsn string, maxConns int32) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "invalid postgres dsn", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, storeError("connect to database", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storeError("ping database", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, storeError("init schema", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) CreateUser(ctx context.Context, user *types.User) error {
	if err := prepareUser(user, time.Now().UTC()); err != nil {
		return err
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, created_at) VALUES ($1, $2, $3, $4)`,
		user.ID, user.Email, user.Name, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("a user with email %s already exists", user.Email), err)
		}
		return storeError("create user", err)
	}
	return nil
}

func (p *PostgresStore) GetUser(ctx context.Context, userID string) (*types.User, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.name, u.created_at,
		        s.average_score, s.latest_score, s.improvement, s.event_count, s.updated_at
		   FROM users u LEFT JOIN user_summaries s ON s.user_id = u.id
		  WHERE u.id = $1`, userID)

	user, err := scanPgUser(row)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, storeError("get user", err)
	}
	return user, nil
}

func (p *PostgresStore) ListUsers(ctx context.Context) ([]types.User, error) {
	rows, err := p.pool.Query(ctx,
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
		user, err := scanPgUser(rows)
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

func (p *PostgresStore) AppendEvent(ctx context.Context, event *types.ScoredEvent) error {
	if err := prepareEvent(event, time.Now().UTC()); err != nil {
		return err
	}

	var scoredAt *time.Time
	if !event.CreatedAt.IsZero() {
		scoredAt = &event.CreatedAt
	}
	var jobID *string
	if event.JobID != "" {
		jobID = &event.JobID
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, score, job_id, scored_at, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		eventTables[event.Source])
	_, err := p.pool.Exec(ctx, query, event.ID, event.UserID, event.Score, jobID, scoredAt, event.ParentCreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("user %s: %w", event.UserID, ErrNotFound)
		}
		return storeError("append event", err)
	}
	return nil
}

func (p *PostgresStore) ListEvents(ctx context.Context, userID, source string) ([]types.ScoredEvent, error) {
	if err := checkSource(source); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, user_id, score, job_id, scored_at, created_at FROM %s WHERE user_id = $1`,
		eventTables[source])
	rows, err := p.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, storeError("list events", err)
	}
	defer rows.Close()

	events := []types.ScoredEvent{}
	for rows.Next() {
		var (
			event    types.ScoredEvent
			jobID    *string
			scoredAt *time.Time
		)
		if err := rows.Scan(&event.ID, &event.UserID, &event.Score, &jobID, &scoredAt, &event.ParentCreatedAt); err != nil {
			return nil, storeError("list events", err)
		}
		event.Source = source
		if jobID != nil {
			event.JobID = *jobID
		}
		if scoredAt != nil {
			event.CreatedAt = *scoredAt
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list events", err)
	}
	return events, nil
}

func (p *PostgresStore) SaveSummary(ctx context.Context, summary types.UserScoreSummary) error {
	if summary.UpdatedAt.IsZero() {
		summary.UpdatedAt = time.Now().UTC()
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO user_summaries (user_id, average_score, latest_score, improvement, event_count, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
		   average_score = EXCLUDED.average_score,
		   latest_score  = EXCLUDED.latest_score,
		   improvement   = EXCLUDED.improvement,
		   event_count   = EXCLUDED.event_count,
		   updated_at    = EXCLUDED.updated_at`,
		summary.UserID, summary.AverageScore, summary.LatestScore, summary.Improvement,
		summary.EventCount, summary.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("user %s: %w", summary.UserID, ErrNotFound)
		}
		return storeError("save summary", err)
	}
	return nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func scanPgUser(row pgx.Row) (*types.User, error) {
	var (
		user                            types.User
		average, latest, improve, count *int32
		updatedAt                       *time.Time
	)
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt,
		&average, &latest, &improve, &count, &updatedAt); err != nil {
		return nil, err
	}

	if updatedAt != nil {
		user.Summary = &types.UserScoreSummary{
			UserID:       user.ID,
			AverageScore: int(derefInt32(average)),
			LatestScore:  int(derefInt32(latest)),
			Improvement:  int(derefInt32(improve)),
			EventCount:   int(derefInt32(count)),
			UpdatedAt:    *updatedAt,
		}
	}
	return &user, nil
}

func derefInt32(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}
