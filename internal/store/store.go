// Package store persists users, scored events and score summaries.
package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"atscore/internal/config"
	"atscore/internal/errors"
	"atscore/internal/types"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a user does not exist
var ErrNotFound = stderrors.New("not found")

// Store is the persistence boundary of the scoring core. Scored events live
// in two collections, one per event source.
type Store interface {
	CreateUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, userID string) (*types.User, error)
	ListUsers(ctx context.Context) ([]types.User, error)

	// AppendEvent assigns an ID and a parent timestamp when missing
	AppendEvent(ctx context.Context, event *types.ScoredEvent) error
	ListEvents(ctx context.Context, userID, source string) ([]types.ScoredEvent, error)

	// SaveSummary overwrites the user's summary in full
	SaveSummary(ctx context.Context, summary types.UserScoreSummary) error

	Ping(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Driver
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		s, err := OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		p, err := OpenPostgres(ctx, cfg.DSN, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported store driver: %s", cfg.Driver), nil)
	}
}

// prepareUser validates a new user and fills generated fields
func prepareUser(user *types.User, now time.Time) error {
	user.Email = strings.TrimSpace(user.Email)
	user.Name = strings.TrimSpace(user.Name)
	if user.Email == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "user email is required", nil)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	return nil
}

// prepareEvent validates a new event and fills generated fields
func prepareEvent(event *types.ScoredEvent, now time.Time) error {
	if event.UserID == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "event user id is required", nil)
	}
	if err := checkSource(event.Source); err != nil {
		return err
	}
	if event.Score < 0 || event.Score > 100 {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("event score %d is outside 0-100", event.Score), nil)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.ParentCreatedAt.IsZero() {
		event.ParentCreatedAt = now
	}
	return nil
}

func checkSource(source string) error {
	switch source {
	case types.EventSourceResumeVersion, types.EventSourceSubmission:
		return nil
	default:
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("unknown event source: %q", source), nil)
	}
}

// storeError wraps a driver failure as STORE_FAILED
func storeError(op string, err error) error {
	return errors.NewStorageError(errors.ErrCodeStoreFailed, op+" failed", err).WithContext("operation", op)
}
