package aggregate

import (
	"context"
	"time"

	"atscore/internal/errors"
	"atscore/internal/types"
)

// EventStore adds event appends to Store
type EventStore interface {
	Store
	AppendEvent(ctx context.Context, event *types.ScoredEvent) error
}

// Recorder appends scored events and keeps the user's summary current
type Recorder struct {
	store      EventStore
	aggregator *Aggregator
	logger     *errors.Logger
	now        func() time.Time
}

// NewRecorder creates a recorder that recomputes through aggregator
func NewRecorder(s EventStore, aggregator *Aggregator, logger *errors.Logger) *Recorder {
	if logger == nil {
		logger = errors.Discard()
	}
	return &Recorder{
		store:      s,
		aggregator: aggregator,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Recording is the outcome of one recorded event. Summary is nil when the
// recompute after the append did not succeed.
type Recording struct {
	Event   types.ScoredEvent       `json:"event"`
	Summary *types.UserScoreSummary `json:"summary"`
}

// RecordResumeVersion stores the score of a saved resume version
func (r *Recorder) RecordResumeVersion(ctx context.Context, userID string, score int) (*Recording, error) {
	return r.record(ctx, types.ScoredEvent{
		UserID: userID,
		Score:  score,
		Source: types.EventSourceResumeVersion,
	})
}

// RecordSubmission stores the score of an analyzed job submission
func (r *Recorder) RecordSubmission(ctx context.Context, userID, jobID string, score int) (*Recording, error) {
	return r.record(ctx, types.ScoredEvent{
		UserID: userID,
		Score:  score,
		Source: types.EventSourceSubmission,
		JobID:  jobID,
	})
}

// record fails only when the append fails. A failed recompute is logged by
// the aggregator and leaves Summary nil.
func (r *Recorder) record(ctx context.Context, event types.ScoredEvent) (*Recording, error) {
	now := r.now()
	event.CreatedAt = now
	event.ParentCreatedAt = now

	if err := r.store.AppendEvent(ctx, &event); err != nil {
		return nil, err
	}
	r.logger.Debug("Scored event recorded",
		"user_id", event.UserID, "event_id", event.ID, "source", event.Source, "score", event.Score)

	return &Recording{
		Event:   event,
		Summary: r.aggregator.Recompute(ctx, event.UserID),
	}, nil
}
