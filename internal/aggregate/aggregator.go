// Package aggregate folds a user's scored events into the rolling score
// summary stored on the user record.
package aggregate

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"atscore/internal/errors"
	"atscore/internal/store"
	"atscore/internal/types"

	"golang.org/x/sync/errgroup"
)

// Improvement bounds
const (
	MinImprovement = -10
	MaxImprovement = 10
)

// Recompute outcomes reported to Metrics
const (
	OutcomeUpdated      = "updated"
	OutcomeUserNotFound = "user_not_found"
	OutcomeReadFailure  = "read_failure"
	OutcomeWriteFailure = "write_failure"
)

// Store is the subset of the persistence layer the aggregator needs
type Store interface {
	GetUser(ctx context.Context, userID string) (*types.User, error)
	ListEvents(ctx context.Context, userID, source string) ([]types.ScoredEvent, error)
	SaveSummary(ctx context.Context, summary types.UserScoreSummary) error
}

// Metrics counts recomputes by outcome
type Metrics interface {
	RecordRecompute(ctx context.Context, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) RecordRecompute(context.Context, string) {}

// Aggregator recomputes user score summaries
type Aggregator struct {
	store   Store
	logger  *errors.Logger
	metrics Metrics
	now     func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithLogger sets the logger
func WithLogger(logger *errors.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(metrics Metrics) Option {
	return func(a *Aggregator) {
		if metrics != nil {
			a.metrics = metrics
		}
	}
}

// WithRandSource fixes the source the improvement value is drawn from
func WithRandSource(src rand.Source) Option {
	return func(a *Aggregator) {
		if src != nil {
			a.rng = rand.New(src)
		}
	}
}

// WithClock sets the clock used for UpdatedAt
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregator creates an aggregator over s
func NewAggregator(s Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:   s,
		logger:  errors.Discard(),
		metrics: noopMetrics{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Recompute rebuilds and overwrites the user's summary from both event
// collections. It returns nil when the user does not exist or when any read
// or the write fails; failures are logged, never returned.
func (a *Aggregator) Recompute(ctx context.Context, userID string) *types.UserScoreSummary {
	logger := a.logger.With("user_id", userID)

	user, err := a.store.GetUser(ctx, userID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			logger.Warn("Score recompute skipped: user not found")
			a.metrics.RecordRecompute(ctx, OutcomeUserNotFound)
			return nil
		}
		a.readFailure(ctx, logger, err)
		return nil
	}

	var versions, submissions []types.ScoredEvent
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events, err := a.store.ListEvents(gctx, user.ID, types.EventSourceResumeVersion)
		if err != nil {
			return fmt.Errorf("read resume versions: %w", err)
		}
		versions = events
		return nil
	})
	g.Go(func() error {
		events, err := a.store.ListEvents(gctx, user.ID, types.EventSourceSubmission)
		if err != nil {
			return fmt.Errorf("read submissions: %w", err)
		}
		submissions = events
		return nil
	})
	if err := g.Wait(); err != nil {
		a.readFailure(ctx, logger, err)
		return nil
	}

	events := Merge(versions, submissions)
	summary := Summarize(user.ID, events, a.improvement())
	summary.UpdatedAt = a.now()

	if err := a.store.SaveSummary(ctx, summary); err != nil {
		logger.LogError(err, "Failed to save score summary")
		a.metrics.RecordRecompute(ctx, OutcomeWriteFailure)
		return nil
	}

	logger.Info("Score summary recomputed",
		"events", summary.EventCount,
		"latest_score", summary.LatestScore,
		"average_score", summary.AverageScore)
	a.metrics.RecordRecompute(ctx, OutcomeUpdated)
	return &summary
}

func (a *Aggregator) readFailure(ctx context.Context, logger *errors.Logger, err error) {
	logger.LogError(errors.NewStorageError(errors.ErrCodeAggregationReadFailure,
		"could not read scored events; summary left unchanged", err), "Score recompute abandoned")
	a.metrics.RecordRecompute(ctx, OutcomeReadFailure)
}

// improvement draws uniformly from [MinImprovement, MaxImprovement]
func (a *Aggregator) improvement() int {
	span := MaxImprovement - MinImprovement + 1
	if a.rng == nil {
		return rand.IntN(span) + MinImprovement
	}
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	return a.rng.IntN(span) + MinImprovement
}

// Merge combines event lists and sorts them newest first by EffectiveTime.
// Events with equal times keep their input order.
func Merge(lists ...[]types.ScoredEvent) []types.ScoredEvent {
	merged := []types.ScoredEvent{}
	for _, l := range lists {
		merged = append(merged, l...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].EffectiveTime().After(merged[j].EffectiveTime())
	})
	return merged
}

// Summarize derives the summary of newest-first events. An empty list gives
// zero latest and average scores.
func Summarize(userID string, events []types.ScoredEvent, improvement int) types.UserScoreSummary {
	summary := types.UserScoreSummary{
		UserID:      userID,
		Improvement: improvement,
		EventCount:  len(events),
	}
	if len(events) == 0 {
		return summary
	}

	total := 0
	for _, e := range events {
		total += e.Score
	}
	summary.LatestScore = events[0].Score
	summary.AverageScore = int(math.Round(float64(total) / float64(len(events))))
	return summary
}
