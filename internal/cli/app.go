package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"atscore/internal/aggregate"
	"atscore/internal/ai"
	"atscore/internal/analysis"
	"atscore/internal/common"
	"atscore/internal/config"
	"atscore/internal/errors"
	"atscore/internal/observability"
	"atscore/internal/server"
	"atscore/internal/store"
	"atscore/internal/types"

	"github.com/spf13/cobra"
)

// app is the wired scoring core shared by the commands
type app struct {
	cfg           *config.Config
	logger        *errors.Logger
	observability *observability.ObservabilityManager
	ai            *ai.Service
	store         store.Store
	orchestrator  *analysis.Orchestrator
	matcher       *analysis.JobMatchScorer
	aggregator    *aggregate.Aggregator
	recorder      *aggregate.Recorder
	files         *common.FileProcessor
}

type appOptions struct {
	store         bool
	observability bool
}

// newApp wires the services a command needs. Close releases them.
func newApp(ctx context.Context, cfg *config.Config, logger *errors.Logger, opts appOptions) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		files:  common.NewFileProcessor(logger, cfg.App.MaxFileSize),
	}
	if err := a.wire(ctx, opts); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, opts appOptions) error {
	cfg, logger := a.cfg, a.logger

	if err := config.ApplyVaultSecrets(cfg, logger); err != nil {
		return fmt.Errorf("failed to apply vault secrets: %w", err)
	}

	if opts.observability {
		om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize observability: %w", err)
		}
		a.observability = om
	}
	metrics := a.observability.GetMetrics()

	var err error
	a.ai, err = ai.NewService(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}

	a.orchestrator = analysis.NewOrchestrator(completer(a.ai.Analyze),
		analysis.WithParseCompleter(completer(a.ai.Parse)),
		analysis.WithPrompts(analysis.PromptsFromConfig(cfg)),
		analysis.WithMetrics(metrics),
		analysis.WithLogger(logger))
	a.matcher = analysis.NewJobMatchScorer(a.orchestrator)

	if opts.store {
		a.store, err = store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		a.aggregator = aggregate.NewAggregator(a.store,
			aggregate.WithMetrics(metrics),
			aggregate.WithLogger(logger))
		a.recorder = aggregate.NewRecorder(a.store, a.aggregator, logger)
	}

	return nil
}

// completer keeps a nil provider a nil interface
func completer(p ai.Provider) ai.Completer {
	if p == nil {
		return nil
	}
	return p
}

// Close releases every wired resource, logging failures
func (a *app) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.LogError(err, "Failed to close store")
		}
	}
	if err := a.ai.Close(); err != nil {
		a.logger.LogError(err, "Failed to close AI providers")
	}
	if err := a.observability.Shutdown(ctx); err != nil {
		a.logger.LogError(err, "Failed to shut down observability")
	}
}

// services exposes the wired core to the HTTP server
func (a *app) services() server.Services {
	return server.Services{
		Orchestrator: a.orchestrator,
		Matcher:      a.matcher,
		Store:        a.store,
		Aggregator:   a.aggregator,
		Recorder:     a.recorder,
		AI:           a.ai,
	}
}

// withApp loads config and logger from the command context, wires an app
// and runs fn with it
func withApp(cmd *cobra.Command, opts appOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(ctx)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger, opts)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))
	return fn(ctx, a)
}

// readDraft reads and normalizes a ResumeDraft JSON file
func (a *app) readDraft(path string) (types.ResumeDraft, error) {
	draft, err := common.ReadJSON[types.ResumeDraft](a.files, path)
	if err != nil {
		return draft, err
	}
	draft.Normalize()
	if draft.IsEmpty() {
		return draft, errors.NewValidationError(errors.ErrCodeIncompleteInputData,
			fmt.Sprintf("Draft %s has no content to score", path), nil)
	}
	return draft, nil
}

// readJob reads a job posting. JSON files are decoded as a requirement set;
// any other file is taken as the posting's description text or HTML.
func (a *app) readJob(path string) (types.JobRequirementSet, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		job, err := common.ReadJSON[types.JobRequirementSet](a.files, path)
		if err != nil {
			return job, err
		}
		return job, validateJob(job, path)
	}

	description, err := a.files.ReadFile(path)
	if err != nil {
		return types.JobRequirementSet{}, err
	}
	job := types.JobRequirementSet{Description: description}
	return job, validateJob(job, path)
}

func validateJob(job types.JobRequirementSet, path string) error {
	if strings.TrimSpace(job.Title) == "" && strings.TrimSpace(job.Description) == "" &&
		len(job.Skills) == 0 && len(job.Requirements) == 0 {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Job %s has no title, description, skills or requirements", path), nil)
	}
	return nil
}

// readResume reads a plain text resume
func (a *app) readResume(path string) (string, error) {
	contents, err := a.files.ValidateAndReadFiles(path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(contents[0]) == "" {
		return "", errors.NewValidationError(errors.ErrCodeIncompleteInputData,
			fmt.Sprintf("Resume %s is empty", path), nil)
	}
	return contents[0], nil
}
