// Package analysis turns resumes into AnalysisResults, through one AI
// completion when available and the local heuristics otherwise.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"atscore/internal/ai"
	"atscore/internal/errors"
	"atscore/internal/extract"
	"atscore/internal/scoring"
	"atscore/internal/types"
)

// Operation names used for completion requests, logs and metrics
const (
	OperationAnalyzeJob       = "analyze_job"
	OperationAnalyzeGenerated = "analyze_generated"
	OperationParseResume      = "parse_resume"
)

// Fallback reasons
const (
	ReasonAIDisabled        = "ai_disabled"
	ReasonProviderError     = "provider_error"
	ReasonMalformedResponse = "malformed_response"
	ReasonPanic             = "panic"
)

// Metrics receives one record per completion call and per analysis served
type Metrics interface {
	RecordAIOperation(ctx context.Context, operation string, duration time.Duration, usage *ai.TokenUsage, err error)
	RecordAnalysis(ctx context.Context, operation, source, fallbackReason string)
}

type noopMetrics struct{}

func (noopMetrics) RecordAIOperation(context.Context, string, time.Duration, *ai.TokenUsage, error) {}
func (noopMetrics) RecordAnalysis(context.Context, string, string, string)                        {}

// Orchestrator composes prompts, performs a single completion per analysis
// and falls back to the local heuristics on any AI failure
type Orchestrator struct {
	completer      ai.Completer
	parseCompleter ai.Completer
	prompts        Prompts
	logger         *errors.Logger
	metrics        Metrics
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(logger *errors.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPrompts replaces the built-in prompt set
func WithPrompts(prompts Prompts) Option {
	return func(o *Orchestrator) {
		o.prompts = prompts
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(metrics Metrics) Option {
	return func(o *Orchestrator) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithParseCompleter uses a separate completer for resume parsing. Without
// it parsing shares the analysis completer.
func WithParseCompleter(completer ai.Completer) Option {
	return func(o *Orchestrator) {
		o.parseCompleter = completer
	}
}

// NewOrchestrator creates an orchestrator around completer. A nil completer
// is valid and makes every analysis use the heuristics.
func NewOrchestrator(completer ai.Completer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		completer:      completer,
		parseCompleter: completer,
		prompts:        DefaultPrompts(),
		logger:         errors.Discard(),
		metrics:        noopMetrics{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AIEnabled reports whether analyses will attempt a completion
func (o *Orchestrator) AIEnabled() bool {
	return o.completer != nil
}

// AnalyzeForJob scores raw resume text against a job
func (o *Orchestrator) AnalyzeForJob(ctx context.Context, resumeText string, job types.JobRequirementSet) types.AnalysisResult {
	return o.AnalyzeParsedForJob(ctx, resumeText, types.EmptyParsedResume(), job)
}

// AnalyzeParsedForJob scores raw resume text against a job. The already
// parsed resume only feeds the heuristic fallback.
func (o *Orchestrator) AnalyzeParsedForJob(ctx context.Context, resumeText string, parsed types.ParsedResume, job types.JobRequirementSet) types.AnalysisResult {
	fallback := func() types.AnalysisResult {
		return scoring.JobFallback(job, parsed, resumeText)
	}

	prompt := renderPrompt(o.prompts.AnalyzeJobUser, strings.TrimSpace(resumeText), formatJob(job))
	return o.analyze(ctx, OperationAnalyzeJob, o.prompts.AnalyzeJobSystem, prompt, fallback)
}

// AnalyzeGenerated scores a resume built through guided intake
func (o *Orchestrator) AnalyzeGenerated(ctx context.Context, draft types.ResumeDraft) types.AnalysisResult {
	draft.Normalize()
	fallback := func() types.AnalysisResult {
		return scoring.GeneratedFallback(draft)
	}

	body, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		o.logger.LogError(err, "Failed to encode resume draft for analysis")
		return o.fallback(ctx, OperationAnalyzeGenerated, ReasonMalformedResponse, fallback)
	}

	prompt := renderPrompt(o.prompts.AnalyzeGeneratedUser, string(body))
	return o.analyze(ctx, OperationAnalyzeGenerated, o.prompts.AnalyzeGeneratedSystem, prompt, fallback)
}

// ParseResume extracts structured fields from raw resume text. Unlike the
// analyses it reports failure so callers can decide on a shell.
func (o *Orchestrator) ParseResume(ctx context.Context, resumeText string) (parsed types.ParsedResume, err error) {
	if strings.TrimSpace(resumeText) == "" {
		return types.EmptyParsedResume(), errors.NewValidationError(errors.ErrCodeIncompleteInputData, "resume text is empty", nil)
	}
	if o.parseCompleter == nil {
		return types.EmptyParsedResume(), errors.NewAIError(errors.ErrCodeAIProviderUnavailable, "AI parsing is not configured", nil).
			WithContext("reason", ReasonAIDisabled)
	}

	defer func() {
		if r := recover(); r != nil {
			parsed = types.EmptyParsedResume()
			err = errors.NewInternalError(errors.ErrCodeAIServiceFailed, fmt.Sprintf("resume parsing panicked: %v", r), nil)
		}
	}()

	prompt := renderPrompt(o.prompts.ParseResumeUser, strings.TrimSpace(resumeText))
	obj, _, err := o.complete(ctx, o.parseCompleter, OperationParseResume, o.prompts.ParseResumeSystem, prompt)
	if err != nil {
		return types.EmptyParsedResume(), err
	}

	parsed, issues := CoerceParsedResume(obj)
	if !issues.Empty() {
		o.logger.LogError(issues.AsAppError("parse"), "Parsed resume incomplete, defaults substituted",
			"operation", OperationParseResume)
	}
	return parsed, nil
}

// analyze runs one completion and coerces the reply, or serves fallback
func (o *Orchestrator) analyze(ctx context.Context, operation, system, prompt string, fallback func() types.AnalysisResult) (result types.AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.LogError(fmt.Errorf("%v", r), "Analysis panicked, serving fallback", "operation", operation)
			result = o.fallback(ctx, operation, ReasonPanic, fallback)
		}
	}()

	if o.completer == nil {
		return o.fallback(ctx, operation, ReasonAIDisabled, fallback)
	}

	obj, reason, err := o.complete(ctx, o.completer, operation, system, prompt)
	if err != nil {
		return o.fallback(ctx, operation, reason, fallback)
	}

	result, issues := CoerceAnalysis(obj)
	if !issues.Empty() {
		o.logger.LogError(issues.AsAppError("analysis"), "AI analysis incomplete, defaults substituted",
			"operation", operation)
	}

	o.metrics.RecordAnalysis(ctx, operation, types.SourceAI, "")
	return result
}

// complete performs exactly one completion call and extracts its JSON object.
// The returned reason classifies a failure for the fallback metrics.
func (o *Orchestrator) complete(ctx context.Context, completer ai.Completer, operation, system, prompt string) (map[string]any, string, error) {
	start := time.Now()
	completion, err := completer.Complete(ctx, ai.CompletionRequest{
		Operation:    operation,
		SystemPrompt: system,
		Prompt:       prompt,
	})

	var usage *ai.TokenUsage
	if completion != nil {
		usage = completion.TokenUsage
	}
	o.metrics.RecordAIOperation(ctx, operation, time.Since(start), usage, err)

	if err != nil {
		if !errors.HasCode(err, errors.ErrCodeAIProviderUnavailable) {
			err = errors.NewAIError(errors.ErrCodeAIProviderUnavailable, "AI completion failed", err)
		}
		o.logger.LogError(err, "AI completion failed", "operation", operation)
		return nil, ReasonProviderError, err
	}
	if completion == nil {
		err := errors.NewAIError(errors.ErrCodeMalformedAIResponse, "AI returned no completion", nil)
		o.logger.LogError(err, "AI completion empty", "operation", operation)
		return nil, ReasonMalformedResponse, err
	}

	obj, err := extract.JSON(completion.Text)
	if err != nil {
		var appErr *errors.AppError
		if extractionErr, ok := err.(*extract.ExtractionError); ok {
			appErr = extractionErr.AsAppError()
		} else {
			appErr = errors.NewAIError(errors.ErrCodeMalformedAIResponse, "AI response could not be decoded", err)
		}
		o.logger.LogError(appErr, "AI response unusable", "operation", operation,
			"response_length", len(completion.Text))
		return nil, ReasonMalformedResponse, appErr
	}

	o.logger.Debug("AI completion extracted", "operation", operation, "model", completion.Model,
		"duration_ms", time.Since(start).Milliseconds())
	return obj, "", nil
}

func (o *Orchestrator) fallback(ctx context.Context, operation, reason string, compute func() types.AnalysisResult) types.AnalysisResult {
	o.logger.Info("Serving heuristic analysis", "operation", operation, "reason", reason)
	o.metrics.RecordAnalysis(ctx, operation, types.SourceFallback, reason)
	return compute()
}
