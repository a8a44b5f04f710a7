package observability

import (
	"context"
	"fmt"
	"time"

	"atscore/internal/aggregate"
	"atscore/internal/ai"
	"atscore/internal/config"
	"atscore/internal/errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Metrics holds all custom metrics for atscore. The zero value records nothing.
type Metrics struct {
	settings config.CustomMetricsConfig

	// AI operation metrics
	AIProcessingTime metric.Float64Histogram
	AIRequestCount   metric.Int64Counter
	AIErrorCount     metric.Int64Counter
	AITokenUsage     metric.Int64Histogram

	// Scoring metrics
	AnalysesServed   metric.Int64Counter
	FallbacksServed  metric.Int64Counter
	RecomputeCount   metric.Int64Counter
	RecomputeFailure metric.Int64Counter

	// Certificate metrics
	CertReloadCount metric.Int64Counter
	CertExpiryTime  metric.Float64Gauge

	// Rate limiting metrics
	RateLimitHits metric.Int64Counter
}

// NewMetrics creates every instrument on meter
func NewMetrics(meter metric.Meter, settings config.CustomMetricsConfig) (*Metrics, error) {
	m := &Metrics{settings: settings}

	if err := m.createAIMetrics(meter); err != nil {
		return nil, err
	}
	if err := m.createScoringMetrics(meter); err != nil {
		return nil, err
	}
	if err := m.createCertificateMetrics(meter); err != nil {
		return nil, err
	}
	if err := m.createRateLimitMetrics(meter); err != nil {
		return nil, err
	}
	return m, nil
}

// createAIMetrics creates AI-related metrics
func (m *Metrics) createAIMetrics(meter metric.Meter) error {
	var err error

	m.AIProcessingTime, err = meter.Float64Histogram(
		"atscore_ai_processing_duration_seconds",
		metric.WithDescription("Time spent waiting for AI completions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI processing time metric: %w", err)
	}

	m.AIRequestCount, err = meter.Int64Counter(
		"atscore_ai_requests_total",
		metric.WithDescription("Total number of AI completion requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI request count metric: %w", err)
	}

	m.AIErrorCount, err = meter.Int64Counter(
		"atscore_ai_errors_total",
		metric.WithDescription("Total number of failed AI completion requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI error count metric: %w", err)
	}

	m.AITokenUsage, err = meter.Int64Histogram(
		"atscore_ai_token_usage",
		metric.WithDescription("Token usage per AI completion (input, output, total)"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI token usage metric: %w", err)
	}

	return nil
}

// createScoringMetrics creates analysis and aggregation metrics
func (m *Metrics) createScoringMetrics(meter metric.Meter) error {
	var err error

	m.AnalysesServed, err = meter.Int64Counter(
		"atscore_analyses_total",
		metric.WithDescription("Total number of analyses served, by operation and source"),
	)
	if err != nil {
		return fmt.Errorf("failed to create analyses metric: %w", err)
	}

	m.FallbacksServed, err = meter.Int64Counter(
		"atscore_analysis_fallbacks_total",
		metric.WithDescription("Total number of heuristic fallbacks, by reason"),
	)
	if err != nil {
		return fmt.Errorf("failed to create fallbacks metric: %w", err)
	}

	m.RecomputeCount, err = meter.Int64Counter(
		"atscore_score_recomputes_total",
		metric.WithDescription("Total number of user score recomputes, by outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create recompute metric: %w", err)
	}

	m.RecomputeFailure, err = meter.Int64Counter(
		"atscore_score_recompute_failures_total",
		metric.WithDescription("Total number of abandoned user score recomputes"),
	)
	if err != nil {
		return fmt.Errorf("failed to create recompute failure metric: %w", err)
	}

	return nil
}

// createCertificateMetrics creates certificate-related metrics
func (m *Metrics) createCertificateMetrics(meter metric.Meter) error {
	var err error

	m.CertReloadCount, err = meter.Int64Counter(
		"atscore_cert_reloads_total",
		metric.WithDescription("Total number of certificate reloads"),
	)
	if err != nil {
		return fmt.Errorf("failed to create certificate reload count metric: %w", err)
	}

	m.CertExpiryTime, err = meter.Float64Gauge(
		"atscore_cert_expiry_seconds",
		metric.WithDescription("Seconds until certificate expiry"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create certificate expiry time metric: %w", err)
	}

	return nil
}

// createRateLimitMetrics creates rate limiting metrics
func (m *Metrics) createRateLimitMetrics(meter metric.Meter) error {
	var err error

	m.RateLimitHits, err = meter.Int64Counter(
		"atscore_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limited requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	return nil
}

// RecordAIOperation records one completion call. Token usage is also added
// to the active span.
func (m *Metrics) RecordAIOperation(ctx context.Context, operation string, duration time.Duration, usage *ai.TokenUsage, err error) {
	if m.AIRequestCount == nil || !m.settings.AIOperations.Enabled {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	}

	if m.settings.AIOperations.TrackDuration {
		m.AIProcessingTime.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	m.AIRequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil {
		errAttrs := append(attrs, attribute.String("error_code", errorCode(err)))
		m.AIErrorCount.Add(ctx, 1, metric.WithAttributes(errAttrs...))
	}

	if usage != nil {
		m.recordTokenUsage(ctx, operation, usage)
	}
}

func (m *Metrics) recordTokenUsage(ctx context.Context, operation string, usage *ai.TokenUsage) {
	oteltrace.SpanFromContext(ctx).SetAttributes(
		attribute.Int64("ai.tokens.input", usage.InputTokens),
		attribute.Int64("ai.tokens.output", usage.OutputTokens),
		attribute.Int64("ai.tokens.total", usage.TotalTokens),
	)

	if !m.settings.AIOperations.TrackTokenUsage {
		return
	}

	tokenTypes := []struct {
		tokenType string
		value     int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	}
	for _, tt := range tokenTypes {
		m.AITokenUsage.Record(ctx, tt.value, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("token_type", tt.tokenType),
		))
	}
}

// RecordAnalysis records an analysis served from the AI or the heuristics
func (m *Metrics) RecordAnalysis(ctx context.Context, operation, source, fallbackReason string) {
	if m.AnalysesServed == nil || !m.settings.Scoring.Enabled {
		return
	}

	m.AnalysesServed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("source", source),
	))

	if fallbackReason != "" && m.settings.Scoring.TrackFallbacks {
		m.FallbacksServed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("reason", fallbackReason),
		))
	}
}

// RecordRecompute records a summary recompute outcome
func (m *Metrics) RecordRecompute(ctx context.Context, outcome string) {
	if m.RecomputeCount == nil || !m.settings.Scoring.Enabled || !m.settings.Scoring.TrackRecompute {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.RecomputeCount.Add(ctx, 1, attrs)
	if outcome != aggregate.OutcomeUpdated {
		m.RecomputeFailure.Add(ctx, 1, attrs)
	}
}

// RecordRateLimitHit records a rejected request
func (m *Metrics) RecordRateLimitHit(ctx context.Context, route string) {
	// Rate limiting is an infrastructure metric
	if m.RateLimitHits == nil || !m.settings.Infrastructure.Enabled || !m.settings.Infrastructure.TrackRateLimits {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
}

// RecordCertReload records a certificate reload attempt
func (m *Metrics) RecordCertReload(ctx context.Context, success bool) {
	if m.CertReloadCount == nil || !m.settings.Infrastructure.Enabled {
		return
	}
	m.CertReloadCount.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordCertExpiry records the time left on the serving certificate
func (m *Metrics) RecordCertExpiry(ctx context.Context, notAfter time.Time) {
	if m.CertExpiryTime == nil || !m.settings.Infrastructure.Enabled {
		return
	}
	m.CertExpiryTime.Record(ctx, time.Until(notAfter).Seconds())
}

func errorCode(err error) string {
	if code := errors.CodeOf(err); code != "" {
		return code
	}
	return "unknown"
}
