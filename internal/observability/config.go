package observability

import (
	"time"

	"atscore/internal/config"
)

const defaultCollectionInterval = 15 * time.Second

// GetObservabilityConfig creates observability config from provided config
func GetObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	if cfg == nil {
		// Fallback to defaults if config not available
		return ObservabilityConfig{
			ServiceName:        "atscore",
			ServiceVersion:     version,
			ServiceInstance:    "atscore-1",
			Enabled:            true,
			ConsoleOutput:      true, // Default to console output for fallback
			TracingEnabled:     true,
			SampleRate:         1.0,
			MetricsEnabled:     true,
			CollectionInterval: defaultCollectionInterval,
			Prometheus:         GetPrometheusConfig(cfg),
			CustomMetrics:      defaultCustomMetrics(),
		}
	}

	obsConfig := cfg.Observability

	// Use app version if service version not specified
	serviceVersion := obsConfig.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}
	instance := obsConfig.ServiceInstance
	if instance == "" {
		instance = obsConfig.ServiceName + "-1"
	}
	interval := obsConfig.Metrics.CollectionInterval
	if interval <= 0 {
		interval = defaultCollectionInterval
	}

	return ObservabilityConfig{
		ServiceName:        obsConfig.ServiceName,
		ServiceVersion:     serviceVersion,
		ServiceInstance:    instance,
		Enabled:            obsConfig.Enabled,
		ConsoleOutput:      obsConfig.ConsoleOutput,
		TracingEnabled:     obsConfig.Tracing.Enabled,
		SampleRate:         obsConfig.Tracing.SampleRate,
		MetricsEnabled:     obsConfig.Metrics.Enabled,
		CollectionInterval: interval,
		Prometheus:         GetPrometheusConfig(cfg),
		OTLP:               obsConfig.OTLP,
		CustomMetrics:      obsConfig.CustomMetrics,
	}
}

func defaultCustomMetrics() config.CustomMetricsConfig {
	return config.CustomMetricsConfig{
		AIOperations: config.AIOperationsMetricsConfig{Enabled: true, TrackDuration: true, TrackTokenUsage: true},
		Scoring:      config.ScoringMetricsConfig{Enabled: true, TrackFallbacks: true, TrackRecompute: true},
		Infrastructure: config.InfrastructureMetricsConfig{
			Enabled:         true,
			TrackRateLimits: true,
		},
	}
}
