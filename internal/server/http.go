package server

import (
	"time"

	"atscore/internal/aggregate"
	"atscore/internal/ai"
	"atscore/internal/analysis"
	"atscore/internal/config"
	"atscore/internal/errors"
	"atscore/internal/observability"
	"atscore/internal/store"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Services are the scoring components the handlers delegate to
type Services struct {
	Orchestrator *analysis.Orchestrator
	Matcher      *analysis.JobMatchScorer
	Store        store.Store
	Aggregator   *aggregate.Aggregator
	Recorder     *aggregate.Recorder

	// AI is only used for health reporting and may be nil
	AI *ai.Service
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	// TLS Configuration
	TLSConfig    config.TLSConfig
	CertReloader *CertReloader

	// API Authentication
	APIKeys map[string]bool

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	services      Services
	observability *observability.ObservabilityManager
	validate      *validator.Validate
	startedAt     time.Time

	// Logger
	Logger *errors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
}

// NewServer creates a new Server. om may be nil, in which case no telemetry
// is recorded.
func NewServer(appCfg *config.Config, cfg ServerConfig, services Services, om *observability.ObservabilityManager, logger *errors.Logger) *Server {
	if logger == nil {
		logger = errors.Discard()
	}
	if appCfg == nil {
		appCfg = &config.Config{}
	}

	// Convert API keys slice to map for O(1) lookup
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstCapacity, logger)
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		TLSConfig:      cfg.TLSConfig,
		APIKeys:        apiKeyMap,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		services:       services,
		observability:  om,
		validate:       newValidator(),
		startedAt:      time.Now(),
		Logger:         logger,
	}
}

// ServerConfigFromApp builds a ServerConfig from the loaded configuration
func ServerConfigFromApp(cfg *config.Config, version string) ServerConfig {
	return ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.App.MaxFileSize,
		RateLimit:      &cfg.Server.RateLimit,
	}
}
