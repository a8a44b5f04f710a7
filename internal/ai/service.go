package ai

import (
	"context"
	"fmt"

	"atscore/internal/config"
	"atscore/internal/errors"
)

// Service holds one provider per AI operation. A nil provider means the
// operation runs on heuristics only.
type Service struct {
	Analyze Provider
	Parse   Provider
	logger  *errors.Logger
}

// NewProvider creates the provider configured for a single operation
func NewProvider(cfg *config.OperationAIConfig, operation string, logger *errors.Logger, opts ...GeminiOption) (Provider, error) {
	if logger == nil {
		logger = errors.Discard()
	}

	logger.Debug("Initializing AI provider",
		"provider", cfg.Provider,
		"operation_type", operation,
		"model", cfg.Model,
		"has_api_key", cfg.APIKey != "")

	switch cfg.Provider {
	case "gemini":
		provider, err := NewGeminiProvider(cfg, operation, logger, opts...)
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}
}

// NewService builds providers for every operation. A missing API key is not
// an error: that operation is left without a provider and falls back.
func NewService(cfg *config.Config, logger *errors.Logger) (*Service, error) {
	if logger == nil {
		logger = errors.Discard()
	}
	s := &Service{logger: logger}

	opts := []GeminiOption{WithModelCheckTimeout(cfg.Observability.HealthCheck.AIModelCheckTimeout)}

	for _, op := range []string{config.OperationAnalyze, config.OperationParse} {
		opCfg, err := cfg.GetOperationConfig(op)
		if err != nil {
			return nil, err
		}

		provider, err := NewProvider(&opCfg, op, logger, opts...)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeMissingAPIKey) {
				logger.Warn("No AI API key configured, using heuristic scoring only", "operation", op)
				continue
			}
			return nil, err
		}

		switch op {
		case config.OperationAnalyze:
			s.Analyze = provider
		case config.OperationParse:
			s.Parse = provider
		}
	}

	return s, nil
}

// Enabled reports whether any operation has a provider
func (s *Service) Enabled() bool {
	return s != nil && (s.Analyze != nil || s.Parse != nil)
}

// Health reports model availability and breaker state per operation
func (s *Service) Health(ctx context.Context) map[string]any {
	health := map[string]any{}
	if s == nil {
		return health
	}
	for op, provider := range map[string]Provider{
		config.OperationAnalyze: s.Analyze,
		config.OperationParse:   s.Parse,
	} {
		if provider == nil {
			health[op] = map[string]any{"configured": false}
			continue
		}
		health[op] = map[string]any{
			"configured":      true,
			"model":           provider.GetModelInfo(ctx),
			"circuit_breaker": provider.GetCircuitBreakerStats(),
		}
	}
	return health
}

// Close releases every provider
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	for _, provider := range []Provider{s.Analyze, s.Parse} {
		if provider == nil {
			continue
		}
		if err := provider.Close(); err != nil {
			return err
		}
	}
	return nil
}
