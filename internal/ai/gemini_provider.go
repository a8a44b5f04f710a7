package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"atscore/internal/config"
	appErrors "atscore/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

const defaultModelCheckTimeout = 10 * time.Second

// GeminiProvider implements Provider for Google Gemini
type GeminiProvider struct {
	client            *genai.Client
	config            *config.OperationAIConfig
	operation         string
	circuitBreaker    *CircuitBreaker[*genai.GenerateContentResponse]
	modelBreaker      *CircuitBreaker[*genai.Model]
	modelCheckTimeout time.Duration
	logger            *appErrors.Logger
}

// Ensure GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)

// GeminiOption customizes a GeminiProvider
type GeminiOption func(*geminiOptions)

type geminiOptions struct {
	baseURL           string
	modelCheckTimeout time.Duration
}

// WithBaseURL points the client at a different API endpoint
func WithBaseURL(url string) GeminiOption {
	return func(o *geminiOptions) { o.baseURL = url }
}

// WithModelCheckTimeout bounds the model availability check used by health endpoints
func WithModelCheckTimeout(d time.Duration) GeminiOption {
	return func(o *geminiOptions) {
		if d > 0 {
			o.modelCheckTimeout = d
		}
	}
}

// NewGeminiProvider creates a new Gemini provider for one operation. The
// config must have been resolved through config.GetOperationConfig.
func NewGeminiProvider(cfg *config.OperationAIConfig, operation string, logger *appErrors.Logger, opts ...GeminiOption) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, appErrors.NewConfigError(appErrors.ErrCodeMissingAPIKey,
			"Gemini API key is not configured for "+operation, nil)
	}
	if cfg.Timeout == nil || cfg.Temperature == nil || cfg.UseSystemPrompts == nil {
		return nil, appErrors.NewConfigError(appErrors.ErrCodeInvalidConfig,
			"AI operation config is not resolved for "+operation, nil)
	}
	if logger == nil {
		logger = appErrors.Discard()
	}

	options := geminiOptions{modelCheckTimeout: defaultModelCheckTimeout}
	for _, opt := range opts {
		opt(&options)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Timeout: *cfg.Timeout,
		},
	}
	if options.baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: options.baseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, appErrors.NewAIError(appErrors.ErrCodeAIServiceFailed,
			"Failed to create Gemini client", err)
	}

	return &GeminiProvider{
		client:            client,
		config:            cfg,
		operation:         operation,
		circuitBreaker:    NewCompletionBreaker(operation, cfg, logger),
		modelBreaker:      NewModelBreaker(operation, cfg, logger),
		modelCheckTimeout: options.modelCheckTimeout,
		logger:            logger,
	}, nil
}

// Complete makes a single generation call. Every failure, including an open
// circuit breaker, is reported as AI_PROVIDER_UNAVAILABLE.
func (g *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	tracer := otel.Tracer("atscore.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini."+req.Operation)
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.String("ai.operation_group", g.operation),
		attribute.Float64("ai.temperature", float64(*g.config.Temperature)),
		attribute.Int("input.prompt_length", len(req.Prompt)),
	)

	ctx, cancel := context.WithTimeout(ctx, *g.config.Timeout)
	defer cancel()

	genaiConfig := g.buildGenerateConfig(req.SystemPrompt)

	result, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(req.Prompt), genaiConfig)
	})
	if err != nil {
		reason, transient := classifyError(err)
		span.RecordError(err)
		span.SetAttributes(
			attribute.Bool("success", false),
			attribute.String("error.reason", reason),
		)
		g.logger.Warn("AI completion failed",
			"operation", req.Operation,
			"model", g.config.Model,
			"reason", reason,
			"transient", transient,
			"error", err.Error())
		return nil, appErrors.NewAIError(appErrors.ErrCodeAIProviderUnavailable,
			"AI provider unavailable for "+req.Operation, err).
			WithContext("reason", reason).
			WithContext("transient", transient)
	}

	text := result.Text()
	tokenUsage := extractTokenUsage(result)
	if tokenUsage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", tokenUsage.InputTokens),
			attribute.Int64("ai.tokens.output", tokenUsage.OutputTokens),
			attribute.Int64("ai.tokens.total", tokenUsage.TotalTokens),
		)
	}
	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("output.text_length", len(text)),
	)

	return &Completion{
		Text:       text,
		Model:      g.config.Model,
		TokenUsage: tokenUsage,
	}, nil
}

// buildGenerateConfig asks for JSON output. The reply is still treated as
// free text by callers, so no response schema is attached.
func (g *GeminiProvider) buildGenerateConfig(systemPrompt string) *genai.GenerateContentConfig {
	genaiConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	// Apply temperature configuration if set
	if *g.config.Temperature > 0 {
		temperature := *g.config.Temperature
		genaiConfig.Temperature = &temperature
	}

	if *g.config.UseSystemPrompts && systemPrompt != "" {
		genaiConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	return genaiConfig
}

// classifyError names the failure and reports whether it is likely transient
func classifyError(err error) (reason string, transient bool) {
	if err == nil {
		return "", false
	}

	if IsBreakerRejection(err) {
		return "circuit_open", true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout", true
	}
	if errors.Is(err, context.Canceled) {
		return "canceled", false
	}

	// Check for network errors (timeouts, connection issues)
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout", true
		}
		return "network", true
	}

	// Check for HTTP status codes from either API surface
	if code := statusCode(err); code != 0 {
		switch code {
		case http.StatusTooManyRequests:
			return "rate_limited", true
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return "server_error", true
		case http.StatusUnauthorized, http.StatusForbidden:
			return "unauthorized", false
		default:
			return fmt.Sprintf("http_%d", code), false
		}
	}

	return "unknown", false
}

func statusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code
	}
	var genaiErrPtr *genai.APIError
	if errors.As(err, &genaiErrPtr) && genaiErrPtr != nil {
		return genaiErrPtr.Code
	}
	return 0
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{
		Name:      g.config.Model,
		Available: false,
	}

	checkCtx, cancel := context.WithTimeout(ctx, g.modelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"provider", g.config.Provider,
			"error", err.Error())
		return modelInfo
	}

	modelInfo.Available = true
	modelInfo.DisplayName = model.DisplayName
	modelInfo.Version = model.Version

	g.logger.Debug("Model availability check successful",
		"model", g.config.Model,
		"provider", g.config.Provider,
		"display_name", modelInfo.DisplayName,
		"version", modelInfo.Version)

	return modelInfo
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    g.circuitBreaker.GetStats(),
		"model_operations": g.modelBreaker.GetStats(),
		"overall_healthy":  g.circuitBreaker.IsHealthy() && g.modelBreaker.IsHealthy(),
	}
}

// Close implements Provider. The Gemini client holds no resources in single-shot usage.
func (g *GeminiProvider) Close() error {
	return nil
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
