package ai

import (
	"context"
	"testing"
	"time"

	"atscore/internal/config"
	"atscore/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serviceConfig(apiKey string) *config.Config {
	breaker := config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MinRequests:      3,
		FailureThreshold: 0.6,
	}
	return &config.Config{
		AI: config.AIConfig{
			Provider:         "gemini",
			Model:            "global-model",
			Timeout:          60 * time.Second,
			APIKey:           apiKey,
			Temperature:      0.2,
			UseSystemPrompts: true,
			Analyze:          config.OperationAIConfig{Model: "analyze-model", CircuitBreaker: breaker},
			Parse:            config.OperationAIConfig{CircuitBreaker: breaker},
		},
	}
}

func TestNewServiceWithoutKey(t *testing.T) {
	service, err := NewService(serviceConfig(""), errors.Discard())
	require.NoError(t, err)

	assert.False(t, service.Enabled())
	assert.Nil(t, service.Analyze)
	assert.Nil(t, service.Parse)

	health := service.Health(context.Background())
	assert.Equal(t, map[string]any{"configured": false}, health[config.OperationAnalyze])
	assert.NoError(t, service.Close())
}

func TestNewServiceWithKey(t *testing.T) {
	service, err := NewService(serviceConfig("test-key"), errors.Discard())
	require.NoError(t, err)
	require.True(t, service.Enabled())

	analyze, ok := service.Analyze.(*GeminiProvider)
	require.True(t, ok, "analyze provider should be a GeminiProvider")
	assert.Equal(t, "analyze-model", analyze.config.Model)
	assert.Equal(t, defaultModelCheckTimeout, analyze.modelCheckTimeout)

	parse, ok := service.Parse.(*GeminiProvider)
	require.True(t, ok, "parse provider should be a GeminiProvider")
	assert.Equal(t, "global-model", parse.config.Model)

	stats := analyze.GetCircuitBreakerStats()
	aiStats, ok := stats["ai_operations"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AI-analyze", aiStats["name"])
	modelStats, ok := stats["model_operations"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AI-Model-parse", parse.GetCircuitBreakerStats()["model_operations"].(map[string]any)["name"])
	assert.Equal(t, "AI-Model-analyze", modelStats["name"])
	assert.Equal(t, true, stats["overall_healthy"])
}

func TestNewProviderUnsupported(t *testing.T) {
	cfg := serviceConfig("key").GetAnalyzeConfig()
	cfg.Provider = "openai"

	_, err := NewProvider(&cfg, config.OperationAnalyze, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))
}

func TestCompleterFunc(t *testing.T) {
	var got CompletionRequest
	c := CompleterFunc(func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		got = req
		return &Completion{Text: "ok"}, nil
	})

	completion, err := c.Complete(context.Background(), CompletionRequest{Operation: "op", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", completion.Text)
	assert.Equal(t, "op", got.Operation)
}
