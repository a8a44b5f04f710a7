package ai

import (
	"fmt"
	"testing"
	"time"

	"atscore/internal/config"
	"atscore/internal/errors"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

func breakerConfig(maxRequests, minRequests uint32, threshold float64) *config.OperationAIConfig {
	return &config.OperationAIConfig{
		Provider: "gemini",
		Model:    "test-model",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      maxRequests,
			Interval:         60 * time.Second,
			Timeout:          60 * time.Second,
			MinRequests:      minRequests,
			FailureThreshold: threshold,
		},
	}
}

func TestIndependentCircuitBreakerConfigurations(t *testing.T) {
	analyzeCB := NewCompletionBreaker(config.OperationAnalyze, breakerConfig(3, 3, 0.6), nil)
	parseCB := NewCompletionBreaker(config.OperationParse, breakerConfig(5, 2, 0.7), nil)

	tests := []struct {
		name     string
		breaker  *CircuitBreaker[*genai.GenerateContentResponse]
		wantName string
	}{
		{"AnalyzeCircuitBreaker", analyzeCB, "AI-analyze"},
		{"ParseCircuitBreaker", parseCB, "AI-parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := tt.breaker.GetStats()

			name, ok := stats["name"].(string)
			if !ok {
				t.Fatal("Circuit breaker name not found")
			}
			if name != tt.wantName {
				t.Errorf("Expected circuit breaker name '%s', got '%s'", tt.wantName, name)
			}

			if state, _ := stats["state"].(string); state != "closed" {
				t.Errorf("Expected initial state 'closed', got '%s'", state)
			}
			if enabled, _ := stats["enabled"].(bool); !enabled {
				t.Error("Circuit breaker should be enabled")
			}
			if !tt.breaker.IsHealthy() {
				t.Error("Circuit breaker should be healthy initially")
			}
		})
	}

	if analyzeCB == parseCB {
		t.Error("Analyze and parse circuit breakers should be different instances")
	}
}

func TestModelBreakerName(t *testing.T) {
	cb := NewModelBreaker("analyze", breakerConfig(3, 3, 0.6), nil)
	if cb == nil {
		t.Fatal("Model circuit breaker should not be nil")
	}
	if name, _ := cb.GetStats()["name"].(string); name != "AI-Model-analyze" {
		t.Errorf("Expected model circuit breaker name 'AI-Model-analyze', got '%s'", name)
	}
}

func TestCircuitBreakerDisabled(t *testing.T) {
	disabled := &config.OperationAIConfig{
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: false},
	}

	cb := NewCompletionBreaker("disabled", disabled, nil)
	if cb != nil {
		t.Fatal("Circuit breaker should be nil when disabled")
	}

	// A nil breaker still runs the call and reports healthy
	calls := 0
	_, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		calls++
		return &genai.GenerateContentResponse{}, nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("Expected direct execution, got calls=%d err=%v", calls, err)
	}
	if !cb.IsHealthy() {
		t.Error("Disabled circuit breaker should report healthy")
	}
	if enabled, _ := cb.GetStats()["enabled"].(bool); enabled {
		t.Error("Disabled circuit breaker should report enabled=false")
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := NewCompletionBreaker("trip", breakerConfig(1, 2, 0.5), errors.Discard())
	failing := func() (*genai.GenerateContentResponse, error) {
		return nil, fmt.Errorf("upstream down")
	}

	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(failing); err == nil {
			t.Fatal("Expected failure to propagate")
		}
	}

	if cb.IsHealthy() {
		t.Fatal("Circuit breaker should be open after reaching the failure threshold")
	}

	calls := 0
	_, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		calls++
		return &genai.GenerateContentResponse{}, nil
	})
	if calls != 0 {
		t.Error("Open circuit breaker should not run the call")
	}
	if !IsBreakerRejection(err) {
		t.Errorf("Expected breaker rejection, got %v", err)
	}
	if err != gobreaker.ErrOpenState {
		t.Errorf("Expected ErrOpenState, got %v", err)
	}
}
