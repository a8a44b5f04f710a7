package ai

import (
	stderrors "errors"
	"fmt"

	"atscore/internal/config"
	"atscore/internal/errors"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

// CircuitBreaker guards calls returning T. A nil *CircuitBreaker is valid and
// runs every call directly, which is what a disabled breaker config yields.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// NewCompletionBreaker creates the breaker for content generation calls of one operation
func NewCompletionBreaker(operation string, cfg *config.OperationAIConfig, logger *errors.Logger) *CircuitBreaker[*genai.GenerateContentResponse] {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}

	cbCfg := cfg.CircuitBreaker
	trip := func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= cbCfg.MinRequests && failureRatio >= cbCfg.FailureThreshold
	}
	return newCircuitBreaker[*genai.GenerateContentResponse](fmt.Sprintf("AI-%s", operation), operation, cbCfg, trip, logger)
}

// NewModelBreaker creates the breaker for model availability checks of one operation
func NewModelBreaker(operation string, cfg *config.OperationAIConfig, logger *errors.Logger) *CircuitBreaker[*genai.Model] {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}

	// Model info is less critical, so use more lenient settings
	trip := func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 5 && failureRatio >= 0.8
	}
	return newCircuitBreaker[*genai.Model](fmt.Sprintf("AI-Model-%s", operation), operation, cfg.CircuitBreaker, trip, logger)
}

func newCircuitBreaker[T any](name, operation string, cfg config.CircuitBreakerConfig, trip func(gobreaker.Counts) bool, logger *errors.Logger) *CircuitBreaker[T] {
	if logger == nil {
		logger = errors.Discard()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: trip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				"name", name,
				"operation_type", operation,
				"from", from.String(),
				"to", to.String(),
				"max_requests", cfg.MaxRequests,
				"failure_threshold", cfg.FailureThreshold)
		},
	}

	return &CircuitBreaker[T]{
		cb: gobreaker.NewCircuitBreaker[T](settings),
	}
}

// Execute runs fn with circuit breaker protection
func (b *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// GetStats returns circuit breaker statistics
func (b *CircuitBreaker[T]) GetStats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{
			"enabled": false,
		}
	}

	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy returns true if the circuit breaker is closed or absent
func (b *CircuitBreaker[T]) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}

// IsBreakerRejection reports whether err came from a breaker refusing the call
func IsBreakerRejection(err error) bool {
	return stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests)
}
