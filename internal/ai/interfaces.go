package ai

import (
	"context"
)

// Completer sends one prompt to a language model and returns the raw reply.
// Implementations make exactly one upstream call per Complete.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// Provider is a Completer that can also report on its own health
type Provider interface {
	Completer
	GetModelInfo(ctx context.Context) *ModelInfo
	GetCircuitBreakerStats() map[string]any
	Close() error
}

// CompletionRequest is a single prompt for one named operation
type CompletionRequest struct {
	Operation    string // span and metric label, e.g. "analyze_job"
	SystemPrompt string
	Prompt       string
}

// Completion is the unparsed model output
type Completion struct {
	Text       string
	Model      string
	TokenUsage *TokenUsage
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	TotalTokens  int64 `json:"totalTokens"`
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// CompleterFunc adapts a plain function to the Completer interface
type CompleterFunc func(ctx context.Context, req CompletionRequest) (*Completion, error)

// Complete calls f(ctx, req)
func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	return f(ctx, req)
}
