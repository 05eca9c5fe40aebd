package llm

import (
	"context"
	"time"
)

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, prompt Prompt) (Completion, error)
}

// Prompt is a single system plus user exchange.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completion is the provider's text answer and its token usage.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Config holds configuration for the LLM boundary.
type Config struct {
	Provider          string
	APIKey            string
	Model             string
	FewShotStrategy   string
	MaxRetries        int
	RetryDelay        time.Duration
	CacheTTL          time.Duration
	Timeout           time.Duration // Per attempt
	RateLimit         int           // Requests per minute
	MaxConcurrent     int
	MaxTokens         int
	FewShotCount      int
	Temperature       float64
	DefaultConfidence float64
}

// DefaultConfig returns the default provider settings.
func DefaultConfig() Config {
	return Config{
		Provider:          "anthropic",
		Model:             defaultAnthropicModel,
		MaxRetries:        3,
		RetryDelay:        500 * time.Millisecond,
		CacheTTL:          time.Hour,
		Timeout:           30 * time.Second,
		RateLimit:         50,
		MaxConcurrent:     4,
		MaxTokens:         1000,
		Temperature:       0.2,
		DefaultConfidence: 0.5,
		FewShotCount:      5,
		FewShotStrategy:   string(StrategyDiverse),
	}
}
