package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Veraticus/card-purpose/internal/common"
)

const defaultAnthropicModel = "claude-sonnet-4-5"

// anthropicClient implements the Client interface for the Anthropic API.
type anthropicClient struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int
}

// newAnthropicClient creates a new Anthropic API client. Extra request options
// are appended after the defaults.
func newAnthropicClient(cfg Config, extra ...option.RequestOption) (*anthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}

	// Retries are handled by the predictor.
	opts := append([]option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}, extra...)

	return &anthropicClient{
		client:      anthropic.NewClient(opts...),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Complete sends one message to Anthropic and returns the first text block.
func (c *anthropicClient) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	maxTokens := prompt.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	temperature := prompt.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
	}
	if prompt.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: prompt.System}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return Completion{}, classifyAnthropicError(err)
	}

	completion := Completion{
		Model:        c.model,
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			completion.Text = block.Text
			return completion, nil
		}
	}
	return completion, fmt.Errorf("%w: no text content in response", common.ErrMalformedResponse)
}

// classifyAnthropicError marks rate limits and server errors as retryable.
// Other API errors, such as authentication failures, are final.
func classifyAnthropicError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("anthropic API error: %w: %w", common.ErrRateLimit, err)
		case apiErr.StatusCode >= http.StatusInternalServerError,
			apiErr.StatusCode == http.StatusRequestTimeout:
			return &common.RetryableError{
				Err:       fmt.Errorf("anthropic API error (status %d): %w", apiErr.StatusCode, err),
				Retryable: true,
			}
		default:
			return &common.RetryableError{
				Err:       fmt.Errorf("anthropic API error (status %d): %w", apiErr.StatusCode, err),
				Retryable: false,
			}
		}
	}

	// Transport failures are worth another attempt.
	return &common.RetryableError{
		Err:       fmt.Errorf("anthropic request failed: %w", err),
		Retryable: true,
	}
}
