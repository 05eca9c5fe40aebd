package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Veraticus/card-purpose/internal/common"
)

const defaultGeminiModel = "gemini-1.5-flash"

// geminiClient implements the Client interface for Google Gemini.
type geminiClient struct {
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int
}

func newGeminiClient(ctx context.Context, cfg Config) (*geminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "claude") {
		model = defaultGeminiModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}

	return &geminiClient{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Complete sends the prompt to Gemini. The system prompt is sent ahead of the
// user prompt in the same turn.
func (c *geminiClient) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	model := c.client.GenerativeModel(c.model)

	temperature := prompt.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	model.SetTemperature(float32(temperature))

	maxTokens := prompt.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	model.SetMaxOutputTokens(int32(maxTokens)) //nolint:gosec // bounded by configuration

	text := prompt.User
	if prompt.System != "" {
		text = prompt.System + "\n\n" + prompt.User
	}

	resp, err := model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return Completion{}, classifyGeminiError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Completion{Model: c.model}, fmt.Errorf("%w: no candidates in Gemini response", common.ErrMalformedResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if sb.Len() == 0 {
		return Completion{Model: c.model}, fmt.Errorf("%w: no text in Gemini response", common.ErrMalformedResponse)
	}

	return Completion{Text: sb.String(), Model: c.model}, nil
}

// Close releases the underlying gRPC connection.
func (c *geminiClient) Close() error {
	return c.client.Close()
}

func classifyGeminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("gemini API error: %w: %w", common.ErrRateLimit, err)
		case apiErr.Code >= http.StatusInternalServerError:
			return &common.RetryableError{Err: fmt.Errorf("gemini API error (status %d): %w", apiErr.Code, err), Retryable: true}
		default:
			return &common.RetryableError{Err: fmt.Errorf("gemini API error (status %d): %w", apiErr.Code, err), Retryable: false}
		}
	}

	return &common.RetryableError{Err: fmt.Errorf("gemini request failed: %w", err), Retryable: true}
}
