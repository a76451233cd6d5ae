package llm

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/unisco/ticketlearn/pkg/errors"
	"github.com/unisco/ticketlearn/pkg/logging"
)

const (
	defaultMaxTokens = 2048
	defaultTimeout   = 120 * time.Second
)

// AnthropicCompleter implements Completer on top of the Anthropic API.
type AnthropicCompleter struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
	timeout     time.Duration
}

// AnthropicOption configures an AnthropicCompleter.
type AnthropicOption func(*AnthropicCompleter)

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int64) AnthropicOption {
	return func(a *AnthropicCompleter) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) AnthropicOption {
	return func(a *AnthropicCompleter) {
		a.temperature = t
	}
}

// WithCallTimeout bounds each completion call. Evaluator calls ride on an
// LLM roundtrip, so an upper bound is mandatory.
func WithCallTimeout(d time.Duration) AnthropicOption {
	return func(a *AnthropicCompleter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAnthropicCompleter creates a completer for the given model.
func NewAnthropicCompleter(apiKey string, model string, opts ...AnthropicOption) (*AnthropicCompleter, error) {
	if apiKey == "" {
		return nil, errors.New(errors.InvalidInput, "anthropic api key is required")
	}
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}

	a := &AnthropicCompleter{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       anthropic.Model(model),
		maxTokens:   defaultMaxTokens,
		temperature: 0.3,
		timeout:     defaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Complete sends a single-turn prompt and returns the concatenated text.
func (a *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model: a.model,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(a.temperature),
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.Wrap(err, errors.Timeout, "completion timed out")
		}
		return "", errors.Wrap(err, errors.Transport, "completion failed")
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	text := b.String()
	if text == "" {
		return "", errors.New(errors.InvalidResponse, "completion returned no text")
	}

	logging.GetLogger().Debug(ctx, "completion returned %d characters", len(text))
	return text, nil
}
