package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	. "github.com/roelfdiedericks/skydigest/internal/logging"
)

// AnthropicProvider implements Provider for Anthropic's messages API.
// Requests carry a single user message; there is no system instruction.
type AnthropicProvider struct {
	name      string
	client    *anthropic.Client
	maxTokens int
	baseURL   string // Custom API base URL (Anthropic-compatible APIs)
}

// NewAnthropicProvider creates a new Anthropic provider.
// Supports a custom BaseURL for Anthropic-compatible APIs.
func NewAnthropicProvider(cfg ProviderConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout()}),
		option.WithMaxRetries(0), // fallback and retry belong to the summarizer
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "(default)"
	}
	L_debug("anthropic provider created", "baseURL", baseURL, "maxTokens", cfg.maxTokens(), "timeout", cfg.timeout())

	return &AnthropicProvider{
		name:      "anthropic",
		client:    &client,
		maxTokens: cfg.maxTokens(),
		baseURL:   cfg.BaseURL,
	}, nil
}

// Name returns the provider instance name
func (p *AnthropicProvider) Name() string {
	return p.name
}

// Complete sends the prompt as a single user message and returns the first content block's text.
func (p *AnthropicProvider) Complete(ctx context.Context, model, prompt string) (string, error) {
	L_debug("anthropic: sending request", "model", model, "promptChars", len(prompt))

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(p.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		pe := &ProviderError{Provider: p.name, Model: model, Err: err}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			pe.StatusCode = apiErr.StatusCode
			pe.Body = apiErr.Error()
		}
		return "", pe
	}

	if len(msg.Content) == 0 {
		return "", &ProviderError{Provider: p.name, Model: model, Err: errors.New("no content in response")}
	}
	block := msg.Content[0]
	if block.Type != "text" {
		return "", &ProviderError{Provider: p.name, Model: model, Err: fmt.Errorf("first content block is %q, not text", block.Type)}
	}

	L_debug("anthropic: request completed", "model", model, "responseChars", len(block.Text), "stopReason", msg.StopReason)
	return block.Text, nil
}
