package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	. "github.com/roelfdiedericks/skydigest/internal/logging"
)

// OpenAIProvider implements Provider for the OpenAI chat completions API.
// The hosted and alternate-endpoint variants share this type; they differ only
// in the credential and base URL bound at construction.
type OpenAIProvider struct {
	name         string // "openai" or "openai_compatible"
	client       *openai.Client
	baseURL      string // "" for the hosted default
	maxTokens    int
	systemPrompt string
}

// NewOpenAIProvider creates a provider for the hosted OpenAI API.
func NewOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key not configured")
	}
	return newOpenAI("openai", cfg.APIKey, "", cfg), nil
}

// NewOpenAICompatibleProvider creates a provider for an OpenAI-compatible endpoint
// (OpenRouter, LM Studio, vLLM, ...). The API key is optional for local servers.
func NewOpenAICompatibleProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai_compatible base URL not configured")
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "not-needed" // Placeholder for servers that don't require auth
	}
	return newOpenAI("openai_compatible", apiKey, NormalizeBaseURL(cfg.BaseURL), cfg), nil
}

func newOpenAI(name, apiKey, baseURL string, cfg ProviderConfig) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = &http.Client{Timeout: cfg.timeout()}

	displayURL := baseURL
	if displayURL == "" {
		displayURL = "(default)"
	}
	L_debug("openai provider created", "name", name, "baseURL", displayURL, "maxTokens", cfg.maxTokens(), "timeout", cfg.timeout())

	return &OpenAIProvider{
		name:         name,
		client:       openai.NewClientWithConfig(config),
		baseURL:      baseURL,
		maxTokens:    cfg.maxTokens(),
		systemPrompt: cfg.systemPrompt(),
	}
}

// NormalizeBaseURL makes sure an endpoint ends with a path separator.
func NormalizeBaseURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" || strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

// Name returns the provider instance name
func (p *OpenAIProvider) Name() string {
	return p.name
}

// BaseURL returns the normalized endpoint, empty for the hosted API.
func (p *OpenAIProvider) BaseURL() string {
	return p.baseURL
}

// Complete sends the system instruction and prompt as one chat completion.
func (p *OpenAIProvider) Complete(ctx context.Context, model, prompt string) (string, error) {
	L_debug("openai: sending request", "provider", p.name, "model", model, "promptChars", len(prompt))

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return "", p.wrapError(model, err)
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: p.name, Model: model, Err: errors.New("empty response: no choices returned")}
	}

	text := resp.Choices[0].Message.Content
	L_debug("openai: request completed", "provider", p.name, "model", model, "responseChars", len(text))
	return text, nil
}

// wrapError converts go-openai errors into a ProviderError, keeping the status code.
func (p *OpenAIProvider) wrapError(model string, err error) error {
	pe := &ProviderError{Provider: p.name, Model: model, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		pe.StatusCode = apiErr.HTTPStatusCode
		pe.Body = apiErr.Message
	case errors.As(err, &reqErr):
		pe.StatusCode = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			pe.Body = reqErr.Err.Error()
		}
	}
	return pe
}
