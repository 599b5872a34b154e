// Package llm provides the provider adapters used to turn a prompt into digest text.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/roelfdiedericks/skydigest/internal/types"
)

// Output budget and timeouts shared by all adapters.
const (
	DefaultMaxTokens      = 1000
	DefaultRequestTimeout = 120 * time.Second
	DefaultSystemPrompt   = "You are a helpful assistant that summarizes social media content."
)

// Provider is the single capability every backend implements.
// Implementations: OpenAIProvider, AnthropicProvider, OllamaProvider
type Provider interface {
	Name() string // Provider instance name (e.g., "openai", "ollama")

	// Complete issues one completion request. Implementations never retry;
	// every failure is returned as a *ProviderError.
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// ProviderConfig is the configuration for a single provider instance.
// It is captured at construction and never mutated afterwards.
type ProviderConfig struct {
	Kind         types.ProviderKind
	APIKey       string        // For cloud providers
	BaseURL      string        // OpenAI-compatible endpoint or Ollama URL
	Timeout      time.Duration // Generation request timeout (0 = DefaultRequestTimeout)
	MaxTokens    int           // Output limit (0 = DefaultMaxTokens)
	SystemPrompt string        // OpenAI-style system instruction (empty = DefaultSystemPrompt)
}

func (c ProviderConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultRequestTimeout
	}
	return c.Timeout
}

func (c ProviderConfig) maxTokens() int {
	if c.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return c.MaxTokens
}

func (c ProviderConfig) systemPrompt() string {
	if c.SystemPrompt == "" {
		return DefaultSystemPrompt
	}
	return c.SystemPrompt
}

// ProviderError describes one failed completion attempt.
type ProviderError struct {
	Provider   string
	Model      string
	StatusCode int    // HTTP status, 0 when the request never got a response
	Body       string // Response body or API error message
	Err        error  // Underlying cause, may be nil when StatusCode is set
}

func (e *ProviderError) Error() string {
	prefix := e.Provider
	if e.Model != "" {
		prefix = fmt.Sprintf("%s (%s)", e.Provider, e.Model)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error: %d - %s", prefix, e.StatusCode, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return prefix + ": " + e.Body
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Type classifies the failure for logging.
func (e *ProviderError) Type() ErrorType {
	return ClassifyError(e)
}
