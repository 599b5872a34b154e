package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/roelfdiedericks/skydigest/internal/types"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"429 status", &ProviderError{Provider: "openai", StatusCode: 429, Body: "slow down"}, ErrorTypeRateLimit},
		{"401 status", &ProviderError{Provider: "openai", StatusCode: 401}, ErrorTypeAuth},
		{"402 status", &ProviderError{Provider: "openai", StatusCode: 402}, ErrorTypeBilling},
		{"404 status", &ProviderError{Provider: "ollama", StatusCode: 404}, ErrorTypeNotFound},
		{"529 status", &ProviderError{Provider: "anthropic", StatusCode: 529}, ErrorTypeOverloaded},
		{"deadline", &ProviderError{Provider: "ollama", Err: fmt.Errorf("send request: %w", context.DeadlineExceeded)}, ErrorTypeTimeout},
		{"quota message", errors.New("You exceeded your current quota"), ErrorTypeRateLimit},
		{"billing message", errors.New("insufficient_quota: check your plan"), ErrorTypeBilling},
		{"refused", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), ErrorTypeNetwork},
		{"format", &ProviderError{Provider: "openai", Err: errors.New("empty response: no choices returned")}, ErrorTypeFormat},
		{"other", errors.New("something odd"), ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProviderErrorMessage(t *testing.T) {
	tests := []struct {
		err  *ProviderError
		want string
	}{
		{&ProviderError{Provider: "ollama", StatusCode: 500, Body: "boom"}, "ollama API error: 500 - boom"},
		{&ProviderError{Provider: "openai", Model: "gpt-4o", StatusCode: 429, Body: "quota"}, "openai (gpt-4o) API error: 429 - quota"},
		{&ProviderError{Provider: "anthropic", Model: "claude", Err: errors.New("no content")}, "anthropic (claude): no content"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}

	cause := errors.New("root cause")
	pe := &ProviderError{Provider: "x", Err: cause}
	if !errors.Is(pe, cause) {
		t.Error("ProviderError should unwrap to its cause")
	}
}

func TestNewProviderDispatch(t *testing.T) {
	tests := []struct {
		cfg      ProviderConfig
		wantName string
		wantErr  bool
	}{
		{ProviderConfig{Kind: types.KindOpenAI, APIKey: "sk"}, "openai", false},
		{ProviderConfig{Kind: types.KindOpenAICompatible, BaseURL: "http://localhost:1234/v1"}, "openai_compatible", false},
		{ProviderConfig{Kind: types.KindAnthropic, APIKey: "k"}, "anthropic", false},
		{ProviderConfig{Kind: types.KindOllama, BaseURL: DefaultOllamaURL}, "ollama", false},
		{ProviderConfig{Kind: types.KindUnknown}, "", true},
	}

	for _, tt := range tests {
		p, err := NewProvider(tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewProvider(%s) error = %v, wantErr %v", tt.cfg.Kind, err, tt.wantErr)
			continue
		}
		if err == nil && p.Name() != tt.wantName {
			t.Errorf("NewProvider(%s).Name() = %q, want %q", tt.cfg.Kind, p.Name(), tt.wantName)
		}
	}
}
