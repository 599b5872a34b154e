package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	. "github.com/roelfdiedericks/skydigest/internal/logging"
)

// DefaultOllamaURL is where a locally started server listens.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaProvider implements Provider for a local Ollama server.
// It also exposes the status and model-list calls the server manager needs.
type OllamaProvider struct {
	name   string
	url    string
	client *http.Client
}

// ollamaGenerateRequest is the request body for /api/generate
type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// ollamaGenerateResponse is the non-streaming response from /api/generate.
// Response is a pointer so a missing field can be told apart from an empty reply.
type ollamaGenerateResponse struct {
	Response *string `json:"response"`
	Error    string  `json:"error,omitempty"`
}

// ollamaTagsResponse is the response from /api/tags (partial)
type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(cfg ProviderConfig) (*OllamaProvider, error) {
	url := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if url == "" {
		return nil, fmt.Errorf("ollama URL not configured")
	}

	L_debug("ollama provider created", "url", url, "timeout", cfg.timeout())

	return &OllamaProvider{
		name:   "ollama",
		url:    url,
		client: &http.Client{Timeout: cfg.timeout()},
	}, nil
}

// Name returns the provider instance name
func (p *OllamaProvider) Name() string {
	return p.name
}

// Complete issues a single non-streaming generation request.
func (p *OllamaProvider) Complete(ctx context.Context, model, prompt string) (string, error) {
	jsonData, err := json.Marshal(ollamaGenerateRequest{Model: model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", &ProviderError{Provider: p.name, Model: model, Err: fmt.Errorf("marshal request: %w", err)}
	}

	url := p.url + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", &ProviderError{Provider: p.name, Model: model, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	L_debug("ollama: sending request", "url", url, "model", model, "promptChars", len(prompt))

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: p.name, Model: model, Err: fmt.Errorf("send request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: p.name, Model: model, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		L_error("ollama: request failed", "status", resp.StatusCode, "body", string(body))
		return "", &ProviderError{Provider: p.name, Model: model, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result ollamaGenerateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &ProviderError{Provider: p.name, Model: model, Err: fmt.Errorf("decode response: %w", err)}
	}
	if result.Error != "" {
		return "", &ProviderError{Provider: p.name, Model: model, Err: errors.New(result.Error)}
	}
	if result.Response == nil {
		return "", &ProviderError{Provider: p.name, Model: model, Err: errors.New("decode response: missing \"response\" field")}
	}

	L_debug("ollama: request completed", "model", model, "responseChars", len(*result.Response))
	return *result.Response, nil
}

// Ping checks that the server answers the status endpoint with 200.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	_, err := p.tags(ctx)
	return err
}

// ListModels returns the names of the locally installed models.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]string, error) {
	tags, err := p.tags(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		names = append(names, name)
	}
	return names, nil
}

func (p *OllamaProvider) tags(ctx context.Context) (*ollamaTagsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
