package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/roelfdiedericks/skydigest/internal/logging"
	"github.com/roelfdiedericks/skydigest/internal/types"
)

func init() {
	logging.SetOutput(io.Discard)
}

func newTestOllama(t *testing.T, handler http.HandlerFunc) *OllamaProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewOllamaProvider(ProviderConfig{Kind: types.KindOllama, BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("NewOllamaProvider failed: %v", err)
	}
	return p
}

func TestOllamaComplete(t *testing.T) {
	p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "llama3.2" || req.Prompt != "summarize this" || req.Stream {
			t.Errorf("unexpected request body: %+v", req)
		}
		w.Write([]byte(`{"model":"llama3.2","response":"the digest","done":true}`))
	})

	got, err := p.Complete(context.Background(), "llama3.2", "summarize this")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "the digest" {
		t.Errorf("Complete() = %q, want %q", got, "the digest")
	}
}

func TestOllamaCompleteErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantSubstr string
	}{
		{"server error", http.StatusInternalServerError, "boom", 500, "500 - boom"},
		{"model missing", http.StatusNotFound, `{"error":"model 'x' not found"}`, 404, "not found"},
		{"missing response field", http.StatusOK, `{"done":true}`, 0, "missing"},
		{"malformed json", http.StatusOK, `{not json`, 0, "decode response"},
		{"error field", http.StatusOK, `{"error":"out of memory"}`, 0, "out of memory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := p.Complete(context.Background(), "x", "prompt")
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ProviderError, got %T", err)
			}
			if pe.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", pe.StatusCode, tt.wantStatus)
			}
			if !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantSubstr)
			}
		})
	}
}

func TestOllamaCompleteNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p, err := NewOllamaProvider(ProviderConfig{BaseURL: url})
	if err != nil {
		t.Fatalf("NewOllamaProvider failed: %v", err)
	}
	_, err = p.Complete(context.Background(), "llama3", "prompt")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError, got %v", err)
	}
	if pe.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for network failure", pe.StatusCode)
	}
}

func TestOllamaListModels(t *testing.T) {
	p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/tags" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama3.2:latest"},{"model":"mistral:7b"}]}`))
	})

	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 2 || models[0] != "llama3.2:latest" || models[1] != "mistral:7b" {
		t.Errorf("ListModels() = %v", models)
	}
}

func TestOllamaPingFailure(t *testing.T) {
	p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if err := p.Ping(context.Background()); err == nil {
		t.Fatal("expected Ping to fail on 503")
	}
}

func TestNewOllamaProviderRequiresURL(t *testing.T) {
	if _, err := NewOllamaProvider(ProviderConfig{}); err == nil {
		t.Fatal("expected error for empty URL")
	}
}
