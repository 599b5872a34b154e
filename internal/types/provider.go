package types

import (
	"fmt"
	"strings"
)

// ProviderKind selects the LLM backend. It is resolved once, when the
// summarizer is constructed.
type ProviderKind int

const (
	KindUnknown          ProviderKind = iota
	KindOpenAI                        // hosted OpenAI API, ordered model fallback
	KindOpenAICompatible              // OpenAI-compatible alternate endpoint, ordered model fallback
	KindOllama                        // locally managed Ollama server, first model only
	KindAnthropic                     // hosted Anthropic messages API, first model only
)

func (k ProviderKind) String() string {
	switch k {
	case KindOpenAI:
		return "openai"
	case KindOpenAICompatible:
		return "openai_compatible"
	case KindOllama:
		return "ollama"
	case KindAnthropic:
		return "anthropic"
	default:
		return "unknown"
	}
}

// SupportsFallback reports whether the kind walks the whole candidate model list.
func (k ProviderKind) SupportsFallback() bool {
	return k == KindOpenAI || k == KindOpenAICompatible
}

// NeedsEndpoint reports whether the kind requires a configured base URL.
func (k ProviderKind) NeedsEndpoint() bool {
	return k == KindOpenAICompatible || k == KindOllama
}

// ParseProviderKind parses a config value such as "openai" or "ollama".
func ParseProviderKind(s string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return KindOpenAI, nil
	case "openai_compatible", "openai-compatible", "openai_compat":
		return KindOpenAICompatible, nil
	case "ollama", "local":
		return KindOllama, nil
	case "anthropic":
		return KindAnthropic, nil
	default:
		return KindUnknown, fmt.Errorf("unknown provider %q (must be 'openai', 'openai_compatible', 'ollama' or 'anthropic')", s)
	}
}
