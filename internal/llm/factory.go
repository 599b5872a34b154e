// Package llm - Provider factory
package llm

import (
	"fmt"

	"github.com/roelfdiedericks/skydigest/internal/types"
)

// NewProvider creates a provider instance from config.
// The kind is dispatched here once; callers only ever see the Provider capability.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Kind {
	case types.KindOpenAI:
		return NewOpenAIProvider(cfg)
	case types.KindOpenAICompatible:
		return NewOpenAICompatibleProvider(cfg)
	case types.KindAnthropic:
		return NewAnthropicProvider(cfg)
	case types.KindOllama:
		return NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider kind: %s", cfg.Kind)
	}
}
