// Package tokens estimates prompt sizes with tiktoken.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	. "github.com/roelfdiedericks/skydigest/internal/logging"
)

// DefaultEncoding is cl100k_base, close enough for GPT-4, Claude and most local models.
const DefaultEncoding = "cl100k_base"

// Estimator counts tokens, falling back to chars/4 without an encoding.
type Estimator struct {
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex
}

var (
	globalEstimator     *Estimator
	globalEstimatorOnce sync.Once
)

// Get returns the shared estimator. Encoding load failures are logged once.
func Get() *Estimator {
	globalEstimatorOnce.Do(func() {
		var err error
		globalEstimator, err = New(DefaultEncoding)
		if err != nil {
			L_warn("tokens: failed to load encoding, using char-based estimate", "error", err)
			globalEstimator = &Estimator{}
		}
	})
	return globalEstimator
}

// New loads the named encoding.
func New(encoding string) (*Estimator, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &Estimator{encoding: enc}, nil
}

// Fallback returns an estimator that never touches tiktoken.
func Fallback() *Estimator {
	return &Estimator{}
}

// Count returns the token count for text.
func (e *Estimator) Count(text string) int {
	if e == nil || e.encoding == nil {
		return len(text) / 4
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.encoding.Encode(text, nil, nil))
}

// SafetyMargin covers tokenizer drift for non-OpenAI models.
const SafetyMargin = 1.2

// FitsContext reports whether a prompt of promptTokens plus maxOutput fits in
// contextWindow after applying SafetyMargin. A zero window means unknown and always fits.
func FitsContext(promptTokens, maxOutput, contextWindow int) bool {
	if contextWindow <= 0 {
		return true
	}
	return int(float64(promptTokens)*SafetyMargin)+maxOutput <= contextWindow
}
