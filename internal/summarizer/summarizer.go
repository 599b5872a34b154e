// Package summarizer turns a post collection into a digest using the
// configured provider, walking the candidate model list where the provider
// kind allows it.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/roelfdiedericks/skydigest/internal/llm"
	. "github.com/roelfdiedericks/skydigest/internal/logging"
	. "github.com/roelfdiedericks/skydigest/internal/metrics"
	"github.com/roelfdiedericks/skydigest/internal/prompt"
	"github.com/roelfdiedericks/skydigest/internal/tokens"
	"github.com/roelfdiedericks/skydigest/internal/types"
)

const (
	// NoPostsMessage is returned for an empty collection without calling any provider.
	NoPostsMessage = "No posts found in the specified time period."

	// ErrorPrefix starts every summary that reports a failure instead of a digest.
	ErrorPrefix = "Error generating summary: "
)

// Server prepares a local model server before generation.
// *modelserver.Manager satisfies it.
type Server interface {
	Setup(ctx context.Context) error
}

// TokenCounter estimates prompt size for logging. *tokens.Estimator satisfies it.
type TokenCounter interface {
	Count(text string) int
}

// Config selects the provider kind and the candidate models.
// Models[0] is the primary; the rest are fallbacks for kinds that support them.
type Config struct {
	Kind    types.ProviderKind
	Models  []string
	Builder *prompt.Builder // nil = default template
}

// Option configures optional collaborators.
type Option func(*Summarizer)

// WithServer sets the local server manager. Required for KindOllama.
func WithServer(s Server) Option {
	return func(sm *Summarizer) { sm.server = s }
}

// WithTokenCounter enables prompt token estimates in logs.
func WithTokenCounter(c TokenCounter) Option {
	return func(sm *Summarizer) { sm.counter = c }
}

// WithContextWindow warns when a prompt plus maxOutput may not fit window tokens.
// It needs a token counter to have any effect.
func WithContextWindow(window, maxOutput int) Option {
	return func(sm *Summarizer) {
		sm.window = window
		sm.maxOutput = maxOutput
	}
}

// Result is a successful generation.
type Result struct {
	Text     string
	Model    string // model that produced Text, empty for NoPostsMessage
	Attempts int    // provider calls made
}

// Summarizer is safe for sequential reuse; configuration never changes after New.
type Summarizer struct {
	kind     types.ProviderKind
	models   []string
	builder  *prompt.Builder
	provider llm.Provider
	server   Server
	counter  TokenCounter

	window    int
	maxOutput int
}

// New creates a summarizer bound to one provider.
func New(cfg Config, provider llm.Provider, opts ...Option) (*Summarizer, error) {
	if provider == nil {
		return nil, errors.New("summarizer: provider is required")
	}
	if cfg.Kind == types.KindUnknown {
		return nil, errors.New("summarizer: provider kind is required")
	}

	models := make([]string, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	if len(models) == 0 {
		return nil, errors.New("summarizer: at least one model is required")
	}

	s := &Summarizer{
		kind:     cfg.Kind,
		models:   models,
		builder:  cfg.Builder,
		provider: provider,
	}
	if s.builder == nil {
		s.builder = prompt.NewBuilder("")
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.kind == types.KindOllama && s.server == nil {
		return nil, errors.New("summarizer: ollama requires a server manager")
	}
	if !s.kind.SupportsFallback() && len(s.models) > 1 {
		L_warn("summarizer: provider uses only the first model, ignoring the rest",
			"provider", s.kind, "model", s.models[0], "ignored", s.models[1:])
	}

	L_debug("summarizer: created", "provider", s.kind, "models", s.models)
	return s, nil
}

// ServerError reports that the local model server could not be prepared.
// Summarize returns it instead of rendering it, so the run stops.
type ServerError struct {
	Err error
}

func (e *ServerError) Error() string { return e.Err.Error() }

func (e *ServerError) Unwrap() error { return e.Err }

// GenerateSummary always returns display text: the digest, NoPostsMessage,
// or ErrorPrefix followed by the failure. It never panics.
func (s *Summarizer) GenerateSummary(ctx context.Context, posts types.PostCollection) string {
	summary, err := s.Summarize(ctx, posts)
	if err != nil {
		return ErrorPrefix + err.Error()
	}
	return summary
}

// Summarize is GenerateSummary for callers that must halt on a broken local
// server: a *ServerError is returned, every other failure is rendered as
// ErrorPrefix text. It never panics.
func (s *Summarizer) Summarize(ctx context.Context, posts types.PostCollection) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			L_error("summarizer: panic during generation", "panic", r)
			summary, err = ErrorPrefix+fmt.Sprint(r), nil
		}
	}()

	res, err := s.Generate(ctx, posts)
	var serverErr *ServerError
	switch {
	case errors.As(err, &serverErr):
		return "", err
	case err != nil:
		return ErrorPrefix + err.Error(), nil
	}
	return res.Text, nil
}

// Generate is the error-returning form of GenerateSummary.
func (s *Summarizer) Generate(ctx context.Context, posts types.PostCollection) (*Result, error) {
	if posts.IsEmpty() {
		L_info("summarizer: no posts to summarize")
		return &Result{Text: NoPostsMessage}, nil
	}

	runID := uuid.NewString()
	text := s.builder.Build(posts)

	fields := []any{"run", runID, "provider", s.provider.Name(), "accounts", len(posts), "posts", posts.Total(), "promptChars", len(text)}
	if s.counter != nil {
		n := s.counter.Count(text)
		fields = append(fields, "promptTokens", n)
		if !tokens.FitsContext(n, s.maxOutput, s.window) {
			L_warn("summarizer: prompt may exceed the model context window",
				"run", runID, "promptTokens", n, "maxOutput", s.maxOutput, "window", s.window)
		}
	}
	L_info("summarizer: generating summary", fields...)

	start := time.Now()
	var (
		res *Result
		err error
	)
	switch s.kind {
	case types.KindOpenAI, types.KindOpenAICompatible:
		res, err = s.completeWithFallback(ctx, runID, text)
	case types.KindOllama:
		if err = s.server.Setup(ctx); err != nil {
			err = &ServerError{Err: err}
		} else {
			res, err = s.completeOnce(ctx, runID, text)
		}
	case types.KindAnthropic:
		res, err = s.completeOnce(ctx, runID, text)
	default:
		err = fmt.Errorf("unsupported provider kind: %s", s.kind)
	}

	if err != nil {
		L_error("summarizer: generation failed", "run", runID, "provider", s.provider.Name(), "error", err)
		return nil, err
	}

	L_info("summarizer: summary generated", "run", runID, "model", res.Model,
		"attempts", res.Attempts, "chars", len(res.Text), "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// completeWithFallback tries each model in order. The first success wins;
// if all fail the last error is returned.
func (s *Summarizer) completeWithFallback(ctx context.Context, runID, text string) (*Result, error) {
	var lastErr error
	for i, model := range s.models {
		if i > 0 {
			L_warn("failover: trying next model", "run", runID, "model", model, "previous", s.models[i-1])
		}

		out, err := s.attempt(ctx, model, text)
		if err == nil {
			return &Result{Text: out, Model: model, Attempts: i + 1}, nil
		}

		lastErr = err
		L_warn("summarizer: model failed", "run", runID, "model", model,
			"attempt", i+1, "type", llm.ClassifyError(err), "error", err)

		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (s *Summarizer) completeOnce(ctx context.Context, runID, text string) (*Result, error) {
	model := s.models[0]
	out, err := s.attempt(ctx, model, text)
	if err != nil {
		L_debug("summarizer: model failed", "run", runID, "model", model, "type", llm.ClassifyError(err))
		return nil, err
	}
	return &Result{Text: out, Model: model, Attempts: 1}, nil
}

// attempt makes one provider call and records its latency and outcome.
func (s *Summarizer) attempt(ctx context.Context, model, text string) (string, error) {
	start := time.Now()
	out, err := s.provider.Complete(ctx, model, text)
	MetricSince("llm", model, start)
	if err != nil {
		MetricFailWithReason("llm", model, string(llm.ClassifyError(err)))
		return "", err
	}
	MetricSuccess("llm", model)
	return out, nil
}

// IsErrorSummary reports whether a summary string reports a failure.
func IsErrorSummary(summary string) bool {
	return strings.HasPrefix(summary, ErrorPrefix)
}
