package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roelfdiedericks/skydigest/internal/bluesky"
	"github.com/roelfdiedericks/skydigest/internal/config"
	"github.com/roelfdiedericks/skydigest/internal/cron"
	"github.com/roelfdiedericks/skydigest/internal/digest"
	"github.com/roelfdiedericks/skydigest/internal/email"
	"github.com/roelfdiedericks/skydigest/internal/llm"
	. "github.com/roelfdiedericks/skydigest/internal/logging"
	"github.com/roelfdiedericks/skydigest/internal/metrics"
	"github.com/roelfdiedericks/skydigest/internal/modelserver"
	"github.com/roelfdiedericks/skydigest/internal/prompt"
	"github.com/roelfdiedericks/skydigest/internal/summarizer"
	"github.com/roelfdiedericks/skydigest/internal/tokens"
	"github.com/roelfdiedericks/skydigest/internal/types"
)

// app holds the wired collaborators for one process.
type app struct {
	cfg        *config.Config
	bsky       *bluesky.Client
	pipeline   *digest.Pipeline
	server     *modelserver.Manager // nil unless the provider is ollama
	builder    *prompt.Builder
	promptFile string // template file, "" when the default is used
}

func newApp(ctx context.Context, cli *CLI, withMailer bool) (*app, error) {
	if err := config.LoadEnv(cli.EnvFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}

	levelName := cli.LogLevel
	if levelName == "" {
		levelName = cfg.Settings.LogLevel
	}
	level, err := ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	SetLevel(level)

	a := &app{cfg: cfg}

	sum, err := a.newSummarizer()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.bsky = bluesky.NewClient(cfg.Bluesky.Service)

	var mailer digest.Mailer
	if withMailer {
		sender, err := email.NewSender(email.Config{
			Host:     cfg.Email.SMTPServer,
			Port:     cfg.Email.SMTPPort,
			From:     cfg.Email.SenderEmail,
			Password: cfg.Email.SenderPassword,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		mailer = sender
	}

	a.pipeline, err = digest.New(digest.Options{
		Accounts:        cfg.BlueskyUsers,
		Lookback:        cfg.Lookback(),
		MaxPostsPerUser: cfg.Settings.MaxPostsPerUser,
		Recipients:      cfg.Email.RecipientEmails,
		Subject:         cfg.Email.Subject,
	}, a.bsky, sum, mailer)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) newSummarizer() (*summarizer.Summarizer, error) {
	kind := a.cfg.Kind()

	provider, err := llm.NewProvider(llm.ProviderConfig{
		Kind:      kind,
		APIKey:    a.cfg.APIKey(),
		BaseURL:   a.cfg.AI.BaseURL,
		Timeout:   a.cfg.Timeout(),
		MaxTokens: a.cfg.AI.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	opts := []summarizer.Option{
		summarizer.WithTokenCounter(tokens.Get()),
		summarizer.WithContextWindow(a.cfg.AI.ContextWindow, a.cfg.AI.MaxTokens),
	}

	if kind == types.KindOllama {
		api, ok := provider.(*llm.OllamaProvider)
		if !ok {
			return nil, errors.New("ollama provider does not expose server status")
		}
		a.server, err = modelserver.NewManager(modelserver.Options{
			Model:    a.cfg.AI.Models[0],
			API:      api,
			Launcher: modelserver.ExecLauncher{Binary: a.cfg.AI.OllamaBinary},
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, summarizer.WithServer(a.server))
	}

	promptPath, err := a.cfg.PromptPath()
	if err != nil {
		return nil, err
	}
	tmpl, err := prompt.LoadTemplate(promptPath)
	if err != nil {
		return nil, err
	}

	a.builder = prompt.NewBuilder(tmpl)
	a.promptFile = promptPath

	return summarizer.New(summarizer.Config{
		Kind:    kind,
		Models:  a.cfg.AI.Models,
		Builder: a.builder,
	}, provider, opts...)
}

// login opens a fresh session; access tokens expire between scheduled runs.
func (a *app) login(ctx context.Context) error {
	return a.bsky.Login(ctx, a.cfg.Bluesky.Username, a.cfg.Bluesky.Password)
}

func (a *app) runOnce(ctx context.Context) error {
	L_info("skydigest: starting run", "version", version)
	if err := a.login(ctx); err != nil {
		return err
	}
	_, err := a.pipeline.Run(ctx)
	logMetrics()
	if err != nil {
		return err
	}
	L_info("skydigest: run completed successfully")
	return nil
}

// logMetrics dumps the in-process metrics at debug level.
func logMetrics() {
	for _, s := range metrics.GetInstance().Snapshot() {
		switch {
		case s.Count > 0:
			L_debug("metrics", "path", s.Path, "count", s.Count, "avgMs", s.AvgMs, "p95Ms", s.P95Ms, "ok", s.Success, "failed", s.Failure)
		case s.Success+s.Failure > 0:
			L_debug("metrics", "path", s.Path, "ok", s.Success, "failed", s.Failure, "reasons", s.Reasons)
		default:
			L_debug("metrics", "path", s.Path, "counter", s.Counter)
		}
	}
}

func (a *app) preview(ctx context.Context) (string, error) {
	if err := a.login(ctx); err != nil {
		return "", err
	}
	out, err := a.pipeline.Preview(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Posts: %d from %s\n\n", out.Posts.Total(), strings.Join(out.Posts.Accounts(), ", "))
	sb.WriteString(out.Summary)
	return sb.String(), nil
}

func (a *app) serve(ctx context.Context, override string) error {
	expr := a.cfg.Settings.Schedule
	if override != "" {
		expr = override
	}
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}

	sched, err := cron.New(expr, loc, 0, a.runOnce)
	if err != nil {
		return err
	}

	if a.promptFile != "" {
		w, err := prompt.NewWatcher(a.promptFile, a.builder, 0)
		if err != nil {
			L_warn("skydigest: prompt template will not hot-reload", "error", err)
		} else {
			go w.Run(ctx)
		}
	}
	return sched.Run(ctx)
}

// Close stops a local model server this process started.
func (a *app) Close() {
	if a.server == nil {
		return
	}
	if err := a.server.Close(); err != nil {
		L_warn("skydigest: failed to stop model server", "error", err)
	}
}
