package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/alecthomas/kong"

	. "github.com/roelfdiedericks/skydigest/internal/logging"
)

const version = "0.1.0"

// CLI is the command-line interface.
type CLI struct {
	Config   string `help:"Config file (default: ./config.yaml, then ~/.skydigest/config.yaml)" short:"c" type:"path"`
	EnvFile  string `help:"Environment file loaded before the config is expanded" name:"env-file" default:".env"`
	LogLevel string `help:"Log level: trace, debug, info, warn, error (overrides settings.log_level)" name:"log-level"`

	Run     RunCmd     `cmd:"" default:"withargs" help:"Fetch, summarize and email one digest now"`
	Serve   ServeCmd   `cmd:"" help:"Send digests on the configured schedule until interrupted"`
	Preview PreviewCmd `cmd:"" help:"Fetch and summarize, print the digest instead of sending it"`
	Version VersionCmd `cmd:"" help:"Print version"`
}

// RunCmd sends one digest.
type RunCmd struct{}

func (c *RunCmd) Run(cli *CLI, ctx context.Context) error {
	a, err := newApp(ctx, cli, true)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.runOnce(ctx)
}

// ServeCmd sends digests on a schedule.
type ServeCmd struct {
	Schedule string `help:"Cron expression (overrides settings.schedule)"`
	Now      bool   `help:"Send one digest immediately before waiting for the schedule"`
}

func (c *ServeCmd) Run(cli *CLI, ctx context.Context) error {
	a, err := newApp(ctx, cli, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.Now {
		if err := a.runOnce(ctx); err != nil {
			L_error("serve: initial run failed", "error", err)
		}
	}
	return a.serve(ctx, c.Schedule)
}

// PreviewCmd prints the digest.
type PreviewCmd struct{}

func (c *PreviewCmd) Run(cli *CLI, ctx context.Context) error {
	a, err := newApp(ctx, cli, false)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.preview(ctx)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("skydigest %s\n", version)
	return nil
}

func main() {
	// Signals cancel the root context so deferred cleanup (local model server) always runs.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("skydigest"),
		kong.Description("Summarize recent Bluesky posts with an LLM and deliver the digest by email."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	if err := kctx.Run(&cli); err != nil {
		L_error("skydigest failed", "command", kctx.Command(), "error", err)
		stop()
		os.Exit(1)
	}
}
