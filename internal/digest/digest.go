// Package digest runs one newsletter cycle: fetch posts, summarize, mail.
package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roelfdiedericks/skydigest/internal/email"
	. "github.com/roelfdiedericks/skydigest/internal/logging"
	. "github.com/roelfdiedericks/skydigest/internal/metrics"
	"github.com/roelfdiedericks/skydigest/internal/summarizer"
	"github.com/roelfdiedericks/skydigest/internal/types"
)

// Fetcher collects posts per account. *bluesky.Client satisfies it.
type Fetcher interface {
	FetchAll(ctx context.Context, handles []string, lookback time.Duration, maxPerUser int) types.PostCollection
}

// Summarizer produces display text for a post collection. Generation
// failures come back as text; an error means the run cannot continue.
// *summarizer.Summarizer satisfies it.
type Summarizer interface {
	Summarize(ctx context.Context, posts types.PostCollection) (string, error)
}

// Mailer delivers a report. *email.Sender satisfies it.
type Mailer interface {
	Send(ctx context.Context, to []string, subject string, r email.Report) error
}

// Options describes what to collect and where to send it.
type Options struct {
	Accounts        []string
	Lookback        time.Duration
	MaxPostsPerUser int
	Recipients      []string
	Subject         string
}

// Outcome summarizes a finished cycle.
type Outcome struct {
	Posts   types.PostCollection
	Summary string
	Sent    bool
}

// Pipeline wires the collaborators for repeated runs.
type Pipeline struct {
	opts       Options
	fetcher    Fetcher
	summarizer Summarizer
	mailer     Mailer
	now        func() time.Time
}

// New creates a pipeline. mailer may be nil for preview-only use.
func New(opts Options, fetcher Fetcher, summarizer Summarizer, mailer Mailer) (*Pipeline, error) {
	if fetcher == nil || summarizer == nil {
		return nil, errors.New("digest: fetcher and summarizer are required")
	}
	if len(opts.Accounts) == 0 {
		return nil, errors.New("digest: no accounts to monitor")
	}
	return &Pipeline{
		opts:       opts,
		fetcher:    fetcher,
		summarizer: summarizer,
		mailer:     mailer,
		now:        time.Now,
	}, nil
}

// NoNewPostsMessage is the body used when nothing was posted in the window.
func NoNewPostsMessage(lookback time.Duration) string {
	return fmt.Sprintf("No new posts were found from the monitored accounts in the last %d hours.", int(lookback.Hours()))
}

// Preview fetches and summarizes without sending. It fails only when the
// summarizer cannot run at all, such as a local model server that would not start.
func (p *Pipeline) Preview(ctx context.Context) (*Outcome, error) {
	L_info("digest: fetching posts", "accounts", len(p.opts.Accounts), "lookback", p.opts.Lookback)
	posts := p.fetcher.FetchAll(ctx, p.opts.Accounts, p.opts.Lookback, p.opts.MaxPostsPerUser)
	L_info("digest: posts fetched", "total", posts.Total())
	GetInstance().AddCounter("digest", "posts", int64(posts.Total()))

	var summary string
	if posts.IsEmpty() {
		L_info("digest: no posts found, sending empty report")
		summary = NoNewPostsMessage(p.opts.Lookback)
	} else {
		L_info("digest: generating summary")
		var err error
		summary, err = p.summarizer.Summarize(ctx, posts)
		if err != nil {
			L_error("digest: summarizer unavailable, aborting", "error", err)
			MetricFailWithReason("digest", "summary", "unavailable")
			return &Outcome{Posts: posts}, fmt.Errorf("digest: summarize: %w", err)
		}
		if summarizer.IsErrorSummary(summary) {
			L_warn("digest: summary generation failed, mailing error text", "summary", summary)
			MetricFailWithReason("digest", "summary", "llm")
		} else {
			MetricSuccess("digest", "summary")
		}
	}
	return &Outcome{Posts: posts, Summary: summary}, nil
}

// Run performs a full cycle. A delivery failure is an error.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	if p.mailer == nil {
		return nil, errors.New("digest: no mailer configured")
	}

	start := p.now()
	MetricInc("digest", "runs")
	out, err := p.Preview(ctx)
	if err != nil {
		return out, err
	}

	report := email.Report{
		Summary:     out.Summary,
		PostCount:   out.Posts.Total(),
		Accounts:    p.opts.Accounts,
		GeneratedAt: p.now(),
	}

	L_info("digest: sending email", "recipients", len(p.opts.Recipients))
	if err := p.mailer.Send(ctx, p.opts.Recipients, p.opts.Subject, report); err != nil {
		L_error("digest: failed to send email, newsletter incomplete", "error", err)
		MetricFailWithReason("digest", "send", "smtp")
		return out, err
	}
	out.Sent = true
	MetricSuccess("digest", "send")
	elapsed := p.now().Sub(start)
	MetricDuration("digest", "run", elapsed)

	L_info("digest: completed", "posts", report.PostCount, "elapsed", elapsed.Round(time.Millisecond))
	return out, nil
}
