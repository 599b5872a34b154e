// Package cron runs the digest on a cron schedule.
package cron

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	cronlib "github.com/robfig/cron/v3"
	. "github.com/roelfdiedericks/skydigest/internal/logging"
)

// Job is one scheduled run. The context is cancelled when the scheduler stops.
type Job func(ctx context.Context) error

// Scheduler triggers a Job on a standard 5-field cron expression.
// A trigger that fires while the previous run is still active is skipped.
type Scheduler struct {
	expr     string
	location *time.Location
	schedule cronlib.Schedule
	job      Job
	timeout  time.Duration

	running atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
}

// ParseSchedule parses a standard cron expression (minute, hour, day, month, weekday).
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	parser := cronlib.NewParser(cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// New creates a scheduler. A nil location means time.Local; a positive
// timeout bounds each run.
func New(expr string, loc *time.Location, timeout time.Duration, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("cron: job must not be nil")
	}
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		expr:     expr,
		location: loc,
		schedule: schedule,
		job:      job,
		timeout:  timeout,
	}, nil
}

// Next returns the first trigger after now, in the scheduler's timezone.
func (s *Scheduler) Next(now time.Time) time.Time {
	return s.schedule.Next(now.In(s.location))
}

// Runs returns how many runs have started.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

// Skipped returns how many triggers were dropped because a run was active.
func (s *Scheduler) Skipped() int64 { return s.skipped.Load() }

// Run starts the cron loop and blocks until ctx is done, then waits for an
// active run to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cronlib.New(cronlib.WithLocation(s.location))
	c.Schedule(s.schedule, cronlib.FuncJob(func() { s.trigger(ctx) }))
	c.Start()

	L_info("cron: scheduler started", "schedule", s.expr, "timezone", s.location.String(), "next", s.Next(time.Now()).Format(time.RFC3339))

	<-ctx.Done()
	L_info("cron: scheduler stopping")
	<-c.Stop().Done()
	return nil
}

// trigger runs the job unless a previous run is still active.
func (s *Scheduler) trigger(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		L_warn("cron: previous run still active, skipping trigger", "schedule", s.expr)
		return
	}
	defer s.running.Store(false)

	if ctx.Err() != nil {
		return
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	n := s.runs.Add(1)
	start := time.Now()
	L_info("cron: run starting", "run", n)

	if err := s.job(runCtx); err != nil {
		L_error("cron: run failed", "run", n, "elapsed", time.Since(start).Round(time.Second), "error", err)
		return
	}
	L_info("cron: run finished", "run", n, "elapsed", time.Since(start).Round(time.Second))
}
