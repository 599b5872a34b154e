package cron

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/roelfdiedericks/skydigest/internal/logging"
)

func init() {
	logging.SetOutput(io.Discard)
}

func TestNext(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	s, err := New("0 8 * * *", loc, 0, func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// 06:30 UTC on 10 March is 07:30 in Amsterdam (CET).
	now := time.Date(2026, 3, 10, 6, 30, 0, 0, time.UTC)
	want := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	if got := s.Next(now); !got.Equal(want) {
		t.Errorf("Next() = %s, want %s", got, want)
	}
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 8 * * *", false},
		{"30 7 * * 1-5", false},
		{"@daily", false},
		{"0 0 8 * * *", true}, // seconds field not accepted
		{"whenever", true},
	}
	for _, tt := range tests {
		_, err := ParseSchedule(tt.expr)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSchedule(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestTriggerSkipsOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	s, err := New("@hourly", time.UTC, 0, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.trigger(context.Background())
	}()
	<-started

	s.trigger(context.Background())
	close(release)
	wg.Wait()

	if s.Runs() != 1 || s.Skipped() != 1 {
		t.Errorf("runs=%d skipped=%d, want 1/1", s.Runs(), s.Skipped())
	}
}

func TestTriggerAppliesTimeout(t *testing.T) {
	var sawDeadline bool
	s, err := New("@hourly", time.UTC, time.Minute, func(ctx context.Context) error {
		_, sawDeadline = ctx.Deadline()
		return errors.New("failed run is logged, not fatal")
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	s.trigger(context.Background())
	if !sawDeadline {
		t.Error("job context has no deadline")
	}
}

func TestTriggerAfterCancel(t *testing.T) {
	called := false
	s, err := New("@hourly", time.UTC, 0, func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.trigger(ctx)
	if called {
		t.Error("job ran after cancellation")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s, err := New("@yearly", time.UTC, 0, func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewRejectsNilJob(t *testing.T) {
	if _, err := New("@daily", nil, 0, nil); err == nil {
		t.Error("expected error for nil job")
	}
}
