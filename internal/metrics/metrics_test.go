package metrics

import (
	"testing"
	"time"
)

func TestTimingSnapshot(t *testing.T) {
	m := NewRegistry()
	for _, d := range []time.Duration{10, 30, 20} {
		m.RecordDuration("llm", "gpt-4o", d*time.Millisecond)
	}

	snaps := m.Snapshot()
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	s := snaps[0]
	if s.Path != "llm/gpt-4o" || s.Count != 3 {
		t.Errorf("snapshot = %+v", s)
	}
	if s.AvgMs != 20 || s.MinMs != 10 || s.MaxMs != 30 || s.P95Ms != 30 {
		t.Errorf("avg=%v min=%v max=%v p95=%v", s.AvgMs, s.MinMs, s.MaxMs, s.P95Ms)
	}
}

func TestOutcomesAndCounters(t *testing.T) {
	m := NewRegistry()
	m.RecordSuccess("llm", "claude")
	m.RecordFailure("llm", "claude", "rate_limit")
	m.RecordFailure("llm", "claude", "rate_limit")
	m.RecordFailure("llm", "claude", "")
	m.AddCounter("digest", "runs", 2)

	snaps := m.Snapshot()
	if len(snaps) != 2 || snaps[0].Path != "digest/runs" || snaps[1].Path != "llm/claude" {
		t.Fatalf("unexpected snapshot order: %+v", snaps)
	}
	if snaps[0].Counter != 2 {
		t.Errorf("counter = %d, want 2", snaps[0].Counter)
	}
	llm := snaps[1]
	if llm.Success != 1 || llm.Failure != 3 || llm.Reasons["rate_limit"] != 2 {
		t.Errorf("outcome = %+v", llm)
	}

	m.Reset()
	if len(m.Snapshot()) != 0 {
		t.Error("Reset left metrics behind")
	}
}

func TestRingBufferBounded(t *testing.T) {
	var timing Timing
	for i := 0; i < maxSamples+10; i++ {
		timing.record(time.Duration(i) * time.Millisecond)
	}
	if len(timing.samples) != maxSamples {
		t.Errorf("samples = %d, want %d", len(timing.samples), maxSamples)
	}
	if timing.Count != maxSamples+10 {
		t.Errorf("Count = %d", timing.Count)
	}
}

func TestBuildPath(t *testing.T) {
	if got := buildPath("digest", ""); got != "digest" {
		t.Errorf("buildPath = %q", got)
	}
	if got := buildPath("modelserver", "setup"); got != "modelserver/setup" {
		t.Errorf("buildPath = %q", got)
	}
}
