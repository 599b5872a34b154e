// Package metrics keeps in-process timing and outcome counters, keyed by
// "topic/function" paths such as "llm/gpt-4o-mini".
package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxSamples = 1000 // last samples kept for percentiles

// Timing tracks durations for one path.
type Timing struct {
	Count   int64
	Total   time.Duration
	Min     time.Duration
	Max     time.Duration
	Last    time.Duration
	samples []time.Duration
	idx     int
}

func (t *Timing) record(d time.Duration) {
	t.Count++
	t.Total += d
	t.Last = d
	if t.Count == 1 || d < t.Min {
		t.Min = d
	}
	if d > t.Max {
		t.Max = d
	}
	if len(t.samples) < maxSamples {
		t.samples = append(t.samples, d)
	} else {
		t.samples[t.idx] = d
		t.idx = (t.idx + 1) % maxSamples
	}
}

// Tally tracks success and failure counts, with failures bucketed by reason.
type Tally struct {
	Success  int64
	Failure  int64
	Reasons  map[string]int64
	LastFail time.Time
}

// Snapshot is a read-only copy of one path's metrics.
type Snapshot struct {
	Path    string
	Count   int64
	AvgMs   float64
	MinMs   float64
	MaxMs   float64
	P95Ms   float64
	Success int64
	Failure int64
	Reasons map[string]int64
	Counter int64
}

// Registry stores metrics by path.
type Registry struct {
	mu       sync.Mutex
	timings  map[string]*Timing
	outcomes map[string]*Tally
	counters map[string]int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		timings:  make(map[string]*Timing),
		outcomes: make(map[string]*Tally),
		counters: make(map[string]int64),
	}
}

var (
	instance     *Registry
	instanceOnce sync.Once
)

// GetInstance returns the process-wide registry.
func GetInstance() *Registry {
	instanceOnce.Do(func() { instance = NewRegistry() })
	return instance
}

func buildPath(topic, function string) string {
	if function == "" {
		return topic
	}
	return topic + "/" + function
}

// RecordDuration adds a timing sample.
func (m *Registry) RecordDuration(topic, function string, d time.Duration) {
	path := buildPath(topic, function)
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timings[path]
	if !ok {
		t = &Timing{}
		m.timings[path] = t
	}
	t.record(d)
}

// RecordSuccess counts a successful operation.
func (m *Registry) RecordSuccess(topic, function string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcome(buildPath(topic, function)).Success++
}

// RecordFailure counts a failed operation under reason.
func (m *Registry) RecordFailure(topic, function, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.outcome(buildPath(topic, function))
	o.Failure++
	o.LastFail = time.Now()
	if reason != "" {
		o.Reasons[reason]++
	}
}

func (m *Registry) outcome(path string) *Tally {
	o, ok := m.outcomes[path]
	if !ok {
		o = &Tally{Reasons: make(map[string]int64)}
		m.outcomes[path] = o
	}
	return o
}

// AddCounter adds delta to a counter.
func (m *Registry) AddCounter(topic, function string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[buildPath(topic, function)] += delta
}

// Snapshot returns all paths in sorted order.
func (m *Registry) Snapshot() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	byPath := make(map[string]*Snapshot)
	get := func(path string) *Snapshot {
		s, ok := byPath[path]
		if !ok {
			s = &Snapshot{Path: path}
			byPath[path] = s
		}
		return s
	}

	for path, t := range m.timings {
		s := get(path)
		s.Count = t.Count
		s.AvgMs = ms(t.Total) / float64(t.Count)
		s.MinMs = ms(t.Min)
		s.MaxMs = ms(t.Max)
		s.P95Ms = percentile(t.samples, 95)
	}
	for path, o := range m.outcomes {
		s := get(path)
		s.Success = o.Success
		s.Failure = o.Failure
		s.Reasons = make(map[string]int64, len(o.Reasons))
		for k, v := range o.Reasons {
			s.Reasons[k] = v
		}
	}
	for path, v := range m.counters {
		get(path).Counter = v
	}

	out := make([]Snapshot, 0, len(byPath))
	for _, s := range byPath {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Reset drops all metrics.
func (m *Registry) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timings = make(map[string]*Timing)
	m.outcomes = make(map[string]*Tally)
	m.counters = make(map[string]int64)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func percentile(samples []time.Duration, p int) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := (len(sorted)*p + 99) / 100
	if idx > 0 {
		idx--
	}
	return ms(sorted[idx])
}
