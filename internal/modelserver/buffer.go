package modelserver

import (
	"fmt"
	"sync"
)

// outputTail keeps the most recent lines a server printed, for error reports.
type outputTail struct {
	mu      sync.Mutex
	max     int
	buf     []string
	dropped int
}

func newOutputTail(max int) *outputTail {
	if max < 1 {
		max = 1
	}
	return &outputTail{max: max, buf: make([]string, 0, max)}
}

// add appends line, evicting the oldest once max lines are held.
func (t *outputTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.buf) == t.max {
		copy(t.buf, t.buf[1:])
		t.buf = t.buf[:t.max-1]
		t.dropped++
	}
	t.buf = append(t.buf, line)
}

// lines returns a copy, oldest first. A marker line leads when earlier output was evicted.
func (t *outputTail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.buf)+1)
	if t.dropped > 0 {
		out = append(out, fmt.Sprintf("... %d earlier lines omitted", t.dropped))
	}
	return append(out, t.buf...)
}
