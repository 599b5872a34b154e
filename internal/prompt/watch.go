package prompt

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	. "github.com/roelfdiedericks/skydigest/internal/logging"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads a template file into a Builder whenever it changes.
// The parent directory is watched so rename-on-save editors are seen too.
type Watcher struct {
	path     string
	builder  *Builder
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending *time.Timer
	reloads int
}

// NewWatcher starts watching the directory holding path.
func NewWatcher(path string, b *Builder, debounce time.Duration) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("prompt watcher: empty path")
	}
	if b == nil {
		return nil, fmt.Errorf("prompt watcher: nil builder")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("prompt watcher: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("prompt watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("prompt watcher: watch %s: %w", filepath.Dir(abs), err)
	}

	L_debug("prompt: watching template", "path", abs)
	return &Watcher{path: abs, builder: b, debounce: debounce, watcher: fw}, nil
}

// Run handles events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			L_trace("prompt: template event", "path", event.Name, "op", event.Op.String())
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			L_warn("prompt: watcher error", "error", err)
		}
	}
}

// Reloads returns how many reloads have been applied.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.reload)
}

// reload keeps the previous template when the file cannot be read.
// A removed file falls back to DefaultTemplate like a missing one at startup.
func (w *Watcher) reload() {
	t, err := LoadTemplate(w.path)
	if err != nil {
		L_warn("prompt: reload failed, keeping previous template", "path", w.path, "error", err)
		return
	}
	w.builder.SetTemplate(t)

	w.mu.Lock()
	w.pending = nil
	w.reloads++
	w.mu.Unlock()

	L_info("prompt: template reloaded", "path", w.path, "chars", len(t))
}

func (w *Watcher) stop() {
	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()
	_ = w.watcher.Close()
}
