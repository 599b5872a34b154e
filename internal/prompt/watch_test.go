package prompt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	if err := os.WriteFile(path, []byte("first "+Placeholder), 0o644); err != nil {
		t.Fatal(err)
	}

	b := NewBuilder("first " + Placeholder)
	w, err := NewWatcher(path, b, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	if err := os.WriteFile(path, []byte("second "+Placeholder), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return b.Template() == Template("second "+Placeholder) })

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return b.Template() == DefaultTemplate })

	if w.Reloads() < 2 {
		t.Errorf("Reloads() = %d, want at least 2", w.Reloads())
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")

	b := NewBuilder("keep " + Placeholder)
	w, err := NewWatcher(path, b, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if w.Reloads() != 0 {
		t.Errorf("Reloads() = %d, want 0", w.Reloads())
	}
	if b.Template() != Template("keep "+Placeholder) {
		t.Errorf("template changed to %q", b.Template())
	}
}

func TestNewWatcherValidation(t *testing.T) {
	if _, err := NewWatcher("", NewBuilder(""), 0); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "p.txt"), nil, 0); err == nil {
		t.Error("expected error for nil builder")
	}
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "missing", "p.txt"), NewBuilder(""), 0); err == nil {
		t.Error("expected error when the directory does not exist")
	}
}
