package modelserver

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestExecLauncherPull(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}

	out, err := ExecLauncher{Binary: "echo"}.Pull(context.Background(), "llama3.2")
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "pull llama3.2" {
		t.Errorf("Pull output = %q", out)
	}
}

func TestExecLauncherStartCapturesOutput(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	// "sleep serve" exits immediately with a usage error on stderr.
	proc, err := ExecLauncher{Binary: "sleep"}.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if proc.Pid() <= 0 {
		t.Errorf("Pid() = %d", proc.Pid())
	}

	if err := proc.Wait(5 * time.Second); err == ErrWaitTimeout {
		t.Fatal("process did not exit")
	}
	if proc.Alive() {
		t.Error("Alive() after exit")
	}

	out := proc.(*execProcess).Output()
	if len(out) == 0 {
		t.Error("expected captured stderr output")
	}
}

func TestExecLauncherStartMissingBinary(t *testing.T) {
	_, err := ExecLauncher{Binary: "definitely-not-a-real-binary-xyz"}.Start(context.Background())
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestExecProcessTerminate(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	// ExecLauncher always passes "serve", so drive execProcess directly.
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	p := &execProcess{cmd: cmd, output: newOutputTail(5), done: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	if !p.Alive() {
		t.Fatal("process should be alive")
	}
	if err := p.Terminate(); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	if err := p.Wait(5 * time.Second); err == ErrWaitTimeout {
		t.Fatal("process ignored SIGTERM")
	}
	if p.Alive() {
		t.Error("process alive after SIGTERM")
	}
}
