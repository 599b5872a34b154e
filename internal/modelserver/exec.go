package modelserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	. "github.com/roelfdiedericks/skydigest/internal/logging"
)

const defaultOutputLines = 50

// ErrWaitTimeout is returned by Process.Wait when the process outlives the timeout.
var ErrWaitTimeout = errors.New("timed out waiting for process to exit")

// ExecLauncher runs the ollama binary as a child process.
type ExecLauncher struct {
	Binary      string // defaults to "ollama"
	OutputLines int    // server output lines kept for error reports
}

func (l ExecLauncher) binary() string {
	if l.Binary == "" {
		return "ollama"
	}
	return l.Binary
}

// Start spawns "<binary> serve". The child is not bound to ctx; its lifetime
// is owned by the Manager and ends in Close.
func (l ExecLauncher) Start(ctx context.Context) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lines := l.OutputLines
	if lines <= 0 {
		lines = defaultOutputLines
	}

	cmd := exec.Command(l.binary(), "serve") //nolint:gosec // G204: binary comes from config
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s serve: %w", l.binary(), err)
	}

	p := &execProcess{
		cmd:    cmd,
		output: newOutputTail(lines),
		done:   make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go p.captureOutput(stdout, &wg)
	go p.captureOutput(stderr, &wg)

	go func() {
		wg.Wait()
		p.waitErr = cmd.Wait()
		close(p.done)
		L_debug("modelserver: server process exited", "pid", cmd.Process.Pid, "error", p.waitErr)
	}()

	L_info("modelserver: server process started", "binary", l.binary(), "pid", cmd.Process.Pid)
	return p, nil
}

// Pull runs "<binary> pull <model>" and returns its combined output.
func (l ExecLauncher) Pull(ctx context.Context, model string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, l.binary(), "pull", model) //nolint:gosec // G204: model comes from config
	out, err := cmd.CombinedOutput()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return out, err
}

// execProcess is a running "ollama serve" child.
type execProcess struct {
	cmd     *exec.Cmd
	output  *outputTail
	done    chan struct{}
	waitErr error // set before done is closed
}

func (p *execProcess) captureOutput(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		p.output.add(line)
		L_trace("ollama: server output", "line", line)
	}
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *execProcess) Terminate() error {
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *execProcess) Wait(timeout time.Duration) error {
	select {
	case <-p.done:
		return p.waitErr
	case <-time.After(timeout):
		return ErrWaitTimeout
	}
}

// Output returns the last captured lines of server output.
func (p *execProcess) Output() []string {
	return p.output.lines()
}
