// Package modelserver makes sure a local Ollama server is running and has the
// configured model before generation, and stops the server again if it was
// started here.
package modelserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	. "github.com/roelfdiedericks/skydigest/internal/logging"
	. "github.com/roelfdiedericks/skydigest/internal/metrics"
)

// Defaults applied to zero Options fields.
const (
	DefaultPingTimeout = 5 * time.Second
	DefaultPollTimeout  = 2 * time.Second
	DefaultPollInterval = 1 * time.Second
	DefaultPollAttempts = 30
	DefaultPullTimeout  = 600 * time.Second
	DefaultStopTimeout  = 5 * time.Second
)

// State is the manager's lifecycle position.
type State int

const (
	StateUnknown State = iota
	StateProbing
	StateAlreadyRunning
	StateStarting
	StateReady
	StateModelMissing
	StatePulling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateProbing:
		return "probing"
	case StateAlreadyRunning:
		return "already_running"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateModelMissing:
		return "model_missing"
	case StatePulling:
		return "pulling"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ServerAPI talks to the server's HTTP API. *llm.OllamaProvider satisfies it.
type ServerAPI interface {
	Ping(ctx context.Context) error
	ListModels(ctx context.Context) ([]string, error)
}

// Launcher starts the server and pulls models.
type Launcher interface {
	Start(ctx context.Context) (Process, error)
	Pull(ctx context.Context, model string) ([]byte, error)
}

// Process is a server child process started by a Launcher.
type Process interface {
	Pid() int
	Alive() bool
	Terminate() error
	Kill() error
	// Wait blocks until the process exits or timeout elapses (ErrWaitTimeout).
	Wait(timeout time.Duration) error
}

// outputter is implemented by processes that capture their output.
type outputter interface {
	Output() []string
}

// Options configures a Manager.
type Options struct {
	Model    string
	API      ServerAPI
	Launcher Launcher

	PingTimeout  time.Duration // initial status check
	PollTimeout  time.Duration // each readiness check after spawning
	PollInterval time.Duration
	PollAttempts int
	PullTimeout  time.Duration
	StopTimeout  time.Duration // grace period between terminate and kill
}

func (o *Options) applyDefaults() {
	if o.PingTimeout <= 0 {
		o.PingTimeout = DefaultPingTimeout
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = DefaultPollTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.PollAttempts <= 0 {
		o.PollAttempts = DefaultPollAttempts
	}
	if o.PullTimeout <= 0 {
		o.PullTimeout = DefaultPullTimeout
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.Launcher == nil {
		o.Launcher = ExecLauncher{}
	}
}

// SetupError reports why the server could not be made ready.
type SetupError struct {
	Stage  string // "start", "startup", "pull" or "closed"
	Model  string
	Output string // captured command output, if any
	Err    error
}

func (e *SetupError) Error() string {
	var msg string
	switch e.Stage {
	case "start":
		msg = "failed to start ollama server"
	case "startup":
		msg = "ollama server did not become ready"
	case "pull":
		msg = fmt.Sprintf("failed to pull model %s", e.Model)
	case "closed":
		msg = "model server manager is closed"
	default:
		msg = "ollama setup failed"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Manager owns the lifecycle of a local model server.
type Manager struct {
	opts Options

	mu    sync.Mutex
	state State
	proc  Process // non-nil only when this manager spawned the server

	closeOnce sync.Once
	closeErr  error
}

// NewManager creates a manager. API and Model are required.
func NewManager(opts Options) (*Manager, error) {
	if opts.API == nil {
		return nil, errors.New("modelserver: server API is required")
	}
	if opts.Model == "" {
		return nil, errors.New("modelserver: model is required")
	}
	opts.applyDefaults()
	return &Manager{opts: opts}, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Owned reports whether this manager spawned the running server.
func (m *Manager) Owned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.proc != nil
}

// Setup makes the server reachable and the model installed.
// Calling it again once ready does nothing.
func (m *Manager) Setup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateReady:
		return nil
	case StateStopped:
		return &SetupError{Stage: "closed", Model: m.opts.Model}
	}

	start := time.Now()
	m.state = StateProbing
	if err := m.ping(ctx, m.opts.PingTimeout); err == nil {
		m.state = StateAlreadyRunning
		L_info("modelserver: server already running", "model", m.opts.Model)
	} else {
		L_debug("modelserver: server not reachable", "error", err)
		if err := m.start(ctx); err != nil {
			m.state = StateUnknown
			return err
		}
	}

	if !m.hasModel(ctx) {
		m.state = StateModelMissing
		if err := m.pull(ctx); err != nil {
			return err
		}
	}

	m.state = StateReady
	MetricSince("modelserver", "setup", start)
	L_info("modelserver: ready", "model", m.opts.Model, "owned", m.proc != nil)
	return nil
}

// start spawns the server and polls until it answers. Caller holds m.mu.
func (m *Manager) start(ctx context.Context) error {
	m.state = StateStarting
	L_info("modelserver: starting server")

	proc, err := m.opts.Launcher.Start(ctx)
	if err != nil {
		MetricFailWithReason("modelserver", "start", "spawn")
		return &SetupError{Stage: "start", Err: err}
	}
	m.proc = proc

	for attempt := 1; attempt <= m.opts.PollAttempts; attempt++ {
		if err := m.ping(ctx, m.opts.PollTimeout); err == nil {
			L_info("modelserver: server started", "pid", proc.Pid(), "attempts", attempt)
			return nil
		}
		if !proc.Alive() {
			break
		}
		if attempt == m.opts.PollAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return m.abortStart(ctx.Err())
		case <-time.After(m.opts.PollInterval):
		}
	}

	return m.abortStart(fmt.Errorf("not reachable after %d attempts", m.opts.PollAttempts))
}

// abortStart stops a spawned server that never became ready. Caller holds m.mu.
func (m *Manager) abortStart(cause error) error {
	MetricFailWithReason("modelserver", "start", "not_ready")
	setupErr := &SetupError{Stage: "startup", Err: cause}
	if o, ok := m.proc.(outputter); ok {
		setupErr.Output = strings.Join(o.Output(), "\n")
	}

	L_warn("modelserver: server failed to start, stopping it", "error", cause)
	if err := m.stopProcess(); err != nil {
		L_warn("modelserver: stop failed", "error", err)
	}
	return setupErr
}

func (m *Manager) ping(ctx context.Context, timeout time.Duration) error {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return m.opts.API.Ping(pctx)
}

// hasModel reports whether an installed model name starts with the configured one.
// A failed listing counts as missing.
func (m *Manager) hasModel(ctx context.Context) bool {
	lctx, cancel := context.WithTimeout(ctx, m.opts.PingTimeout)
	defer cancel()

	models, err := m.opts.API.ListModels(lctx)
	if err != nil {
		L_warn("modelserver: failed to list models", "error", err)
		return false
	}
	for _, name := range models {
		if strings.HasPrefix(name, m.opts.Model) {
			return true
		}
	}
	return false
}

func (m *Manager) pull(ctx context.Context) error {
	m.state = StatePulling
	L_info("modelserver: pulling model", "model", m.opts.Model, "timeout", m.opts.PullTimeout)

	pctx, cancel := context.WithTimeout(ctx, m.opts.PullTimeout)
	defer cancel()

	start := time.Now()
	out, err := m.opts.Launcher.Pull(pctx, m.opts.Model)
	MetricSince("modelserver", "pull", start)
	if err != nil {
		MetricFailWithReason("modelserver", "pull", m.opts.Model)
		return &SetupError{Stage: "pull", Model: m.opts.Model, Output: string(out), Err: err}
	}

	L_info("modelserver: model pulled", "model", m.opts.Model, "elapsed", time.Since(start).Round(time.Second))
	return nil
}

// Close stops the server if this manager started it. Only the first call acts.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.closeErr = m.stopProcess()
		m.state = StateStopped
	})
	return m.closeErr
}

// stopProcess terminates the owned process, killing it after the grace period.
// Caller holds m.mu.
func (m *Manager) stopProcess() error {
	proc := m.proc
	m.proc = nil
	if proc == nil || !proc.Alive() {
		return nil
	}

	L_debug("modelserver: sending SIGTERM to server", "pid", proc.Pid())
	if err := proc.Terminate(); err != nil {
		L_warn("modelserver: terminate failed", "pid", proc.Pid(), "error", err)
	}

	if err := proc.Wait(m.opts.StopTimeout); errors.Is(err, ErrWaitTimeout) {
		L_warn("modelserver: server did not exit, killing", "pid", proc.Pid(), "timeout", m.opts.StopTimeout)
		if err := proc.Kill(); err != nil {
			return fmt.Errorf("kill ollama server: %w", err)
		}
		_ = proc.Wait(m.opts.StopTimeout)
	}

	L_info("modelserver: server stopped", "pid", proc.Pid())
	return nil
}
