package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	psprocess "github.com/shirou/gopsutil/v3/process"
)

// Status represents the state of the capture process.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRecording Status = "recording"
	StatusStopping  Status = "stopping"
	StatusFailed    Status = "failed"
)

const (
	// outputBufferSize is the buffer size for capturing ffmpeg stdout/stderr.
	outputBufferSize = 4096

	defaultGracefulTimeout = 10 * time.Second
	outputDirPermissions   = 0750
)

// Config holds the capture process settings.
type Config struct {
	// Binary is the capture executable, normally ffmpeg.
	Binary string

	// InputArgs select the capture device and come before filters and the output.
	InputArgs []string

	// GracefulTimeout bounds the wait after SIGINT before the group is killed.
	GracefulTimeout time.Duration
}

// Logger defines the logging interface for the recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Capture records the screen with an ffmpeg subprocess.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Callbacks run on the goroutine that caused the transition.
type Capture struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	output        string
	stopRequested bool
	lastError     error
	startTime     time.Time
	done          chan struct{}

	onStarted func(string)
	onStopped func(string)
	onError   func(error)
}

// NewCapture creates a capture recorder.
func NewCapture(cfg Config) *Capture {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}
	return &Capture{
		config: cfg,
		logger: noopLogger{},
		status: StatusIdle,
	}
}

// SetLogger sets the logger.
func (c *Capture) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetOnStarted sets the callback invoked once the process is running.
func (c *Capture) SetOnStarted(fn func(string)) {
	c.mu.Lock()
	c.onStarted = fn
	c.mu.Unlock()
}

// SetOnStopped sets the callback invoked after a requested stop.
func (c *Capture) SetOnStopped(fn func(string)) {
	c.mu.Lock()
	c.onStopped = fn
	c.mu.Unlock()
}

// SetOnError sets the callback invoked when the process exits on its own.
func (c *Capture) SetOnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// Start launches the capture process writing to opts.Output.
//
// The process is not bound to ctx: cancelling a run must still let Stop
// finalise the file.
func (c *Capture) Start(ctx context.Context, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if opts.Output == "" {
		return errors.New("recorder: output path is required")
	}

	c.mu.Lock()
	if c.status == StatusRecording || c.status == StatusStopping {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	c.stopRequested = false
	c.lastError = nil
	c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(opts.Output), outputDirPermissions); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	args := BuildArgs(c.config.InputArgs, opts)
	c.logger.Info("starting capture", "binary", c.config.Binary, "output", opts.Output, "args", args)

	cmd := exec.Command(c.config.Binary, args...) //nolint:gosec // Binary comes from operator config

	// Own process group so the stop signal reaches every child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		c.mu.Lock()
		c.status = StatusFailed
		c.lastError = err
		c.mu.Unlock()
		return fmt.Errorf("starting %s: %w", c.config.Binary, err)
	}

	done := make(chan struct{})

	c.mu.Lock()
	c.cmd = cmd
	c.status = StatusRecording
	c.output = opts.Output
	c.startTime = time.Now()
	c.done = done
	onStarted := c.onStarted
	c.mu.Unlock()

	go c.captureOutput("stdout", stdout)
	go c.captureOutput("stderr", stderr)
	go c.monitor(cmd, done)

	c.logger.Info("capture started", "pid", cmd.Process.Pid, "output", opts.Output)

	if onStarted != nil {
		onStarted(opts.Output)
	}
	return nil
}

// captureOutput reads from the given reader and logs each chunk.
func (c *Capture) captureOutput(stream string, r io.Reader) {
	buf := make([]byte, outputBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c.logger.Debug("capture output", "stream", stream, "output", string(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

// monitor waits for the process and records how it ended.
func (c *Capture) monitor(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()

	c.mu.Lock()
	requested := c.stopRequested
	onError := c.onError
	if requested {
		c.status = StatusIdle
	} else {
		if err == nil {
			err = errors.New("capture exited before stop was requested")
		}
		c.status = StatusFailed
		c.lastError = err
	}
	c.mu.Unlock()
	close(done)

	if requested {
		c.logger.Debug("capture process exited", "error", err)
		return
	}

	c.logger.Warn("capture exited unexpectedly", "error", err)
	if onError != nil {
		onError(err)
	}
}

// Stop ends the recording and returns the output path.
//
// It sends SIGINT to the process group and waits for ffmpeg to finish
// writing, then SIGKILL if the graceful timeout or ctx expires first.
func (c *Capture) Stop(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.status != StatusRecording {
		status, lastErr := c.status, c.lastError
		c.mu.Unlock()
		if status == StatusFailed && lastErr != nil {
			return "", fmt.Errorf("%w: %w", ErrNotRecording, lastErr)
		}
		return "", ErrNotRecording
	}
	c.stopRequested = true
	c.status = StatusStopping
	cmd, done, output := c.cmd, c.done, c.output
	onStopped := c.onStopped
	c.mu.Unlock()

	pid := cmd.Process.Pid
	c.logger.Info("stopping capture", "pid", pid)

	if err := syscall.Kill(-pid, syscall.SIGINT); err != nil && !errors.Is(err, syscall.ESRCH) {
		c.logger.Warn("failed to signal capture group", "error", err)
	}

	timer := time.NewTimer(c.config.GracefulTimeout)
	defer timer.Stop()

	select {
	case <-done:
		c.logger.Info("capture stopped", "output", output, "duration", time.Since(c.startTime))
	case <-timer.C:
		c.logger.Warn("capture did not stop in time, killing", "timeout", c.config.GracefulTimeout)
		c.killGroup(pid)
		<-done
	case <-ctx.Done():
		c.killGroup(pid)
		<-done
		return "", fmt.Errorf("stopping capture: %w", ctx.Err())
	}

	if onStopped != nil {
		onStopped(output)
	}
	return output, nil
}

// ForceStop kills the capture process tree immediately.
// It is a no-op when nothing is running.
func (c *Capture) ForceStop() error {
	c.mu.Lock()
	if c.status != StatusRecording && c.status != StatusStopping {
		c.mu.Unlock()
		return nil
	}
	c.stopRequested = true
	cmd, done := c.cmd, c.done
	c.mu.Unlock()

	pid := cmd.Process.Pid
	c.logger.Warn("force stopping capture", "pid", pid)

	var errs []error
	if err := killTree(int32(pid)); err != nil { //nolint:gosec // PIDs fit in int32
		errs = append(errs, err)
	}
	c.killGroup(pid)

	select {
	case <-done:
	case <-time.After(c.config.GracefulTimeout):
		errs = append(errs, fmt.Errorf("capture pid %d did not exit after kill", pid))
	}
	return errors.Join(errs...)
}

func (c *Capture) killGroup(pid int) {
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		c.logger.Warn("failed to kill capture group", "error", err)
	}
}

// killTree kills pid and all of its descendants, children first.
func killTree(pid int32) error {
	proc, err := psprocess.NewProcess(pid)
	if err != nil {
		if errors.Is(err, psprocess.ErrorProcessNotRunning) {
			return nil
		}
		return fmt.Errorf("inspecting pid %d: %w", pid, err)
	}

	children, _ := proc.Children() //nolint:errcheck // No children is reported as an error
	for _, child := range children {
		_ = killTree(child.Pid) //nolint:errcheck // Best effort for descendants
	}

	if err := proc.Kill(); err != nil {
		if running, _ := proc.IsRunning(); !running { //nolint:errcheck // Exited between checks
			return nil
		}
		return fmt.Errorf("killing pid %d: %w", pid, err)
	}
	return nil
}

// IsRecording reports whether the capture process is running.
func (c *Capture) IsRecording() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status == StatusRecording || c.status == StatusStopping
}

// Status returns the current capture status.
func (c *Capture) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// LastError returns the error that ended the last capture unexpectedly.
func (c *Capture) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// PID returns the process ID, or 0 if not running.
func (c *Capture) PID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cmd != nil && c.cmd.Process != nil && c.status != StatusIdle && c.status != StatusFailed {
		return c.cmd.Process.Pid
	}
	return 0
}
