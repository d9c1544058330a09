package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InstallHint tells operators how to get the camoufox Python package.
const InstallHint = "Please ensure camoufox is installed: pip install camoufox[geoip]"

// ErrNotInstalled is returned when the camoufox server cannot be located,
// either because the interpreter is missing or the package fails to import.
var ErrNotInstalled = errors.New("camoufox server is not installed")

// LaunchError is returned when the server process exits unsuccessfully.
type LaunchError struct {
	ExitCode int
	Stderr   string
}

func (e *LaunchError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("camoufox server exited with status %d", e.ExitCode)
	}
	return fmt.Sprintf("camoufox server exited with status %d: %s", e.ExitCode, e.Stderr)
}

// Launcher starts the remote browser server and blocks while it runs.
type Launcher interface {
	Launch(ctx context.Context, config Config) error
}

// importFailedStatus is the exit status the bootstrap uses when camoufox
// cannot be imported.
const importFailedStatus = 3

const bootstrap = `import json, sys
try:
    from camoufox.server import launch_server
except ImportError as e:
    sys.stderr.write("Failed to import camoufox: %s\n" % e)
    sys.stderr.flush()
    sys.exit(3)
launch_server(**json.load(sys.stdin))
`

// stderrTail bounds how much child stderr is kept for error reports.
const stderrTail = 2048

// maxLineLength splits output that has no newline into log entries of this size.
const maxLineLength = stderrTail

// launchParams is the keyword-argument document passed to launch_server.
type launchParams struct {
	Headless bool         `json:"headless"`
	Port     int          `json:"port"`
	WSPath   string       `json:"ws_path"`
	GeoIP    bool         `json:"geoip"`
	Proxy    *ProxyConfig `json:"proxy"`
}

// PythonLauncher runs camoufox.server.launch_server in a child Python interpreter.
type PythonLauncher struct {
	python string
	logger *zap.Logger

	// GracePeriod is how long the child gets between SIGTERM and SIGKILL.
	GracePeriod time.Duration
}

// NewPythonLauncher creates a launcher using the given interpreter name or path.
func NewPythonLauncher(python string, logger *zap.Logger) *PythonLauncher {
	return &PythonLauncher{
		python:      python,
		logger:      logger,
		GracePeriod: 10 * time.Second,
	}
}

// Launch starts the server and waits for it to exit. Cancelling ctx stops the server.
func (l *PythonLauncher) Launch(ctx context.Context, config Config) error {
	path, err := exec.LookPath(l.python)
	if err != nil {
		return fmt.Errorf("%w: python interpreter %q not found: %v", ErrNotInstalled, l.python, err)
	}

	params, err := json.Marshal(launchParams{
		Headless: config.Headless,
		Port:     config.Port,
		WSPath:   config.WSPath,
		GeoIP:    config.GeoIP,
		Proxy:    config.Proxy,
	})
	if err != nil {
		return fmt.Errorf("marshal launch params: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, "-c", bootstrap)
	cmd.Stdin = bytes.NewReader(params)
	startOwnGroup(cmd)

	var (
		killMu    sync.Mutex
		killTimer *time.Timer
	)
	cmd.Cancel = func() error {
		killMu.Lock()
		killTimer = time.AfterFunc(l.GracePeriod, func() {
			signalGroup(cmd.Process, syscall.SIGKILL)
		})
		killMu.Unlock()
		return signalGroup(cmd.Process, syscall.SIGTERM)
	}
	cmd.WaitDelay = l.GracePeriod

	tail := &tailBuffer{max: stderrTail}
	stdout := &lineWriter{logger: l.logger, level: zapcore.InfoLevel}
	stderr := &lineWriter{logger: l.logger, level: zapcore.WarnLevel, tail: tail}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	l.logger.Debug("starting camoufox server process",
		zap.String("python", path),
		zap.Int("port", config.Port),
	)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", path, err)
	}

	err = cmd.Wait()

	killMu.Lock()
	if killTimer != nil {
		killTimer.Stop()
	}
	killMu.Unlock()
	// The browser server runs as a grandchild; nothing in the group outlives Launch.
	signalGroup(cmd.Process, syscall.SIGKILL)

	stdout.Flush()
	stderr.Flush()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("wait for camoufox server: %w", err)
	}
	if exitErr.ExitCode() == importFailedStatus {
		return fmt.Errorf("%w: %s", ErrNotInstalled, tail.String())
	}
	return &LaunchError{ExitCode: exitErr.ExitCode(), Stderr: tail.String()}
}

// lineWriter logs every complete line written to it.
type lineWriter struct {
	logger  *zap.Logger
	level   zapcore.Level
	tail    *tailBuffer
	mu      sync.Mutex
	partial []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.emit(string(w.partial[:i]))
		w.partial = w.partial[i+1:]
	}
	for len(w.partial) >= maxLineLength {
		w.emit(string(w.partial[:maxLineLength]))
		w.partial = w.partial[maxLineLength:]
	}
	return len(p), nil
}

// Flush logs a trailing line that had no newline.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.partial) > 0 {
		w.emit(string(w.partial))
		w.partial = nil
	}
}

func (w *lineWriter) emit(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	if w.tail != nil {
		w.tail.add(line)
	}
	if ce := w.logger.Check(w.level, "camoufox"); ce != nil {
		ce.Write(zap.String("line", line))
	}
}

// tailBuffer keeps the last max bytes of the lines written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []string
	n   int
}

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, line)
	t.n += len(line)
	for t.n > t.max && len(t.buf) > 1 {
		t.n -= len(t.buf[0])
		t.buf = t.buf[1:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(strings.Join(t.buf, "\n"))
}
