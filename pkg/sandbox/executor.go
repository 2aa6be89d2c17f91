package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rhuss/ormodeler/pkg/debug"
	"github.com/rhuss/ormodeler/pkg/observability"
)

// Defaults applied by NewExecutor.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxOutputBytes = 1 << 20
	DefaultWaitDelay      = 2 * time.Second
)

// DefaultInterpreter runs the generated solver scripts.
var DefaultInterpreter = []string{"python3"}

// Runner executes a code string and always returns a classified result.
// Implementations never panic and never return nil.
type Runner interface {
	Execute(ctx context.Context, code string, timeout time.Duration) *Result
}

// Config configures a local Executor.
type Config struct {
	// Interpreter is the argv prefix; the script path is appended.
	Interpreter []string

	// Extension of the script file, including the dot.
	Extension string

	// DefaultTimeout applies when Execute is called with a timeout <= 0.
	DefaultTimeout time.Duration

	// MaxOutputBytes caps each captured stream. Negative means unlimited.
	MaxOutputBytes int

	// WaitDelay bounds how long output pipes are drained after the process
	// is killed or exits.
	WaitDelay time.Duration

	// Env is appended to the inherited environment.
	Env []string

	// WorkDir is the parent of the per-run temporary directories. Empty
	// means the system temp dir.
	WorkDir string
}

// Executor runs code in a fresh child process per call. The process gets
// its own temporary working directory and, on Unix, its own process group
// so a timeout kills everything the script spawned. This is process
// isolation only; it is not a security boundary.
type Executor struct {
	cfg    Config
	logger *slog.Logger
}

var _ Runner = (*Executor)(nil)

// NewExecutor creates an Executor, filling unset Config fields with defaults.
func NewExecutor(cfg Config) *Executor {
	if len(cfg.Interpreter) == 0 {
		cfg.Interpreter = DefaultInterpreter
	}
	if cfg.Extension == "" {
		cfg.Extension = ".py"
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.MaxOutputBytes == 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = DefaultWaitDelay
	}
	return &Executor{cfg: cfg, logger: slog.Default()}
}

// Execute writes code to a script file and runs it with the configured
// interpreter, waiting at most timeout. Cancellation of ctx is handled like
// the deadline: the process is killed and the result reports a timeout.
func (e *Executor) Execute(ctx context.Context, code string, timeout time.Duration) (result *Result) {
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeout
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = spawnFailure(fmt.Errorf("executor panic: %v", r), time.Since(start))
		}
		e.record(result, code)
	}()

	dir, err := os.MkdirTemp(e.cfg.WorkDir, "ormodeler-exec-*")
	if err != nil {
		return spawnFailure(fmt.Errorf("create work dir: %w", err), time.Since(start))
	}
	defer os.RemoveAll(dir)

	script := filepath.Join(dir, "script"+e.cfg.Extension)
	if err := os.WriteFile(script, []byte(code), 0o600); err != nil {
		return spawnFailure(fmt.Errorf("write script: %w", err), time.Since(start))
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, e.cfg.Interpreter[1:]...), script)
	cmd := exec.CommandContext(runCtx, e.cfg.Interpreter[0], args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), e.cfg.Env...)
	cmd.WaitDelay = e.cfg.WaitDelay
	configureProcess(cmd)
	cmd.Cancel = func() error { return terminateProcess(cmd) }

	stdout := newCappedBuffer(e.cfg.MaxOutputBytes)
	stderr := newCappedBuffer(e.cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	debug.Log("sandbox", "spawn", "interpreter", e.cfg.Interpreter[0], "timeout", timeout.String(), "dir", dir)
	runErr := cmd.Run()
	elapsed := time.Since(start)

	// A clean exit whose pipes were held open by a leftover child.
	if errors.Is(runErr, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		runErr = nil
	}

	result = classify(runCtx, ctx, runErr, timeout, stdout.String(), stderr.String(), elapsed)
	result.Truncated = stdout.truncated() || stderr.truncated()
	return result
}

// classify maps the outcome of cmd.Run onto a Result. The deadline is
// checked before the exit status because a killed process also reports a
// nonzero exit.
func classify(runCtx, parent context.Context, runErr error, timeout time.Duration, stdout, stderr string, elapsed time.Duration) *Result {
	if runErr == nil {
		return successResult(stdout, stderr, elapsed)
	}
	if runCtx.Err() != nil {
		if parent.Err() != nil && !errors.Is(parent.Err(), context.DeadlineExceeded) {
			return timeoutResult(stdout, stderr, cancelledMessage(parent.Err()), elapsed)
		}
		return timeoutResult(stdout, stderr, timeoutMessage(timeout), elapsed)
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return nonzeroResult(stdout, stderr, exitErr.ExitCode(), elapsed)
	}
	return spawnFailure(runErr, elapsed)
}

func (e *Executor) record(r *Result, code string) {
	if r == nil {
		return
	}
	observability.SandboxExecutionsTotal.WithLabelValues(string(r.ExitReason)).Inc()
	observability.SandboxDuration.Observe(r.Duration().Seconds())

	e.logger.Info("execute complete",
		"exit_reason", string(r.ExitReason),
		"exit_code", r.ExitCode,
		"duration_ms", r.DurationMs,
		"stdout_len", len(r.Stdout),
		"stdout", debug.Truncate(r.Stdout, 200),
		"truncated", r.Truncated,
	)
	debug.Trace("sandbox", "executed code", "code", debug.Truncate(code, 2000))
}
