package sandbox

import (
	"fmt"
	"strings"
	"time"
)

// ExitReason classifies how an execution ended.
type ExitReason string

const (
	ExitSuccess      ExitReason = "success"
	ExitNonzero      ExitReason = "nonzero_exit"
	ExitTimeout      ExitReason = "timeout"
	ExitSpawnFailure ExitReason = "spawn_failure"
)

// Result is the outcome of running generated code. Stdout and Stderr are
// never nil-like: an empty stream is the empty string.
type Result struct {
	Failed      bool       `json:"failed"`
	Stdout      string     `json:"stdout"`
	Stderr      string     `json:"stderr"`
	CombinedLog string     `json:"combined_log"`
	ExitReason  ExitReason `json:"exit_reason"`

	// ExitCode is the process exit status, or -1 when the process was
	// killed or never started.
	ExitCode int `json:"exit_code"`

	// Diagnostic is the text to show for a failure: stderr (or stdout when
	// stderr is empty) for a nonzero exit, the limit for a timeout, the
	// error for a spawn failure. Empty on success.
	Diagnostic string `json:"diagnostic,omitempty"`

	DurationMs int64 `json:"duration_ms"`
	Truncated  bool  `json:"truncated,omitempty"`
}

// Duration returns the wall-clock run time.
func (r *Result) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

// CombinedLog labels and joins the two output streams.
func CombinedLog(stdout, stderr string) string {
	return "--- STDOUT ---\n" + stdout + "\n--- STDERR ---\n" + stderr
}

func newResult(reason ExitReason, stdout, stderr string, exitCode int, diagnostic string, elapsed time.Duration) *Result {
	return &Result{
		Failed:      reason != ExitSuccess,
		Stdout:      stdout,
		Stderr:      stderr,
		CombinedLog: CombinedLog(stdout, stderr),
		ExitReason:  reason,
		ExitCode:    exitCode,
		Diagnostic:  diagnostic,
		DurationMs:  elapsed.Milliseconds(),
	}
}

// successResult builds the result of a zero exit.
func successResult(stdout, stderr string, elapsed time.Duration) *Result {
	return newResult(ExitSuccess, stdout, stderr, 0, "", elapsed)
}

// nonzeroResult builds the result of a failing exit. Some failures only
// print to standard output, so it stands in when stderr is blank.
func nonzeroResult(stdout, stderr string, exitCode int, elapsed time.Duration) *Result {
	diagnostic := stderr
	if strings.TrimSpace(diagnostic) == "" {
		diagnostic = stdout
	}
	return newResult(ExitNonzero, stdout, stderr, exitCode, diagnostic, elapsed)
}

func timeoutResult(stdout, stderr, diagnostic string, elapsed time.Duration) *Result {
	return newResult(ExitTimeout, stdout, stderr, -1, diagnostic, elapsed)
}

// CancelledResult is the result of a run stopped because its caller went
// away or cancelled it. It reads like a timeout: the process was killed or
// never started, and the cause is in the diagnostic.
func CancelledResult(cause error, elapsed time.Duration) *Result {
	return timeoutResult("", "", cancelledMessage(cause), elapsed)
}

func cancelledMessage(cause error) string {
	return fmt.Sprintf("execution cancelled: %v", cause)
}

// spawnFailure builds the result of a process that could not be run. The
// error text doubles as stderr so CombinedLog carries it.
func spawnFailure(err error, elapsed time.Duration) *Result {
	msg := err.Error()
	return newResult(ExitSpawnFailure, "", msg, -1, msg, elapsed)
}

func timeoutMessage(limit time.Duration) string {
	return fmt.Sprintf("execution timed out after %s", limit)
}
