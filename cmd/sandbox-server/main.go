// Command sandbox-server exposes the local code executor over HTTP so
// generated solver code can run on a separate, disposable host.
//
// Configuration:
//
//	SANDBOX_PORT             - Listen port (default: 8080)
//	SANDBOX_INTERPRETER      - Interpreter command line (default: python3)
//	SANDBOX_MAX_CONCURRENT   - Max concurrent executions (default: 3)
//	SANDBOX_DEFAULT_TIMEOUT  - Timeout when a request sends none (default: 30s)
//	SANDBOX_MAX_TIMEOUT      - Upper bound for requested timeouts (default: 10m)
//	SANDBOX_MAX_OUTPUT_BYTES - Per-stream output cap (default: 1048576)
//	SANDBOX_WORK_DIR         - Parent of the per-run directories (default: system temp)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/ormodeler/pkg/debug"
	"github.com/rhuss/ormodeler/pkg/observability"
	"github.com/rhuss/ormodeler/pkg/sandbox"
	"github.com/rhuss/ormodeler/pkg/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("sandbox server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	debug.Init("", "")

	port := envOr("SANDBOX_PORT", "8080")
	interpreter := strings.Fields(envOr("SANDBOX_INTERPRETER", "python3"))
	if len(interpreter) == 0 {
		return fmt.Errorf("SANDBOX_INTERPRETER is empty")
	}
	if _, err := exec.LookPath(interpreter[0]); err != nil {
		return fmt.Errorf("interpreter %q not found in PATH", interpreter[0])
	}

	maxConcurrent, err := envInt("SANDBOX_MAX_CONCURRENT", 3)
	if err != nil {
		return err
	}
	maxOutput, err := envInt("SANDBOX_MAX_OUTPUT_BYTES", sandbox.DefaultMaxOutputBytes)
	if err != nil {
		return err
	}
	defaultTimeout, err := envDuration("SANDBOX_DEFAULT_TIMEOUT", sandbox.DefaultTimeout)
	if err != nil {
		return err
	}
	maxTimeout, err := envDuration("SANDBOX_MAX_TIMEOUT", 10*time.Minute)
	if err != nil {
		return err
	}

	executor := sandbox.NewExecutor(sandbox.Config{
		Interpreter:    interpreter,
		DefaultTimeout: defaultTimeout,
		MaxOutputBytes: maxOutput,
		WorkDir:        os.Getenv("SANDBOX_WORK_DIR"),
	})
	runtimeVersion := detectRuntimeVersion(interpreter[0])

	srv := sandbox.NewServer(executor, sandbox.ServerConfig{
		MaxConcurrent: maxConcurrent,
		MaxTimeout:    maxTimeout,
		Runtime:       runtimeVersion,
	})

	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())
	mux.Handle("GET /metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr: ":" + port,
		Handler: transport.Chain(
			transport.Recovery(),
			transport.RequestID(),
			transport.Logging(slog.Default()),
		)(observability.MetricsMiddleware(mux)),
		ReadTimeout: 30 * time.Second,
		// Long enough for the largest permitted execution.
		WriteTimeout: maxTimeout + sandbox.ResponseMargin,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("sandbox server starting",
			"port", port,
			"interpreter", strings.Join(interpreter, " "),
			"runtime", runtimeVersion,
			"max_concurrent", maxConcurrent,
		)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// detectRuntimeVersion returns the first line of "<cmd> --version".
func detectRuntimeVersion(cmd string) string {
	output, err := exec.Command(cmd, "--version").CombinedOutput()
	if err != nil {
		return "unknown"
	}
	version := strings.TrimSpace(string(output))
	if idx := strings.Index(version, "\n"); idx > 0 {
		version = version[:idx]
	}
	return version
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// envDuration accepts Go durations and bare seconds.
func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
