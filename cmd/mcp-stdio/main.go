// Command mcp-stdio serves the ormodeler MCP tools over standard input and
// output, for MCP clients that launch their tool servers as subprocesses.
//
// Sandbox settings come from the same config file and ORMODELER_*
// variables as the HTTP server. Logs go to standard error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/ormodeler/pkg/api"
	"github.com/rhuss/ormodeler/pkg/config"
	"github.com/rhuss/ormodeler/pkg/debug"
	"github.com/rhuss/ormodeler/pkg/engine"
	"github.com/rhuss/ormodeler/pkg/mcpserver"
	"github.com/rhuss/ormodeler/pkg/sandbox"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("mcp server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level)

	var runner sandbox.Runner
	if cfg.Sandbox.Mode == "remote" {
		runner = sandbox.NewClient(cfg.Sandbox.RemoteURL)
	} else {
		runner = sandbox.NewExecutor(sandbox.Config{
			Interpreter:    cfg.Sandbox.Interpreter,
			DefaultTimeout: cfg.Sandbox.DefaultTimeout,
			MaxOutputBytes: cfg.Sandbox.MaxOutputBytes,
			WorkDir:        cfg.Sandbox.WorkDir,
		})
	}

	// The tools need no generation service.
	eng, err := engine.New(nil, runner, engine.Config{
		ExecTimeout:       cfg.Sandbox.DefaultTimeout,
		MaxConcurrentRuns: int64(cfg.Sandbox.MaxConcurrent),
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	server := mcpserver.New(eng, mcpserver.Options{
		Version:    version,
		MaxTimeout: api.DefaultValidationConfig().MaxTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("mcp server starting on stdio", "sandbox", cfg.Sandbox.Mode)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
