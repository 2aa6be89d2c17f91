// Command server runs the ormodeler HTTP API and MCP endpoint.
//
// Configuration is read from a YAML file and ORMODELER_* environment
// variables, see pkg/config. The file can be given with -config:
//
//	server -config /etc/ormodeler/config.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/rhuss/ormodeler/pkg/api"
	"github.com/rhuss/ormodeler/pkg/auth"
	"github.com/rhuss/ormodeler/pkg/auth/apikey"
	"github.com/rhuss/ormodeler/pkg/auth/jwt"
	"github.com/rhuss/ormodeler/pkg/config"
	"github.com/rhuss/ormodeler/pkg/debug"
	"github.com/rhuss/ormodeler/pkg/engine"
	"github.com/rhuss/ormodeler/pkg/mcpserver"
	"github.com/rhuss/ormodeler/pkg/provider"
	"github.com/rhuss/ormodeler/pkg/provider/openai"
	"github.com/rhuss/ormodeler/pkg/sandbox"
	"github.com/rhuss/ormodeler/pkg/transport"
	transporthttp "github.com/rhuss/ormodeler/pkg/transport/http"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level)

	eng, err := engine.New(newGenerator(cfg.Provider), newRunner(cfg.Sandbox), engine.Config{
		ExecTimeout:       cfg.Sandbox.DefaultTimeout,
		MaxConcurrentRuns: int64(cfg.Sandbox.MaxConcurrent),
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	authMW, err := newAuthMiddleware(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(":" + strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodyBytes),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithMiddleware(authMW),
	}
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithMetrics(cfg.Observability.Metrics.Path))
	}
	if cfg.MCP.Enabled {
		mcpSrv := mcpserver.New(eng, mcpserver.Options{
			Version:    version,
			MaxTimeout: api.DefaultValidationConfig().MaxTimeout,
		})
		opts = append(opts, transporthttp.WithMCP(cfg.MCP.Path, mcpserver.Handler(mcpSrv)))
	}

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"provider", cfg.Provider.Type,
		"model", cfg.Provider.Model,
		"sandbox", cfg.Sandbox.Mode,
		"auth", cfg.Auth.Type,
		"mcp", cfg.MCP.Enabled,
	)

	return transporthttp.NewServer(eng, opts...).ListenAndServe()
}

// newGenerator returns nil when no provider is configured; the engine then
// answers formulation and code requests as unavailable.
func newGenerator(cfg config.ProviderConfig) provider.Generator {
	if cfg.Type != "openai" {
		return nil
	}
	return openai.New(openai.Config{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	})
}

func newRunner(cfg config.SandboxConfig) sandbox.Runner {
	if cfg.Mode == "remote" {
		return sandbox.NewClient(cfg.RemoteURL)
	}
	return sandbox.NewExecutor(sandbox.Config{
		Interpreter:    cfg.Interpreter,
		DefaultTimeout: cfg.DefaultTimeout,
		MaxOutputBytes: cfg.MaxOutputBytes,
		WorkDir:        cfg.WorkDir,
	})
}

func newAuthMiddleware(cfg config.AuthConfig) (transport.Middleware, error) {
	chain := &auth.AuthChain{DefaultDecision: auth.No}

	switch cfg.Type {
	case "apikey":
		entries := make([]apikey.Entry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			entries = append(entries, apikey.Entry{Key: k.Key, Subject: k.Subject, ServiceTier: k.ServiceTier})
		}
		chain.Authenticators = []auth.Authenticator{apikey.New(entries)}
	case "jwt":
		authn, err := jwt.New(jwt.Config{
			Secret:   []byte(cfg.JWT.Secret),
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
		})
		if err != nil {
			return nil, err
		}
		chain.Authenticators = []auth.Authenticator{authn}
	default:
		chain.DefaultDecision = auth.Yes
	}

	var limiter auth.RateLimiter
	if cfg.RequestsPerMinute > 0 {
		limiter = auth.NewSubjectLimiter(cfg.RequestsPerMinute, nil)
	}

	return auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints), nil
}
