package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/ormodeler/pkg/api"
	"github.com/rhuss/ormodeler/pkg/observability"
	"github.com/rhuss/ormodeler/pkg/sandbox"
	"github.com/rhuss/ormodeler/pkg/transport"
)

// Server wraps an http.Server with the adapter and manages the full
// lifecycle including startup and graceful shutdown.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds configuration for the transport server.
type ServerConfig struct {
	Addr            string
	MaxBodySize     int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Validation      api.ValidationConfig
	Logger          *slog.Logger

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string

	// MCPPath and MCPHandler mount an MCP endpoint when both are set.
	MCPPath    string
	MCPHandler http.Handler

	// Middleware runs inside recovery, request ID and logging, in order.
	Middleware []transport.Middleware
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    api.DefaultValidationConfig().MaxTimeout + sandbox.ResponseMargin,
		ShutdownTimeout: 30 * time.Second,
		Validation:      api.DefaultValidationConfig(),
		Logger:          slog.Default(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithTimeouts sets the read and write timeouts of the HTTP server. A
// write timeout shorter than the longest permitted execution plus
// sandbox.ResponseMargin is raised to that.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(s *Server) {
		s.config.ReadTimeout = read
		s.config.WriteTimeout = write
	}
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithValidation sets the request validation limits.
func WithValidation(cfg api.ValidationConfig) ServerOption {
	return func(s *Server) { s.config.Validation = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// WithMetrics serves Prometheus metrics at path.
func WithMetrics(path string) ServerOption {
	return func(s *Server) { s.config.MetricsPath = path }
}

// WithMCP mounts an MCP handler at path.
func WithMCP(path string, h http.Handler) ServerOption {
	return func(s *Server) {
		s.config.MCPPath = path
		s.config.MCPHandler = h
	}
}

// WithMiddleware appends middleware, such as authentication, to the chain.
func WithMiddleware(mw ...transport.Middleware) ServerOption {
	return func(s *Server) { s.config.Middleware = append(s.config.Middleware, mw...) }
}

// NewServer creates a new transport server around m.
// Default middleware (recovery, request ID, logging) is applied automatically;
// request metrics are recorded next to the route multiplexer.
func NewServer(m Modeler, opts ...ServerOption) *Server {
	s := &Server{
		config: DefaultServerConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if floor := s.config.Validation.MaxTimeout + sandbox.ResponseMargin; s.config.WriteTimeout > 0 && s.config.WriteTimeout < floor {
		s.logger.Warn("write timeout shorter than the longest execution, raising it",
			"configured", s.config.WriteTimeout,
			"write_timeout", floor,
		)
		s.config.WriteTimeout = floor
	}

	s.adapter = NewAdapter(m, Config{
		MaxBodySize: s.config.MaxBodySize,
		Validation:  s.config.Validation,
	})

	mux := s.adapter.Mux()
	if s.config.MetricsPath != "" {
		mux.Handle("GET "+s.config.MetricsPath, promhttp.Handler())
	}
	if s.config.MCPPath != "" && s.config.MCPHandler != nil {
		mux.Handle(s.config.MCPPath, s.config.MCPHandler)
	}

	chain := append([]transport.Middleware{
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(s.logger),
	}, s.config.Middleware...)

	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      transport.Chain(chain...)(observability.MetricsMiddleware(mux)),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s
}

// Handler returns the fully wrapped handler. Used for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the server and blocks until a shutdown signal
// (SIGINT or SIGTERM) is received. It then gracefully shuts down,
// waiting for in-flight requests to complete within the configured timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}

// Run starts the server and blocks until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
