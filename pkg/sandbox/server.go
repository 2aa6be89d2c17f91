package sandbox

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rhuss/ormodeler/pkg/debug"
)

// ServerConfig configures the sandbox HTTP handler.
type ServerConfig struct {
	// MaxConcurrent is the number of executions allowed at once; further
	// requests get HTTP 429.
	MaxConcurrent int

	// MaxBodyBytes caps the request body.
	MaxBodyBytes int64

	// MaxTimeout caps the timeout a caller may ask for. Zero means no cap.
	MaxTimeout time.Duration

	// Runtime is reported by the health endpoint.
	Runtime string
}

// Server exposes a Runner over HTTP:
//
//	POST /execute  {"code": "...", "timeout_seconds": 30} -> Result
//	GET  /health
type Server struct {
	runner      Runner
	cfg         ServerConfig
	currentLoad atomic.Int32
	startTime   time.Time
}

// NewServer creates a Server around runner.
func NewServer(runner Runner, cfg ServerConfig) *Server {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	return &Server{runner: runner, cfg: cfg, startTime: time.Now()}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute", s.handleExecute)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	current := s.currentLoad.Add(1)
	defer s.currentLoad.Add(-1)

	if int(current) > s.cfg.MaxConcurrent {
		writeError(w, http.StatusTooManyRequests,
			fmt.Sprintf("at capacity (%d/%d concurrent executions)", current, s.cfg.MaxConcurrent))
		return
	}

	var req ExecuteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	if s.cfg.MaxTimeout > 0 && (timeout <= 0 || timeout > s.cfg.MaxTimeout) {
		timeout = s.cfg.MaxTimeout
	}

	slog.Info("execute request",
		"code", debug.Truncate(req.Code, 120),
		"timeout_seconds", req.TimeoutSeconds,
	)

	result := s.runner.Execute(r.Context(), req.Code, timeout)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type healthResponse struct {
	Status      string `json:"status"`
	Runtime     string `json:"runtime,omitempty"`
	Capacity    int    `json:"capacity"`
	CurrentLoad int    `json:"current_load"`
	UptimeSecs  int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:      "healthy",
		Runtime:     s.cfg.Runtime,
		Capacity:    s.cfg.MaxConcurrent,
		CurrentLoad: int(s.currentLoad.Load()),
		UptimeSecs:  int64(time.Since(s.startTime).Seconds()),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
