package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/rhuss/ormodeler/pkg/api"
	"github.com/rhuss/ormodeler/pkg/engine"
	"github.com/rhuss/ormodeler/pkg/model"
	"github.com/rhuss/ormodeler/pkg/render"
	"github.com/rhuss/ormodeler/pkg/sandbox"
	"github.com/rhuss/ormodeler/pkg/transport"
)

// Modeler is the processing backend served by the adapter. *engine.Engine
// implements it.
type Modeler interface {
	Normalize(raw string) *model.Model
	Formulate(ctx context.Context, statement string, opts engine.FormulateOptions) (*engine.Formulation, error)
	GenerateCode(ctx context.Context, outline string) (string, error)
	Execute(ctx context.Context, code string, timeout time.Duration) (*sandbox.Result, error)
	HasGenerator() bool
}

var _ Modeler = (*engine.Engine)(nil)

// Adapter serves the modeling API over HTTP.
type Adapter struct {
	modeler  Modeler
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
	Validation  api.ValidationConfig
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
		Validation:  api.DefaultValidationConfig(),
	}
}

// NewAdapter creates an HTTP adapter around m.
func NewAdapter(m Modeler, cfg Config) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	a := &Adapter{
		modeler:  m,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("POST /v1/normalize", a.handleNormalize)
	a.mux.HandleFunc("POST /v1/render", a.handleRender)
	a.mux.HandleFunc("POST /v1/formulate", a.handleFormulate)
	a.mux.HandleFunc("POST /v1/code", a.handleCode)
	a.mux.HandleFunc("POST /v1/executions", a.handleExecute)
	a.mux.HandleFunc("DELETE /v1/executions/{id}", a.handleCancelExecution)
	a.mux.HandleFunc("GET /healthz", a.handleHealth)

	return a
}

// Mux returns the route multiplexer so that the server can mount further
// endpoints (metrics, MCP) next to the API routes.
func (a *Adapter) Mux() *http.ServeMux {
	return a.mux
}

// Handler returns the http.Handler for this adapter.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

// decodeRequest validates the content type, limits the body size and
// decodes the JSON body into v. On failure it writes the error response and
// returns false.
func (a *Adapter) decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return false
	}
	return true
}

// handleNormalize handles POST /v1/normalize. A parse failure is a
// successful response carrying the error model.
func (a *Adapter) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req api.NormalizeRequest
	if !a.decodeRequest(w, r, &req) {
		return
	}
	if apiErr := api.ValidateNormalize(&req, a.config.Validation); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	transport.WriteJSON(w, http.StatusOK, api.NormalizeResponse{Model: a.modeler.Normalize(req.Text)})
}

// handleRender handles POST /v1/render.
func (a *Adapter) handleRender(w http.ResponseWriter, r *http.Request) {
	var req api.RenderRequest
	if !a.decodeRequest(w, r, &req) {
		return
	}
	if apiErr := api.ValidateRender(&req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	var resp api.RenderResponse
	if req.Format == "" || req.Format == api.FormatLaTeX {
		resp.LaTeX = render.Document(req.Model)
	}
	if req.Format == "" || req.Format == api.FormatOutline {
		resp.Outline = render.Outline(req.Model)
	}
	transport.WriteJSON(w, http.StatusOK, resp)
}

// handleFormulate handles POST /v1/formulate.
func (a *Adapter) handleFormulate(w http.ResponseWriter, r *http.Request) {
	var req api.FormulateRequest
	if !a.decodeRequest(w, r, &req) {
		return
	}
	if apiErr := api.ValidateFormulate(&req, a.config.Validation); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	f, err := a.modeler.Formulate(r.Context(), req.Statement, engine.FormulateOptions{Refine: req.Refine})
	if err != nil {
		a.writeHandlerError(w, r, err)
		return
	}

	transport.WriteJSON(w, http.StatusOK, api.FormulateResponse{
		Statement: f.Statement,
		Refined:   f.Refined,
		Model:     f.Model,
		LaTeX:     f.LaTeX,
		Outline:   f.Outline,
	})
}

// handleCode handles POST /v1/code.
func (a *Adapter) handleCode(w http.ResponseWriter, r *http.Request) {
	var req api.CodeRequest
	if !a.decodeRequest(w, r, &req) {
		return
	}
	if apiErr := api.ValidateCode(&req, a.config.Validation); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	outline := req.Outline
	if outline == "" {
		if req.Model.HasError() {
			transport.WriteAPIError(w, api.NewInvalidRequestError("model", "model carries a parse error: "+req.Model.Error))
			return
		}
		outline = render.Outline(req.Model)
	}

	code, err := a.modeler.GenerateCode(r.Context(), outline)
	if err != nil {
		a.writeHandlerError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.CodeResponse{Code: code})
}

// handleExecute handles POST /v1/executions. The execution is registered
// under its ID while it runs so that DELETE can cancel it. A failed run is
// still a 200 response; the outcome is in the result.
func (a *Adapter) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req api.ExecutionRequest
	if !a.decodeRequest(w, r, &req) {
		return
	}
	if apiErr := api.ValidateExecution(&req, a.config.Validation); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	id := req.ID
	if id == "" {
		id = api.NewExecutionID()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	release, ok := a.inflight.Register(id, cancel)
	if !ok {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "execution "+id+" is already running"))
		return
	}
	defer release()

	start := time.Now()
	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	result, err := a.modeler.Execute(ctx, req.Code, timeout)
	if err != nil {
		// Cancelled by DELETE before a sandbox slot was free.
		if ctx.Err() != nil && r.Context().Err() == nil {
			result = sandbox.CancelledResult(ctx.Err(), time.Since(start))
		} else {
			a.writeHandlerError(w, r, err)
			return
		}
	}

	slog.Info("execution finished",
		"id", id,
		"request_id", transport.RequestIDFromContext(r.Context()),
		"exit_reason", result.ExitReason,
		"duration_ms", result.DurationMs,
	)
	transport.WriteJSON(w, http.StatusOK, api.ExecutionResponse{ID: id, Result: result})
}

// handleCancelExecution handles DELETE /v1/executions/{id}.
func (a *Adapter) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateExecutionID(id) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("id", "malformed execution ID"),
			http.StatusBadRequest,
		)
		return
	}

	if !a.inflight.Cancel(id) {
		transport.WriteAPIError(w, api.NewNotFoundError("execution "+id+" is not running"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status     string `json:"status"`
	Generator  bool   `json:"generator"`
	Executions int    `json:"executions_in_flight"`
}

// handleHealth handles GET /healthz.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Generator:  a.modeler.HasGenerator(),
		Executions: a.inflight.Len(),
	})
}

// writeHandlerError writes err as an API error. Errors caused by the
// client going away are only logged.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil && errors.Is(err, context.Canceled) {
		slog.Debug("client disconnected", "path", r.URL.Path, "error", err)
		return
	}
	transport.WriteError(w, err)
}
