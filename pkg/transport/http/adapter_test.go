package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rhuss/ormodeler/pkg/api"
	"github.com/rhuss/ormodeler/pkg/engine"
	"github.com/rhuss/ormodeler/pkg/model"
	"github.com/rhuss/ormodeler/pkg/normalize"
	"github.com/rhuss/ormodeler/pkg/render"
	"github.com/rhuss/ormodeler/pkg/sandbox"
)

// mockModeler is a configurable Modeler for testing.
type mockModeler struct {
	mu sync.Mutex

	formulation *engine.Formulation
	code        string
	result      *sandbox.Result
	err         error
	generator   bool

	// execStarted receives the execution context when set; Execute then
	// blocks until that context is done.
	execStarted chan context.Context

	gotOutline string
	gotTimeout time.Duration
	gotRefine  bool
}

func (m *mockModeler) Normalize(raw string) *model.Model {
	return normalize.Normalize(raw)
}

func (m *mockModeler) Formulate(_ context.Context, statement string, opts engine.FormulateOptions) (*engine.Formulation, error) {
	m.mu.Lock()
	m.gotRefine = opts.Refine
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	f := *m.formulation
	f.Statement = statement
	return &f, nil
}

func (m *mockModeler) GenerateCode(_ context.Context, outline string) (string, error) {
	m.mu.Lock()
	m.gotOutline = outline
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.code, nil
}

func (m *mockModeler) Execute(ctx context.Context, code string, timeout time.Duration) (*sandbox.Result, error) {
	m.mu.Lock()
	m.gotTimeout = timeout
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.execStarted != nil {
		m.execStarted <- ctx
		<-ctx.Done()
		return &sandbox.Result{Failed: true, ExitReason: sandbox.ExitTimeout, ExitCode: -1, Diagnostic: "execution cancelled"}, nil
	}
	return m.result, nil
}

func (m *mockModeler) HasGenerator() bool { return m.generator }

func newTestAdapter(m Modeler) *Adapter {
	return NewAdapter(m, DefaultConfig())
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal error: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantType api.ErrorType) *api.APIError {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, wantStatus, rec.Body.String())
	}
	resp := decode[api.ErrorResponse](t, rec)
	if resp.Error == nil || resp.Error.Type != wantType {
		t.Fatalf("error = %+v, want type %q", resp.Error, wantType)
	}
	return resp.Error
}

const fencedModel = "```json\n{\"sets\": [\"Products ($P$)\"], \"objective\": {\"type\": \"maximize\", \"expression\": \"$\\\\sum_p x_p$\"}}\n```"

func TestNormalize(t *testing.T) {
	h := newTestAdapter(&mockModeler{}).Handler()

	rec := do(t, h, "POST", "/v1/normalize", api.NormalizeRequest{Text: fencedModel})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[api.NormalizeResponse](t, rec)
	if got.Model.HasError() {
		t.Fatalf("unexpected parse error: %s", got.Model.Error)
	}
	if len(got.Model.Sets) != 1 || got.Model.Sets[0] != "Products ($P$)" {
		t.Errorf("Sets = %v", got.Model.Sets)
	}
	if got.Model.Objective == nil || got.Model.Objective.Expression != `$\sum_p x_p$` {
		t.Errorf("Objective = %+v", got.Model.Objective)
	}
}

func TestNormalizeParseFailureIs200(t *testing.T) {
	h := newTestAdapter(&mockModeler{}).Handler()

	rec := do(t, h, "POST", "/v1/normalize", api.NormalizeRequest{Text: "I cannot help with that."})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := decode[api.NormalizeResponse](t, rec)
	if !got.Model.HasError() || got.Model.RawOutput != "I cannot help with that." {
		t.Errorf("model = %+v, want error model with raw output", got.Model)
	}
}

func TestRender(t *testing.T) {
	m := &model.Model{
		Sets:      []string{"Products ($P$)"},
		Objective: &model.Objective{Kind: model.Maximize, Expression: "$x$"},
	}
	h := newTestAdapter(&mockModeler{}).Handler()

	tests := []struct {
		format      string
		wantLaTeX   bool
		wantOutline bool
	}{
		{"", true, true},
		{api.FormatLaTeX, true, false},
		{api.FormatOutline, false, true},
	}

	for _, tt := range tests {
		t.Run("format="+tt.format, func(t *testing.T) {
			rec := do(t, h, "POST", "/v1/render", api.RenderRequest{Model: m, Format: tt.format})
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			got := decode[api.RenderResponse](t, rec)

			if tt.wantLaTeX != (got.LaTeX == render.Document(m)) {
				t.Errorf("latex present = %v, want %v", got.LaTeX != "", tt.wantLaTeX)
			}
			if tt.wantOutline != (got.Outline == render.Outline(m)) {
				t.Errorf("outline present = %v, want %v", got.Outline != "", tt.wantOutline)
			}
		})
	}
}

func TestRenderValidation(t *testing.T) {
	h := newTestAdapter(&mockModeler{}).Handler()

	apiErr := assertError(t, do(t, h, "POST", "/v1/render", `{"format": "latex"}`), http.StatusBadRequest, api.ErrorTypeInvalidRequest)
	if apiErr.Param != "model" {
		t.Errorf("param = %q, want model", apiErr.Param)
	}

	apiErr = assertError(t, do(t, h, "POST", "/v1/render", `{"model": {}, "format": "pdf"}`), http.StatusBadRequest, api.ErrorTypeInvalidRequest)
	if apiErr.Param != "format" {
		t.Errorf("param = %q, want format", apiErr.Param)
	}
}

func TestFormulate(t *testing.T) {
	mm := &mockModeler{formulation: &engine.Formulation{
		Refined: "refined text",
		Model:   &model.Model{Sets: []string{"S"}},
		LaTeX:   "\\documentclass{article}",
		Outline: "--- SETS ---\n- S\n",
	}}
	h := newTestAdapter(mm).Handler()

	rec := do(t, h, "POST", "/v1/formulate", api.FormulateRequest{Statement: "maximize profit", Refine: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[api.FormulateResponse](t, rec)
	if got.Statement != "maximize profit" || got.Refined != "refined text" || got.Outline != "--- SETS ---\n- S\n" {
		t.Errorf("response = %+v", got)
	}
	if !mm.gotRefine {
		t.Error("refine flag was not passed to the modeler")
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   api.ErrorType
	}{
		{"model error", fmt.Errorf("formulate: %w", api.NewModelError("backend error (HTTP 500)")), http.StatusBadGateway, api.ErrorTypeModelError},
		{"unavailable", api.NewUnavailableError("no generation provider configured"), http.StatusServiceUnavailable, api.ErrorTypeUnavailable},
		{"upstream rate limit", api.NewTooManyRequestsError("slow down"), http.StatusTooManyRequests, api.ErrorTypeTooManyRequests},
		{"plain error", errors.New("unexpected"), http.StatusInternalServerError, api.ErrorTypeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestAdapter(&mockModeler{err: tt.err}).Handler()
			assertError(t, do(t, h, "POST", "/v1/formulate", api.FormulateRequest{Statement: "x"}), tt.wantStatus, tt.wantType)
			assertError(t, do(t, h, "POST", "/v1/code", api.CodeRequest{Outline: "x"}), tt.wantStatus, tt.wantType)
		})
	}
}

func TestCode(t *testing.T) {
	t.Run("outline", func(t *testing.T) {
		mm := &mockModeler{code: "import pulp\n"}
		rec := do(t, newTestAdapter(mm).Handler(), "POST", "/v1/code", api.CodeRequest{Outline: "--- SETS ---\n- S\n"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := decode[api.CodeResponse](t, rec); got.Code != "import pulp\n" {
			t.Errorf("Code = %q", got.Code)
		}
		if mm.gotOutline != "--- SETS ---\n- S\n" {
			t.Errorf("outline passed = %q", mm.gotOutline)
		}
	})

	t.Run("model is rendered to its outline", func(t *testing.T) {
		mm := &mockModeler{code: "x"}
		m := &model.Model{Constraints: []string{"$x \\leq 1$"}}
		rec := do(t, newTestAdapter(mm).Handler(), "POST", "/v1/code", api.CodeRequest{Model: m})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if mm.gotOutline != render.Outline(m) {
			t.Errorf("outline passed = %q, want %q", mm.gotOutline, render.Outline(m))
		}
	})

	t.Run("error model is rejected", func(t *testing.T) {
		h := newTestAdapter(&mockModeler{}).Handler()
		assertError(t, do(t, h, "POST", "/v1/code", api.CodeRequest{Model: &model.Model{Error: "failed to parse"}}),
			http.StatusBadRequest, api.ErrorTypeInvalidRequest)
	})

	t.Run("missing input", func(t *testing.T) {
		h := newTestAdapter(&mockModeler{}).Handler()
		assertError(t, do(t, h, "POST", "/v1/code", `{}`), http.StatusBadRequest, api.ErrorTypeInvalidRequest)
	})
}

func TestExecute(t *testing.T) {
	result := &sandbox.Result{Failed: true, Stdout: "partial\n", ExitReason: sandbox.ExitNonzero, ExitCode: 1, Diagnostic: "partial\n"}
	mm := &mockModeler{result: result}
	h := newTestAdapter(mm).Handler()

	rec := do(t, h, "POST", "/v1/executions", api.ExecutionRequest{Code: "exit(1)", TimeoutSeconds: 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a failed run", rec.Code)
	}
	got := decode[api.ExecutionResponse](t, rec)
	if !api.ValidateExecutionID(got.ID) {
		t.Errorf("ID = %q, want generated execution ID", got.ID)
	}
	if got.Result.ExitReason != sandbox.ExitNonzero || got.Result.ExitCode != 1 || !got.Result.Failed {
		t.Errorf("result = %+v", got.Result)
	}
	if mm.gotTimeout != 5*time.Second {
		t.Errorf("timeout = %s, want 5s", mm.gotTimeout)
	}
}

func TestExecuteValidation(t *testing.T) {
	h := newTestAdapter(&mockModeler{result: &sandbox.Result{}}).Handler()

	for _, body := range []string{
		`{"code": ""}`,
		`{"code": "x", "timeout_seconds": -1}`,
		`{"code": "x", "timeout_seconds": 3600}`,
		`{"code": "x", "id": "not-an-id"}`,
	} {
		assertError(t, do(t, h, "POST", "/v1/executions", body), http.StatusBadRequest, api.ErrorTypeInvalidRequest)
	}
}

func TestExecuteCancellation(t *testing.T) {
	mm := &mockModeler{execStarted: make(chan context.Context, 1)}
	h := newTestAdapter(mm).Handler()
	const id = "exec_abcdefghijklmnopqrstuvwx"

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- do(t, h, "POST", "/v1/executions", api.ExecutionRequest{ID: id, Code: "while True: pass"})
	}()
	<-mm.execStarted

	// A second run under the same ID is rejected while the first is in flight.
	assertError(t, do(t, h, "POST", "/v1/executions", api.ExecutionRequest{ID: id, Code: "x"}),
		http.StatusBadRequest, api.ErrorTypeInvalidRequest)

	if rec := do(t, h, "DELETE", "/v1/executions/"+id, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", rec.Code)
	}

	select {
	case rec := <-done:
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		got := decode[api.ExecutionResponse](t, rec)
		if got.ID != id || got.Result.ExitReason != sandbox.ExitTimeout {
			t.Errorf("response = %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("execution was not cancelled")
	}

	// Once finished the ID is no longer in flight.
	assertError(t, do(t, h, "DELETE", "/v1/executions/"+id, nil), http.StatusNotFound, api.ErrorTypeNotFound)
}

// blockingRunner holds every run until its context ends.
type blockingRunner struct {
	started chan struct{}
}

func (b *blockingRunner) Execute(ctx context.Context, code string, timeout time.Duration) *sandbox.Result {
	b.started <- struct{}{}
	<-ctx.Done()
	return sandbox.CancelledResult(ctx.Err(), 0)
}

func TestExecuteCancelledWhileWaitingForSlot(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}, 2)}
	eng, err := engine.New(nil, runner, engine.Config{MaxConcurrentRuns: 1})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	h := newTestAdapter(eng).Handler()
	const holder, waiter = "exec_slotholder00000000000000", "exec_slotwaiter00000000000000"

	holderDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		holderDone <- do(t, h, "POST", "/v1/executions", api.ExecutionRequest{ID: holder, Code: "x"})
	}()
	<-runner.started

	waiterDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		waiterDone <- do(t, h, "POST", "/v1/executions", api.ExecutionRequest{ID: waiter, Code: "y"})
	}()

	// The waiter is registered before it blocks on the slot.
	deadline := time.Now().Add(5 * time.Second)
	for do(t, h, "DELETE", "/v1/executions/"+waiter, nil).Code != http.StatusNoContent {
		if time.Now().After(deadline) {
			t.Fatal("waiting execution never became cancellable")
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case rec := <-waiterDone:
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
		}
		got := decode[api.ExecutionResponse](t, rec)
		if got.ID != waiter || got.Result.ExitReason != sandbox.ExitTimeout || !got.Result.Failed {
			t.Errorf("result = %+v", got.Result)
		}
		if !strings.Contains(got.Result.Diagnostic, "cancelled") {
			t.Errorf("Diagnostic = %q, want cancellation message", got.Result.Diagnostic)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiting execution did not return after DELETE")
	}

	select {
	case <-runner.started:
		t.Error("cancelled execution still reached the sandbox")
	default:
	}

	if rec := do(t, h, "DELETE", "/v1/executions/"+holder, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE holder status = %d", rec.Code)
	}
	<-holderDone
}

func TestCancelMalformedID(t *testing.T) {
	h := newTestAdapter(&mockModeler{}).Handler()
	assertError(t, do(t, h, "DELETE", "/v1/executions/run-1", nil), http.StatusBadRequest, api.ErrorTypeInvalidRequest)
}

func TestHealth(t *testing.T) {
	h := newTestAdapter(&mockModeler{generator: true}).Handler()

	rec := do(t, h, "GET", "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[healthResponse](t, rec)
	if got.Status != "ok" || !got.Generator || got.Executions != 0 {
		t.Errorf("health = %+v", got)
	}
}

func TestInvalidJSONBodyReturns400(t *testing.T) {
	h := newTestAdapter(&mockModeler{}).Handler()
	apiErr := assertError(t, do(t, h, "POST", "/v1/normalize", `{"text": `), http.StatusBadRequest, api.ErrorTypeInvalidRequest)
	if !strings.Contains(apiErr.Message, "invalid JSON") {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestOversizedBodyReturns413(t *testing.T) {
	a := NewAdapter(&mockModeler{}, Config{MaxBodySize: 64})
	body := api.NormalizeRequest{Text: strings.Repeat("x", 200)}
	assertError(t, do(t, a.Handler(), "POST", "/v1/normalize", body), http.StatusRequestEntityTooLarge, api.ErrorTypeInvalidRequest)
}

func TestWrongContentTypeReturns415(t *testing.T) {
	h := newTestAdapter(&mockModeler{}).Handler()

	req := httptest.NewRequest("POST", "/v1/normalize", strings.NewReader(`{"text": "x"}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assertError(t, rec, http.StatusUnsupportedMediaType, api.ErrorTypeInvalidRequest)

	// Parameters on the media type are accepted.
	req = httptest.NewRequest("POST", "/v1/normalize", strings.NewReader(`{"text": "x"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d with charset parameter, want 200", rec.Code)
	}
}

func TestRouting(t *testing.T) {
	h := newTestAdapter(&mockModeler{}).Handler()

	if rec := do(t, h, "POST", "/v1/unknown", `{}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path: status = %d, want 404", rec.Code)
	}
	if rec := do(t, h, "GET", "/v1/normalize", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET on POST route: status = %d, want 405", rec.Code)
	}
}
