package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rhuss/ormodeler/pkg/api"
	"github.com/rhuss/ormodeler/pkg/provider"
	"github.com/rhuss/ormodeler/pkg/render"
	"github.com/rhuss/ormodeler/pkg/sandbox"
)

// recordingGenerator answers by system prompt and records every request.
type recordingGenerator struct {
	mu       sync.Mutex
	answers  map[string]string
	err      error
	requests []*provider.Request
}

func (g *recordingGenerator) Name() string { return "recording" }

func (g *recordingGenerator) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &provider.Response{Text: g.answers[req.System], Usage: provider.Usage{InputTokens: 10, OutputTokens: 20}}, nil
}

// stubRunner returns a success result and records the requested timeout.
type stubRunner struct {
	mu       sync.Mutex
	timeouts []time.Duration
	block    chan struct{}
}

func (r *stubRunner) Execute(ctx context.Context, code string, timeout time.Duration) *sandbox.Result {
	r.mu.Lock()
	r.timeouts = append(r.timeouts, timeout)
	r.mu.Unlock()
	if r.block != nil {
		<-r.block
	}
	return &sandbox.Result{ExitReason: sandbox.ExitSuccess, Stdout: code}
}

func newEngine(t *testing.T, gen provider.Generator, runner sandbox.Runner, cfg Config) *Engine {
	t.Helper()
	if runner == nil {
		runner = &stubRunner{}
	}
	e, err := New(gen, runner, cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return e
}

func TestNew_RequiresRunner(t *testing.T) {
	if _, err := New(nil, nil, Config{}); err == nil {
		t.Error("New() with nil runner should fail")
	}
}

func TestRefine(t *testing.T) {
	gen := &recordingGenerator{answers: map[string]string{
		refineSystem: "Refined Problem Statement for OR Modeling:\n\"Maximize profit subject to capacity.\"",
	}}
	e := newEngine(t, gen, nil, Config{})

	got, err := e.Refine(context.Background(), "make money with 2 machines")
	if err != nil {
		t.Fatalf("Refine() error: %v", err)
	}
	if got != "Maximize profit subject to capacity." {
		t.Errorf("Refine() = %q", got)
	}
	if !strings.Contains(gen.requests[0].Prompt, "make money with 2 machines") {
		t.Error("prompt does not carry the statement")
	}
}

func TestRefine_FailureKeepsOriginal(t *testing.T) {
	gen := &recordingGenerator{err: api.NewModelError("backend down")}
	e := newEngine(t, gen, nil, Config{})

	got, err := e.Refine(context.Background(), "original statement")
	if err != nil {
		t.Fatalf("Refine() error: %v", err)
	}
	if got != "original statement" {
		t.Errorf("Refine() = %q, want the original statement", got)
	}
}

func TestRefine_Unavailable(t *testing.T) {
	e := newEngine(t, nil, nil, Config{})

	_, err := e.Refine(context.Background(), "statement")
	if apiErr := api.AsAPIError(err); apiErr == nil || apiErr.Type != api.ErrorTypeUnavailable {
		t.Errorf("Refine() error = %v, want unavailable", err)
	}

	_, err = e.Refine(context.Background(), "   ")
	if apiErr := api.AsAPIError(err); apiErr == nil || apiErr.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("Refine(blank) error = %v, want invalid_request", err)
	}
}

func TestCleanRefined(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  plain text \n", "plain text"},
		{"Refined Problem Statement for OR Modeling:  Minimize cost.", "Minimize cost."},
		{`"quoted"`, "quoted"},
		{`"a" and "b"`, `"a" and "b"`},
		{`"`, `"`},
	}
	for _, tt := range tests {
		if got := cleanRefined(tt.in); got != tt.want {
			t.Errorf("cleanRefined(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

const formulatedJSON = "```json\n" + `{
  "sets": ["Products ($P$)"],
  "parameters": {"$p_i$": "Profit of product $i$ (\$/unit)"},
  "variables": {"$x_i$": "Units of product $i$"},
  "objective": {"type": "Maximize", "expression": "$\sum_{i \in P} p_i x_i$"},
  "constraints": ["$\sum_{i \in P} x_i \leq 100$ (Capacity)"]
}` + "\n```"

func TestFormulate(t *testing.T) {
	gen := &recordingGenerator{answers: map[string]string{formulateSystem: formulatedJSON}}
	e := newEngine(t, gen, nil, Config{})

	f, err := e.Formulate(context.Background(), "Maximize profit of products under capacity 100.", FormulateOptions{})
	if err != nil {
		t.Fatalf("Formulate() error: %v", err)
	}

	if f.Model.HasError() {
		t.Fatalf("model error: %s", f.Model.Error)
	}
	if f.Model.Objective.Expression != `$\sum_{i \in P} p_i x_i$` {
		t.Errorf("objective expression = %q", f.Model.Objective.Expression)
	}
	if f.Refined != "" {
		t.Errorf("Refined = %q without refinement", f.Refined)
	}
	if f.Outline != render.Outline(f.Model) || f.LaTeX != render.Document(f.Model) {
		t.Error("renderings do not match the normalized model")
	}
	if f.Usage.OutputTokens != 20 {
		t.Errorf("Usage = %+v", f.Usage)
	}
	if len(gen.requests) != 1 || !gen.requests[0].JSON {
		t.Errorf("requests = %+v, want one JSON request", gen.requests)
	}
}

func TestFormulate_WithRefinement(t *testing.T) {
	gen := &recordingGenerator{answers: map[string]string{
		refineSystem:    "A clear statement.",
		formulateSystem: `{"sets": ["I"]}`,
	}}
	e := newEngine(t, gen, nil, Config{})

	f, err := e.Formulate(context.Background(), "vague statement", FormulateOptions{Refine: true})
	if err != nil {
		t.Fatalf("Formulate() error: %v", err)
	}
	if f.Refined != "A clear statement." || f.Statement != "vague statement" {
		t.Errorf("statement = %q, refined = %q", f.Statement, f.Refined)
	}
	if len(gen.requests) != 2 || !strings.Contains(gen.requests[1].Prompt, "A clear statement.") {
		t.Error("formulation prompt does not use the refined statement")
	}
}

func TestFormulate_UnparseableOutput(t *testing.T) {
	gen := &recordingGenerator{answers: map[string]string{formulateSystem: "I cannot model this."}}
	e := newEngine(t, gen, nil, Config{})

	f, err := e.Formulate(context.Background(), "statement", FormulateOptions{})
	if err != nil {
		t.Fatalf("Formulate() error: %v", err)
	}
	if !f.Model.HasError() || f.Model.RawOutput != "I cannot model this." {
		t.Errorf("model = %+v, want parse error with raw output", f.Model)
	}
	if !strings.HasPrefix(f.Outline, "Error: ") {
		t.Errorf("Outline = %q, want error outline", f.Outline)
	}
}

func TestNormalize_WithoutGenerator(t *testing.T) {
	e := newEngine(t, nil, nil, Config{})

	m := e.Normalize("```json\n{\"sets\": [\"Plants ($P$)\"]}\n```")
	if m.HasError() {
		t.Fatalf("Normalize() error model: %s", m.Error)
	}
	if len(m.Sets) != 1 || m.Sets[0] != "Plants ($P$)" {
		t.Errorf("Sets = %v", m.Sets)
	}

	if m := e.Normalize(""); !m.HasError() {
		t.Error("empty input should produce an error model")
	}
}

func TestFormulate_GeneratorFailure(t *testing.T) {
	gen := &recordingGenerator{err: api.NewTooManyRequestsError("slow down")}
	e := newEngine(t, gen, nil, Config{})

	_, err := e.Formulate(context.Background(), "statement", FormulateOptions{})
	if apiErr := api.AsAPIError(err); apiErr == nil || apiErr.Type != api.ErrorTypeTooManyRequests {
		t.Errorf("Formulate() error = %v, want the generator's APIError", err)
	}
}

func TestGenerateCode(t *testing.T) {
	gen := &recordingGenerator{answers: map[string]string{codeSystem: "```python\nimport pulp\nprint(1)\n```"}}
	e := newEngine(t, gen, nil, Config{})

	code, err := e.GenerateCode(context.Background(), "--- SETS ---\n- I\n")
	if err != nil {
		t.Fatalf("GenerateCode() error: %v", err)
	}
	if code != "import pulp\nprint(1)" {
		t.Errorf("code = %q", code)
	}
	if temp := gen.requests[0].Temperature; temp == nil || *temp != 0.2 {
		t.Errorf("temperature = %v, want 0.2", temp)
	}
}

func TestGenerateCode_Empty(t *testing.T) {
	gen := &recordingGenerator{answers: map[string]string{codeSystem: "```python\n```"}}
	e := newEngine(t, gen, nil, Config{})

	_, err := e.GenerateCode(context.Background(), "outline")
	if apiErr := api.AsAPIError(err); apiErr == nil || apiErr.Type != api.ErrorTypeModelError {
		t.Errorf("GenerateCode() error = %v, want model_error", err)
	}
}

func TestExecute_DefaultTimeout(t *testing.T) {
	runner := &stubRunner{}
	e := newEngine(t, nil, runner, Config{ExecTimeout: 45 * time.Second})

	if _, err := e.Execute(context.Background(), "print(1)", 0); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if _, err := e.Execute(context.Background(), "print(1)", 5*time.Second); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(runner.timeouts) != 2 || runner.timeouts[0] != 45*time.Second || runner.timeouts[1] != 5*time.Second {
		t.Errorf("timeouts = %v, want [45s 5s]", runner.timeouts)
	}
}

func TestExecute_BoundsConcurrency(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{})}
	e := newEngine(t, nil, runner, Config{MaxConcurrentRuns: 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Execute(context.Background(), "first", time.Second)
	}()

	// Wait until the first run holds the slot.
	for {
		runner.mu.Lock()
		n := len(runner.timeouts)
		runner.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := e.Execute(ctx, "second", time.Second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v, want deadline exceeded while waiting", err)
	}

	close(runner.block)
	<-done
}
