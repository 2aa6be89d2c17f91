package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rhuss/ormodeler/pkg/api"
	"github.com/rhuss/ormodeler/pkg/debug"
	"github.com/rhuss/ormodeler/pkg/model"
	"github.com/rhuss/ormodeler/pkg/normalize"
	"github.com/rhuss/ormodeler/pkg/observability"
	"github.com/rhuss/ormodeler/pkg/provider"
	"github.com/rhuss/ormodeler/pkg/render"
	"github.com/rhuss/ormodeler/pkg/sandbox"
)

// Engine ties the generation service, the normalizer, the renderers and
// the sandbox together.
type Engine struct {
	gen        provider.Generator
	runner     sandbox.Runner
	normalizer *normalize.Normalizer
	runs       *semaphore.Weighted
	cfg        Config
}

// Formulation is the result of turning a problem statement into a model.
type Formulation struct {
	Statement string
	// Refined is the rephrased statement, empty when refinement was not
	// requested.
	Refined string
	Model   *model.Model
	LaTeX   string
	Outline string
	Usage   provider.Usage
}

// FormulateOptions controls Formulate.
type FormulateOptions struct {
	// Refine rephrases the statement before formulating it.
	Refine bool
}

// New creates an Engine. The runner must not be nil. The generator can be
// nil; Refine, Formulate and GenerateCode then report the feature as
// unavailable.
func New(gen provider.Generator, runner sandbox.Runner, cfg Config) (*Engine, error) {
	if runner == nil {
		return nil, fmt.Errorf("engine: runner must not be nil")
	}
	n := cfg.Normalizer
	if n == nil {
		n = normalize.New()
	}
	return &Engine{
		gen:        gen,
		runner:     runner,
		normalizer: n,
		runs:       semaphore.NewWeighted(cfg.maxConcurrentRuns()),
		cfg:        cfg,
	}, nil
}

// HasGenerator reports whether a generation service is configured.
func (e *Engine) HasGenerator() bool {
	return e.gen != nil
}

// Normalize converts raw generation output into a model with the engine's
// normalizer.
func (e *Engine) Normalize(raw string) *model.Model {
	return e.normalizer.Normalize(raw)
}

// Refine asks the generation service to rephrase statement for modeling.
// A generation failure is logged and the original statement returned.
func (e *Engine) Refine(ctx context.Context, statement string) (string, error) {
	if err := e.requireGenerator("statement", statement); err != nil {
		return "", err
	}

	resp, err := e.gen.Generate(ctx, &provider.Request{
		System: refineSystem,
		Prompt: refinePrompt(statement),
	})
	if err != nil {
		slog.Warn("statement refinement failed, keeping original", "error", err)
		return statement, nil
	}

	refined := cleanRefined(resp.Text)
	if refined == "" {
		debug.Log("engine", "refinement returned empty text, keeping original")
		return statement, nil
	}
	debug.Log("engine", "statement refined",
		"original_len", len(statement),
		"refined_len", len(refined),
	)
	return refined, nil
}

// cleanRefined removes the echoed prompt label and a single pair of
// surrounding double quotes.
func cleanRefined(text string) string {
	text = strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(text, refinedLabel); ok {
		text = strings.TrimSpace(rest)
	}
	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) && strings.Count(text, `"`) == 2 {
		text = text[1 : len(text)-1]
	}
	return text
}

// Formulate turns statement into a model and renders it. Only an invalid
// statement or a generation failure are returned as errors; unparseable
// output is reported in Formulation.Model.Error.
func (e *Engine) Formulate(ctx context.Context, statement string, opts FormulateOptions) (*Formulation, error) {
	if err := e.requireGenerator("statement", statement); err != nil {
		return nil, err
	}

	f := &Formulation{Statement: statement}
	prompt := statement
	if opts.Refine {
		refined, err := e.Refine(ctx, statement)
		if err != nil {
			return nil, err
		}
		f.Refined = refined
		prompt = refined
	}

	resp, err := e.gen.Generate(ctx, &provider.Request{
		System: formulateSystem,
		Prompt: formulatePrompt(prompt),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("formulate: %w", err)
	}

	f.Model = e.normalizer.Normalize(resp.Text)
	f.LaTeX = render.Document(f.Model)
	f.Outline = render.Outline(f.Model)
	f.Usage = resp.Usage

	slog.Info("model formulated",
		"parse_error", f.Model.Error != "",
		"constraints", len(f.Model.Constraints),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return f, nil
}

// GenerateCode asks the generation service for solver code implementing
// the model described by outline, and strips markdown fences from it.
func (e *Engine) GenerateCode(ctx context.Context, outline string) (string, error) {
	if err := e.requireGenerator("outline", outline); err != nil {
		return "", err
	}

	resp, err := e.gen.Generate(ctx, &provider.Request{
		System:      codeSystem,
		Prompt:      codePrompt(outline),
		Temperature: e.cfg.codeTemperature(),
	})
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	code := normalize.StripCodeFence(resp.Text)
	if code == "" {
		return "", api.NewModelError("backend returned no code")
	}
	debug.Log("engine", "code generated", "bytes", len(code))
	return code, nil
}

// Execute runs code in the sandbox. At most Config.MaxConcurrentRuns
// executions run at once; the error is non-nil only when ctx ends while
// waiting for a slot. Execution failures are reported in the Result.
func (e *Engine) Execute(ctx context.Context, code string, timeout time.Duration) (*sandbox.Result, error) {
	if timeout <= 0 {
		timeout = e.cfg.ExecTimeout
	}

	waitStart := time.Now()
	if err := e.runs.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for sandbox slot: %w", err)
	}
	defer e.runs.Release(1)

	observability.SandboxActive.Inc()
	defer observability.SandboxActive.Dec()

	if wait := time.Since(waitStart); wait > 10*time.Millisecond {
		debug.Log("engine", "waited for sandbox slot", "wait_ms", wait.Milliseconds())
	}

	return e.runner.Execute(ctx, code, timeout), nil
}

// requireGenerator validates text and checks that a generator is set.
func (e *Engine) requireGenerator(param, text string) error {
	if strings.TrimSpace(text) == "" {
		return api.NewInvalidRequestError(param, param+" is required")
	}
	if e.gen == nil {
		return api.NewUnavailableError("no generation provider configured")
	}
	return nil
}
