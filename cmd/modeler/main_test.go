package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/rhuss/ormodeler/pkg/api"
	"github.com/rhuss/ormodeler/pkg/engine"
	"github.com/rhuss/ormodeler/pkg/normalize"
	"github.com/rhuss/ormodeler/pkg/provider"
	"github.com/rhuss/ormodeler/pkg/render"
	"github.com/rhuss/ormodeler/pkg/sandbox"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const sampleModel = "```json\n" + `{
  "sets": ["Products ($P$)"],
  "parameters": {"$p_i$": "Profit of product $i$"},
  "variables": {"$x_i$": "Units of product $i$"},
  "objective": {"type": "maximize", "expression": "$\sum_i p_i x_i$"},
  "constraints": ["$x_i \geq 0$"]
}` + "\n```"

func runCLI(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestNormalizeCmd(t *testing.T) {
	stdout, stderr, err := runCLI(t, sampleModel, "normalize")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !strings.Contains(stdout, `"sets": [`) || !strings.Contains(stdout, `"$p_i$": "Profit of product $i$"`) {
		t.Errorf("stdout = %s", stdout)
	}
	if stderr != "" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestNormalizeCmd_Unrecoverable(t *testing.T) {
	stdout, stderr, err := runCLI(t, "I could not build a model.", "normalize")
	if err != nil {
		t.Fatalf("normalize without --strict should succeed: %v", err)
	}
	if !strings.Contains(stdout, `"raw_output": "I could not build a model."`) {
		t.Errorf("stdout = %s", stdout)
	}
	if !strings.Contains(stderr, "no model recovered") {
		t.Errorf("stderr = %q", stderr)
	}

	_, _, err = runCLI(t, "I could not build a model.", "normalize", "--strict")
	if !errors.Is(err, errExecutionFailed) {
		t.Errorf("--strict error = %v, want errExecutionFailed", err)
	}
}

func TestNormalizeCmd_FileArgument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answer.txt")
	if err := os.WriteFile(path, []byte(sampleModel), 0o644); err != nil {
		t.Fatal(err)
	}
	stdout, _, err := runCLI(t, "", "normalize", path)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !strings.Contains(stdout, "Products ($P$)") {
		t.Errorf("stdout = %s", stdout)
	}

	if _, _, err := runCLI(t, "", "normalize", filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestRenderCmd(t *testing.T) {
	m := normalize.Normalize(sampleModel)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"default outline", []string{"render"}, render.Outline(m) + "\n"},
		{"outline", []string{"render", "--format", "outline"}, render.Outline(m) + "\n"},
		{"latex", []string{"render", "-f", "latex"}, render.Document(m) + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := runCLI(t, sampleModel, tt.args...)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if stdout != tt.want {
				t.Errorf("stdout =\n%s\nwant\n%s", stdout, tt.want)
			}
		})
	}
}

func TestRenderCmd_InvalidFormat(t *testing.T) {
	_, _, err := runCLI(t, sampleModel, "render", "--format", "pdf")
	if err == nil || !strings.Contains(err.Error(), "--format must be") {
		t.Errorf("error = %v", err)
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}
}

func TestExecCmd(t *testing.T) {
	requireShell(t)

	stdout, stderr, err := runCLI(t, "echo solved", "exec", "--interpreter", "sh")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if stdout != "solved\n" {
		t.Errorf("stdout = %q", stdout)
	}
	if !strings.HasPrefix(stderr, "success in ") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestExecCmd_Failures(t *testing.T) {
	requireShell(t)

	tests := []struct {
		name       string
		code       string
		args       []string
		wantStderr string
	}{
		{"nonzero", "echo infeasible >&2\nexit 2", nil, "nonzero_exit (exit code 2)"},
		{"timeout", "sleep 10", []string{"--timeout", "300ms"}, "timeout: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"exec", "--interpreter", "sh"}, tt.args...)
			_, stderr, err := runCLI(t, tt.code, args...)
			if !errors.Is(err, errExecutionFailed) {
				t.Fatalf("error = %v, want errExecutionFailed", err)
			}
			if !strings.Contains(stderr, tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.wantStderr)
			}
		})
	}
}

func TestExecCmd_JSON(t *testing.T) {
	requireShell(t)

	stdout, _, err := runCLI(t, "exit 3", "exec", "--interpreter", "sh", "--json")
	if !errors.Is(err, errExecutionFailed) {
		t.Fatalf("error = %v, want errExecutionFailed", err)
	}
	if !strings.Contains(stdout, `"exit_reason": "nonzero_exit"`) || !strings.Contains(stdout, `"exit_code": 3`) {
		t.Errorf("stdout = %s", stdout)
	}
}

func TestExecCmd_SpawnFailure(t *testing.T) {
	_, stderr, err := runCLI(t, "print(1)", "exec", "--interpreter", "ormodeler-no-such-interpreter")
	if !errors.Is(err, errExecutionFailed) {
		t.Fatalf("error = %v, want errExecutionFailed", err)
	}
	if !strings.HasPrefix(stderr, "spawn_failure: ") {
		t.Errorf("stderr = %q", stderr)
	}
}

type fakeFormulator struct {
	formulation *engine.Formulation
	formErr     error
	code        string
	result      *sandbox.Result
	gotOutline  string
	gotTimeout  time.Duration
	executed    bool
}

func (f *fakeFormulator) Formulate(ctx context.Context, statement string, opts engine.FormulateOptions) (*engine.Formulation, error) {
	return f.formulation, f.formErr
}

func (f *fakeFormulator) GenerateCode(ctx context.Context, outline string) (string, error) {
	f.gotOutline = outline
	return f.code, nil
}

func (f *fakeFormulator) Execute(ctx context.Context, code string, timeout time.Duration) (*sandbox.Result, error) {
	f.executed, f.gotTimeout = true, timeout
	return f.result, nil
}

func runFormulateCLI(t *testing.T, f formulator, opts *formulateOptions) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newFormulateCmd(&rootOptions{})
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetContext(context.Background())
	err = runFormulate(cmd, f, "maximize profit", opts)
	return out.String(), errOut.String(), err
}

func TestRunFormulate(t *testing.T) {
	m := normalize.Normalize(sampleModel)
	form := &engine.Formulation{
		Model:   m,
		LaTeX:   render.Document(m),
		Outline: render.Outline(m),
		Usage:   provider.Usage{InputTokens: 10, OutputTokens: 20},
	}

	t.Run("outline only", func(t *testing.T) {
		f := &fakeFormulator{formulation: form}
		stdout, stderr, err := runFormulateCLI(t, f, &formulateOptions{})
		if err != nil {
			t.Fatalf("runFormulate: %v", err)
		}
		if stdout != form.Outline+"\n" {
			t.Errorf("stdout = %q", stdout)
		}
		if !strings.Contains(stderr, "model formulated (10 input, 20 output tokens)") {
			t.Errorf("stderr = %q", stderr)
		}
		if f.gotOutline != "" || f.executed {
			t.Error("code generation ran without --code")
		}
	})

	t.Run("latex", func(t *testing.T) {
		stdout, _, err := runFormulateCLI(t, &fakeFormulator{formulation: form}, &formulateOptions{latex: true})
		if err != nil {
			t.Fatalf("runFormulate: %v", err)
		}
		if stdout != form.LaTeX+"\n" {
			t.Errorf("stdout = %q", stdout)
		}
	})

	t.Run("run", func(t *testing.T) {
		f := &fakeFormulator{
			formulation: form,
			code:        "print('Optimal')",
			result:      &sandbox.Result{ExitReason: sandbox.ExitSuccess, Stdout: "Optimal\n"},
		}
		stdout, _, err := runFormulateCLI(t, f, &formulateOptions{run: true, timeout: 5 * time.Second})
		if err != nil {
			t.Fatalf("runFormulate: %v", err)
		}
		if f.gotOutline != form.Outline {
			t.Errorf("code generated from %q", f.gotOutline)
		}
		if !f.executed || f.gotTimeout != 5*time.Second {
			t.Errorf("executed=%v timeout=%s", f.executed, f.gotTimeout)
		}
		if !strings.Contains(stdout, "print('Optimal')\n") || !strings.HasSuffix(stdout, "Optimal\n") {
			t.Errorf("stdout = %q", stdout)
		}
	})
}

func TestRunFormulate_Failures(t *testing.T) {
	t.Run("unrecovered model", func(t *testing.T) {
		m := normalize.Normalize("no model")
		f := &fakeFormulator{formulation: &engine.Formulation{Model: m, Outline: render.Outline(m)}}
		_, stderr, err := runFormulateCLI(t, f, &formulateOptions{code: true})
		if !errors.Is(err, errExecutionFailed) {
			t.Fatalf("error = %v, want errExecutionFailed", err)
		}
		if f.gotOutline != "" {
			t.Error("code generated for an error model")
		}
		if !strings.Contains(stderr, "no model recovered") {
			t.Errorf("stderr = %q", stderr)
		}
	})

	t.Run("service error", func(t *testing.T) {
		f := &fakeFormulator{formErr: api.NewUnavailableError("generation service not configured")}
		_, _, err := runFormulateCLI(t, f, &formulateOptions{})
		if api.AsAPIError(err) == nil {
			t.Errorf("error = %v, want the service's APIError", err)
		}
	})
}
