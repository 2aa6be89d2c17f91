package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhuss/ormodeler/pkg/config"
	"github.com/rhuss/ormodeler/pkg/debug"
	"github.com/rhuss/ormodeler/pkg/engine"
	"github.com/rhuss/ormodeler/pkg/provider/openai"
	"github.com/rhuss/ormodeler/pkg/sandbox"
)

type formulateOptions struct {
	refine  bool
	latex   bool
	code    bool
	run     bool
	timeout time.Duration
}

func newFormulateCmd(root *rootOptions) *cobra.Command {
	opts := &formulateOptions{}

	cmd := &cobra.Command{
		Use:   "formulate [file]",
		Short: "Formulate an optimization model from a problem statement",
		Long: `formulate sends a natural-language problem statement to the configured
generation service and prints the resulting model outline. With --code it
also generates PuLP solver code, and with --run it executes that code in
the sandbox. The generation service is taken from the config file and
ORMODELER_PROVIDER_* variables.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			statement, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			eng, err := newCLIEngine(root.configPath)
			if err != nil {
				return err
			}
			return runFormulate(cmd, eng, statement, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.refine, "refine", false, "Rephrase the statement before formulating it")
	cmd.Flags().BoolVar(&opts.latex, "latex", false, "Print the LaTeX document instead of the outline")
	cmd.Flags().BoolVar(&opts.code, "code", false, "Generate solver code from the model")
	cmd.Flags().BoolVar(&opts.run, "run", false, "Generate solver code and execute it (implies --code)")
	cmd.Flags().DurationVarP(&opts.timeout, "timeout", "t", 0, "Wall-clock limit for --run (default: sandbox.default_timeout)")
	return cmd
}

func newCLIEngine(configPath string) (*engine.Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level)

	if cfg.Provider.Type != "openai" {
		return nil, fmt.Errorf("no generation service configured: set provider.type to \"openai\"")
	}
	gen := openai.New(openai.Config{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey,
		Model:       cfg.Provider.Model,
		Temperature: cfg.Provider.Temperature,
		MaxTokens:   cfg.Provider.MaxTokens,
		Timeout:     cfg.Provider.Timeout,
	})

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

	return engine.New(gen, runner, engine.Config{ExecTimeout: cfg.Sandbox.DefaultTimeout})
}

// formulator is the part of the engine the formulate command drives.
type formulator interface {
	Formulate(ctx context.Context, statement string, opts engine.FormulateOptions) (*engine.Formulation, error)
	GenerateCode(ctx context.Context, outline string) (string, error)
	Execute(ctx context.Context, code string, timeout time.Duration) (*sandbox.Result, error)
}

func runFormulate(cmd *cobra.Command, f formulator, statement string, opts *formulateOptions) error {
	ctx := cmd.Context()
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	form, err := f.Formulate(ctx, statement, engine.FormulateOptions{Refine: opts.refine})
	if err != nil {
		return err
	}
	if form.Refined != "" {
		warnColor.Fprintln(errOut, "refined statement:")
		fmt.Fprintln(errOut, form.Refined)
	}

	if opts.latex {
		fmt.Fprintln(out, form.LaTeX)
	} else {
		fmt.Fprintln(out, form.Outline)
	}
	if form.Model.HasError() {
		failColor.Fprintf(errOut, "no model recovered: %s\n", form.Model.Error)
		return errExecutionFailed
	}
	okColor.Fprintf(errOut, "model formulated (%d input, %d output tokens)\n", form.Usage.InputTokens, form.Usage.OutputTokens)

	if !opts.code && !opts.run {
		return nil
	}
	code, err := f.GenerateCode(ctx, form.Outline)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, code)
	if !opts.run {
		return nil
	}

	r, err := f.Execute(ctx, code, opts.timeout)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	return printResult(cmd, r)
}
