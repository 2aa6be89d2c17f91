package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rhuss/ormodeler/pkg/sandbox"
)

// errExecutionFailed is returned after a failed run has already been
// reported, so main only sets the exit status.
var errExecutionFailed = errors.New("execution failed")

type rootOptions struct {
	configPath string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "modeler",
		Short: "Turn optimization problem text into models, documents and solver runs",
		Long: `modeler works with structured optimization models: it recovers them from
raw generation output, renders them as LaTeX or a plain-text outline, runs
solver code in a sandboxed child process and, when a generation service is
configured, formulates models from natural-language problem statements.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML config file (default: ORMODELER_CONFIG or ./config.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored status output")

	cmd.AddCommand(
		newNormalizeCmd(),
		newRenderCmd(),
		newExecCmd(),
		newFormulateCmd(opts),
	)
	return cmd
}

// readInput returns the contents of the file named by the first argument,
// or standard input when there is none or it is "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
)

// printResult writes the output streams of a run and a status line. It
// returns errExecutionFailed for any outcome other than success.
func printResult(cmd *cobra.Command, r *sandbox.Result) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	fmt.Fprint(out, r.Stdout)
	if r.ExitReason != sandbox.ExitSpawnFailure {
		fmt.Fprint(errOut, r.Stderr)
	}
	if r.Truncated {
		warnColor.Fprintln(errOut, "output was truncated")
	}

	if !r.Failed {
		okColor.Fprintf(errOut, "%s in %s\n", r.ExitReason, r.Duration())
		return nil
	}
	switch r.ExitReason {
	case sandbox.ExitNonzero:
		failColor.Fprintf(errOut, "%s (exit code %d) in %s\n", r.ExitReason, r.ExitCode, r.Duration())
	default:
		failColor.Fprintf(errOut, "%s: %s\n", r.ExitReason, r.Diagnostic)
	}
	return errExecutionFailed
}
