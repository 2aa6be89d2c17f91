package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhuss/ormodeler/pkg/sandbox"
)

func newExecCmd() *cobra.Command {
	var (
		timeout     time.Duration
		interpreter string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "exec [file]",
		Short: "Run solver code in a sandboxed child process",
		Long: `exec writes the code to a fresh working directory, runs it with the
interpreter and kills the whole process group when the timeout expires.
The exit status is 1 unless the code ran to completion with status 0.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			argv := strings.Fields(interpreter)
			if len(argv) == 0 {
				return fmt.Errorf("--interpreter must not be empty")
			}

			executor := sandbox.NewExecutor(sandbox.Config{Interpreter: argv})
			r := executor.Execute(cmd.Context(), code, timeout)

			if !asJSON {
				return printResult(cmd, r)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(r); err != nil {
				return err
			}
			if r.Failed {
				return errExecutionFailed
			}
			return nil
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", sandbox.DefaultTimeout, "Wall-clock limit for the run")
	cmd.Flags().StringVar(&interpreter, "interpreter", "python3", "Interpreter command line; the script path is appended")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	return cmd
}
