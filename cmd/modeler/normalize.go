package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhuss/ormodeler/pkg/normalize"
)

func newNormalizeCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "normalize [file]",
		Short: "Recover a structured model from raw generation output",
		Long: `normalize reads raw text, typically the answer of a language model asked
for a JSON model, repairs fences, LaTeX escapes and currency annotations,
and prints the recovered model as JSON. When nothing can be recovered the
printed model carries "error" and "raw_output" fields.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			m := normalize.Normalize(raw)
			data, err := json.MarshalIndent(m, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding model: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))

			if m.HasError() {
				warnColor.Fprintf(cmd.ErrOrStderr(), "no model recovered: %s\n", m.Error)
				if strict {
					return errExecutionFailed
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with status 1 when no model could be recovered")
	return cmd
}
