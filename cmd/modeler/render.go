package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhuss/ormodeler/pkg/api"
	"github.com/rhuss/ormodeler/pkg/normalize"
	"github.com/rhuss/ormodeler/pkg/render"
)

func newRenderCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a model as a LaTeX document or a plain-text outline",
		Long: `render reads a model, either clean JSON or raw generation output, and
prints it as a standalone LaTeX document or as the plain-text outline used
for code generation.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != api.FormatLaTeX && format != api.FormatOutline {
				return fmt.Errorf("--format must be %q or %q, got %q", api.FormatLaTeX, api.FormatOutline, format)
			}
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			m := normalize.Normalize(raw)
			if m.HasError() {
				warnColor.Fprintf(cmd.ErrOrStderr(), "no model recovered: %s\n", m.Error)
			}

			if format == api.FormatLaTeX {
				fmt.Fprintln(cmd.OutOrStdout(), render.Document(m))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), render.Outline(m))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", api.FormatOutline, "Output format: latex or outline")
	return cmd
}
