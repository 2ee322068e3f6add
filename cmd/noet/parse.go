package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buildonomy/noet-core/compiler"
	"github.com/buildonomy/noet-core/graphbuilder"
	"github.com/buildonomy/noet-core/mdcodec"
)

// formatDiagnostic renders a graphbuilder.Diagnostic as one log line; the
// interface itself carries no Stringer, only an unexported marker method.
func formatDiagnostic(d graphbuilder.Diagnostic) string {
	switch v := d.(type) {
	case graphbuilder.UnresolvedReference:
		return fmt.Sprintf("unresolved reference from %s (index %d, kind %v)", v.SelfPath, v.Index, v.Kind)
	case graphbuilder.ParseError:
		return fmt.Sprintf("parse error at %s: %v", v.Path, v.Err)
	case graphbuilder.Warning:
		return v.Message
	default:
		return fmt.Sprintf("%+v", d)
	}
}

// newParseCmd implements "noet parse <path> [--write] [--force]
// [--html-output DIR] [--cdn] [--base-url URL]" (spec.md §6).
func newParseCmd() *cobra.Command {
	var write, force, cdn bool
	var htmlOutput, baseURL string

	cmd := &cobra.Command{
		Use:   "parse <path>",
		Short: "parse a tree once and report the resulting diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := compiler.New(args[0], compiler.NewCodecMap(mdcodec.New()),
				compiler.WithWriteBack(write),
				compiler.WithForce(force),
				compiler.WithHTMLOutput(htmlOutput),
				compiler.WithBaseURL(resolveBaseURL(baseURL)),
				compiler.WithCDN(cdn),
				compiler.WithLogger(rootLogger()),
			)
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}

			diagCount := 0
			stats, err := c.RunToFixedPoint(context.Background(), func(r compiler.StepResult) {
				for _, d := range r.Diagnostics {
					diagCount++
					fmt.Printf("%s: %s\n", r.Path, formatDiagnostic(d))
				}
			})
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}

			fmt.Printf("processed %d paths, %d diagnostics reported\n", stats.ProcessedCount, diagCount)
			if stats.ReparseQueueLength > 0 {
				return fmt.Errorf("parse: %d paths still have unresolved references", stats.ReparseQueueLength)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "rewrite source files with resolved references")
	cmd.Flags().BoolVar(&force, "force", false, "reconcile every path regardless of prior state")
	cmd.Flags().StringVar(&htmlOutput, "html-output", "", "directory to render HTML into")
	cmd.Flags().BoolVar(&cdn, "cdn", false, "prefer CDN-hosted asset references when rendering")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "base URL resolved links render against")
	return cmd
}
