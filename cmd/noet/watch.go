package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/buildonomy/noet-core/compiler"
	"github.com/buildonomy/noet-core/mdcodec"
)

// newWatchCmd implements "noet watch <path> [--write] [--html-output DIR]
// [--serve --port]" (spec.md §6).
func newWatchCmd() *cobra.Command {
	var write bool
	var htmlOutput string
	var serve bool
	var port int

	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "watch a tree and reconcile it on every change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := compiler.New(args[0], compiler.NewCodecMap(mdcodec.New()),
				compiler.WithWriteBack(write),
				compiler.WithHTMLOutput(htmlOutput),
				compiler.WithLogger(rootLogger()),
			)
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := c.RunToFixedPoint(ctx, func(r compiler.StepResult) {
				for _, d := range r.Diagnostics {
					fmt.Printf("%s: %s\n", r.Path, formatDiagnostic(d))
				}
			}); err != nil {
				return fmt.Errorf("watch: initial parse: %w", err)
			}

			w, err := compiler.NewWatcher(c)
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}

			if serve {
				go serveLiveReload(c, port)
			}

			fmt.Printf("watching %s\n", args[0])
			return w.Run(ctx, c.Publish)
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "rewrite source files with resolved references")
	cmd.Flags().StringVar(&htmlOutput, "html-output", "", "directory to render HTML into")
	cmd.Flags().BoolVar(&serve, "serve", false, "expose a live-reload HTTP endpoint")
	cmd.Flags().IntVar(&port, "port", 8080, "port for --serve")
	return cmd
}

// serveLiveReload mounts compiler.ServeMux under a chi router (spec.md §6's
// "watch --serve --port"; the core exposes the mux, chi lives only here).
func serveLiveReload(c *compiler.Compiler, port int) {
	r := chi.NewRouter()
	r.Mount("/", c.ServeMux())
	addr := fmt.Sprintf(":%d", port)
	logrusLog := rootLogger()
	logrusLog.WithField("addr", addr).Info("serving live-reload endpoint")
	if err := http.ListenAndServe(addr, r); err != nil {
		logrusLog.WithError(err).Error("live-reload server stopped")
	}
}
