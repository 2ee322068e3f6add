// Command noet is the CLI surface for noet-core (spec.md §6): init a
// network root, parse a tree once, or watch it for changes, with an
// optional live-reload serve endpoint.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
