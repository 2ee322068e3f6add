package main

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/buildonomy/noet-core/internal/config"
)

// newInitCmd implements "noet init <dir> --id --title --summary" (spec.md
// §6): writes dir/network.toml, the config file that marks dir as a
// network root, and records it in the sidecar config.Provider.
func newInitCmd() *cobra.Command {
	var id, title, summary string

	cmd := &cobra.Command{
		Use:   "init <dir>",
		Short: "mark a directory as a network root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("init: %w", err)
			}
			if id == "" {
				id = filepath.Base(dir)
			}
			if title == "" {
				title = id
			}

			body := struct {
				ID      string `toml:"id"`
				Title   string `toml:"title"`
				Summary string `toml:"summary,omitempty"`
			}{ID: id, Title: title, Summary: summary}
			data, err := toml.Marshal(body)
			if err != nil {
				return fmt.Errorf("init: encode network config: %w", err)
			}

			cfgPath := filepath.Join(dir, "network.toml")
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("init: %s already marks a network root", cfgPath)
			}
			if err := os.WriteFile(cfgPath, data, 0o644); err != nil {
				return fmt.Errorf("init: %w", err)
			}

			provider := config.NewTomlProvider(sidecarPath(dir))
			nets, err := provider.GetNetworks()
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			nets = append(nets, config.NetworkRecord{Path: dir, ID: id, Title: title, Summary: summary})
			if err := provider.SetNetworks(nets); err != nil {
				return fmt.Errorf("init: %w", err)
			}
			if err := provider.SetFocus(dir); err != nil {
				return fmt.Errorf("init: %w", err)
			}

			fmt.Printf("initialized network %q at %s\n", id, cfgPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "network identifier (default: directory name)")
	cmd.Flags().StringVar(&title, "title", "", "network display title (default: id)")
	cmd.Flags().StringVar(&summary, "summary", "", "network summary")
	return cmd
}

// sidecarPath is where a session's network/focus records persist:
// $HOME/.config/noet/config.toml, matching the pack's own CLI convention.
// Deliberately outside any watched tree so the scheduler never mistakes it
// for a document.
func sidecarPath(string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "noet", "config.toml")
}
