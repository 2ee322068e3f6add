package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCmd builds the noet command tree: init, parse, watch (spec.md §6).
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "noet",
		Short:         "compile a tree of Markdown documents into a belief graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	viper.SetEnvPrefix("NOET")
	viper.AutomaticEnv()

	root.AddCommand(newInitCmd())
	root.AddCommand(newParseCmd())
	root.AddCommand(newWatchCmd())
	return root
}

// rootLogger returns the shared structured logger every subcommand uses,
// matching spec.md's "Warn on diagnostics, Error on invariant failures"
// levels via logrus.
func rootLogger() *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}

// resolveBaseURL applies spec.md §6's "NOET_BASE_URL overrides --base-url"
// rule.
func resolveBaseURL(flagValue string) string {
	if env := viper.GetString("BASE_URL"); env != "" {
		return env
	}
	return flagValue
}
