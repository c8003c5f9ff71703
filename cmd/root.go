// Package cmd implements the bridge's command-line surface: a long
// running `serve` receiver and a `version` command, wired with cobra.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "bridge",
		Short: "OTLP telemetry bridge for the Claude Code CLI",
		Long:  "bridge ingests OTLP HTTP/JSON logs and metrics from the Claude Code CLI and projects them into an observability backend as traces, generations, events and scores.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				os.Setenv("BRIDGE_CONFIG_FILE", configPath)
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to an optional TOML config file (overrides BRIDGE_CONFIG_FILE)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newVersionCommand())

	return root
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
