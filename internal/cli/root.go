// Package cli wires the mission-control commands.
package cli

import (
	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "mission-control",
	Short: "Project tracking backend with an LLM telemetry dashboard",
	Long: "mission-control — a REST backend for projects, epics, stories and tasks,\n" +
		"with backlog ordering, task-driven story status derivation, LLM usage\n" +
		"telemetry import and a filesystem workflow board.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "mission-control.yaml", "path to the config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statusCmd)
}
