// Package main implements the sb CLI tool.
package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr interface{ ExitCode() int }
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "sb",
	Short:        "Swarmboard - task ledger and live status for a five-terminal swarm",
	SilenceUsage: true,
}

var projectFlag string

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "P", "", "Project name or path (default: current directory)")
}
