package main

import (
	"fmt"

	"github.com/amonks/swarmboard/phase"
	"github.com/spf13/cobra"
)

var phaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Manage the phase-status store",
}

var phaseSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set a terminal's task, status or progress within a phase",
	Args:  cobra.NoArgs,
	RunE:  runPhaseSet,
}

var (
	phaseSetNumber   int
	phaseSetTerminal int
	phaseSetTask     string
	phaseSetStatus   phase.Status
	phaseSetProgress int
)

func init() {
	rootCmd.AddCommand(phaseCmd)
	phaseCmd.AddCommand(phaseSetCmd)

	phaseSetCmd.Flags().IntVar(&phaseSetNumber, "phase", 0, "Phase number (default: current phase)")
	phaseSetCmd.Flags().VarP(newTerminalValue(&phaseSetTerminal), "terminal", "t", "Terminal to update")
	phaseSetCmd.Flags().StringVar(&phaseSetTask, "task", "", "Assignment description")
	phaseSetCmd.Flags().VarP(&phaseStatusValue{value: &phaseSetStatus}, "status", "s", "Status (not_started, waiting, in_progress, completed)")
	phaseSetCmd.Flags().IntVarP(&phaseSetProgress, "progress", "p", 0, "Progress percentage (clamped to 0-100)")
	_ = phaseSetCmd.MarkFlagRequired("terminal")
}

func runPhaseSet(cmd *cobra.Command, _ []string) error {
	if !hasChangedFlags(cmd, "task", "status", "progress") {
		return fmt.Errorf("at least one of --task, --status or --progress is required")
	}
	p, _, err := resolveProject()
	if err != nil {
		return err
	}
	store := phase.Open(p)

	number := phaseSetNumber
	if number == 0 {
		file, err := store.Load()
		if err != nil {
			return err
		}
		current, _ := file.Current()
		number = current.Number
	}

	var update phase.Update
	if cmd.Flags().Changed("task") {
		update.Task = &phaseSetTask
	}
	if cmd.Flags().Changed("status") {
		update.Status = &phaseSetStatus
	}
	if cmd.Flags().Changed("progress") {
		update.Progress = &phaseSetProgress
	}
	assignment, err := store.SetAssignment(number, phaseSetTerminal, update)
	if err != nil {
		return err
	}
	fmt.Printf("Phase %d terminal %d: %s %d%% %s\n", number, phaseSetTerminal, assignment.Status, assignment.Progress, assignment.Task)
	return nil
}
