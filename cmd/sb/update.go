package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amonks/swarmboard/internal/config"
	"github.com/amonks/swarmboard/ledger"
	"github.com/amonks/swarmboard/project"
	"github.com/amonks/swarmboard/reconcile"
	"github.com/amonks/swarmboard/swarm"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update [task text...]",
	Short: "Mark a task complete (or reopen it)",
	Long: `Mark a task complete by fuzzy text match within one terminal's document,
or by task ID prefix across all documents.

  sb update --terminal 2 implement user login page
  sb update --id cnoz --reopen`,
	RunE: runUpdate,
}

var (
	updateTerminal int
	updateID       string
	updateReopen   bool
	updateAddr     string
)

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().VarP(newTerminalValue(&updateTerminal), "terminal", "t", "Terminal whose document holds the task")
	updateCmd.Flags().StringVar(&updateID, "id", "", "Task ID or unique ID prefix")
	updateCmd.Flags().BoolVar(&updateReopen, "reopen", false, "Mark the task incomplete instead")
	updateCmd.Flags().StringVar(&updateAddr, "addr", "", "Send the update through a running swarm server")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	completed := !updateReopen

	if updateID != "" {
		if text != "" || updateTerminal != 0 {
			return fmt.Errorf("--id cannot be combined with --terminal or task text")
		}
		if updateAddr != "" {
			return fmt.Errorf("--id cannot be used with --addr")
		}
		p, cfg, err := resolveProject()
		if err != nil {
			return err
		}
		task, err := newMerger(p, cfg).UpdateByID(cmd.Context(), updateID, completed)
		if err != nil {
			if errors.Is(err, reconcile.ErrTaskNotFound) {
				return exitError{code: exitNoMatch, err: err}
			}
			return err
		}
		fmt.Printf("%s %s: %s\n", markVerb(completed), task.ID, task.Text)
		return nil
	}

	if updateTerminal == 0 {
		return fmt.Errorf("--terminal is required when matching by text")
	}
	if text == "" {
		return fmt.Errorf("task text is required")
	}
	updated, err := updateByText(cmd.Context(), text, completed)
	if err != nil {
		return err
	}
	if !updated {
		return exitError{code: exitNoMatch, err: fmt.Errorf("no task in terminal %d matches %q", updateTerminal, text)}
	}
	fmt.Printf("%s task in terminal %d matching %q\n", markVerb(completed), updateTerminal, text)
	return nil
}

func updateByText(ctx context.Context, text string, completed bool) (bool, error) {
	if updateAddr != "" {
		addr, err := swarm.ResolveAddr(nil, updateAddr)
		if err != nil {
			return false, err
		}
		return swarm.NewClient(addr).Update(ctx, updateTerminal, text, completed)
	}
	p, cfg, err := resolveProject()
	if err != nil {
		return false, err
	}
	return newMerger(p, cfg).UpdateStatus(ctx, updateTerminal, text, completed)
}

func newMerger(p project.Project, cfg *config.Config) *reconcile.Merger {
	return reconcile.NewMerger(ledger.Open(p), reconcile.Options{
		DuplicateThreshold: cfg.Ledger.DuplicateThreshold,
		UpdateThreshold:    cfg.Ledger.UpdateThreshold,
	})
}

func markVerb(completed bool) string {
	if completed {
		return "Completed"
	}
	return "Reopened"
}
