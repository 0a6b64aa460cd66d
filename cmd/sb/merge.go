package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/amonks/swarmboard/internal/editor"
	"github.com/amonks/swarmboard/internal/ui"
	"github.com/amonks/swarmboard/reconcile"
	"github.com/amonks/swarmboard/swarm"
	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge [request...]",
	Short: "Add new work to the terminals, skipping duplicates",
	Long: `Extract tasks from a free-form request and append them to the
least-loaded terminals. Tasks that match existing work are skipped.
With no arguments, or "-", the request is read from stdin. When stdin is
a terminal, or with --edit, the request is composed in $EDITOR.`,
	RunE: runMerge,
}

var (
	mergeDryRun bool
	mergeEdit   bool
	mergeJSON   bool
	mergeAddr   string
)

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().BoolVarP(&mergeDryRun, "dry-run", "n", false, "Show the plan without writing")
	mergeCmd.Flags().BoolVarP(&mergeEdit, "edit", "e", false, "Compose the request in $EDITOR")
	mergeCmd.Flags().BoolVar(&mergeJSON, "json", false, "Output as JSON")
	mergeCmd.Flags().StringVar(&mergeAddr, "addr", "", "Send the request through a running swarm server")
}

func runMerge(cmd *cobra.Command, args []string) error {
	var request string
	dryRun := mergeDryRun
	if mergeEdit || (len(args) == 0 && editor.IsInteractive()) {
		parsed, err := editor.EditRequest(editor.RequestData{
			DryRun:  mergeDryRun,
			Request: strings.Join(args, " "),
		})
		if err != nil {
			return err
		}
		request, dryRun = parsed.Request, parsed.DryRun
	} else {
		var err error
		request, err = readRequest(args, os.Stdin)
		if err != nil {
			return err
		}
	}
	result, err := mergeRequest(cmd.Context(), request, dryRun)
	if err != nil {
		return err
	}
	if mergeJSON {
		return encodeJSONToStdout(result)
	}
	return writeMergeText(os.Stdout, result)
}

func readRequest(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read request: %w", err)
	}
	request := strings.TrimSpace(string(data))
	if request == "" {
		return "", fmt.Errorf("request is required")
	}
	return request, nil
}

func mergeRequest(ctx context.Context, request string, dryRun bool) (reconcile.Result, error) {
	if mergeAddr != "" {
		addr, err := swarm.ResolveAddr(nil, mergeAddr)
		if err != nil {
			return reconcile.Result{}, err
		}
		return swarm.NewClient(addr).Merge(ctx, request, dryRun)
	}
	p, cfg, err := resolveProject()
	if err != nil {
		return reconcile.Result{}, err
	}
	return newMerger(p, cfg).Merge(ctx, request, reconcile.MergeOptions{DryRun: dryRun})
}

func writeMergeText(w io.Writer, result reconcile.Result) error {
	if len(result.Candidates) == 0 {
		_, err := fmt.Fprintln(w, "No tasks found in request.")
		return err
	}

	verb := "Added"
	if !result.Applied {
		verb = "Would add"
	}
	if len(result.Placements) == 0 {
		fmt.Fprintln(w, "No new tasks.")
	} else {
		fmt.Fprintf(w, "%s %s:\n", verb, pluralize(len(result.Placements), "task", "tasks"))
		for _, placement := range result.Placements {
			fmt.Fprintf(w, "  terminal %d: %s\n", placement.Terminal, placement.Task)
		}
	}
	if len(result.Duplicates) > 0 {
		fmt.Fprintf(w, "Skipped %s:\n", pluralize(len(result.Duplicates), "duplicate", "duplicates"))
		for _, duplicate := range result.Duplicates {
			fmt.Fprintf(w, "  %s %s\n", duplicate.Task, ui.Muted(fmt.Sprintf("(matches %q, %d%%)", duplicate.Existing, int(duplicate.Score*100))))
		}
	}
	return nil
}

func pluralize(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}
