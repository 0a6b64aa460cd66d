package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/amonks/swarmboard/internal/ui"
	"github.com/amonks/swarmboard/status"
	"github.com/amonks/swarmboard/swarm"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show phase, terminal and overall progress",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var (
	statusFormat  = formatText
	statusSummary bool
	statusAddr    string
)

const statusBarWidth = 10

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().VarP(&formatValue{value: &statusFormat, allowed: outputFormats}, "format", "f", "Output format (text, json, yaml)")
	statusCmd.Flags().BoolVar(&statusSummary, "summary", false, "Show flat task totals instead of per-terminal status")
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "Read status from a running swarm server instead of the filesystem")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	snapshot, err := loadSnapshot(cmd.Context(), statusAddr)
	if err != nil {
		return err
	}
	if statusSummary {
		summary := status.Summarize(snapshot)
		return writeFormatted(os.Stdout, statusFormat, summary, func(w io.Writer) error {
			return writeSummaryText(w, summary)
		})
	}
	return writeFormatted(os.Stdout, statusFormat, snapshot, func(w io.Writer) error {
		return writeSnapshotText(w, snapshot)
	})
}

// loadSnapshot computes the snapshot locally, or asks the server at addr.
func loadSnapshot(ctx context.Context, addr string) (status.Snapshot, error) {
	if addr != "" {
		resolved, err := swarm.ResolveAddr(nil, addr)
		if err != nil {
			return status.Snapshot{}, err
		}
		return swarm.NewClient(resolved).Status(ctx)
	}
	p, _, err := resolveProject()
	if err != nil {
		return status.Snapshot{}, err
	}
	return status.NewAggregator(status.Options{}).Snapshot(ctx, p)
}

func writeSnapshotText(w io.Writer, snapshot status.Snapshot) error {
	phaseLine := fmt.Sprintf("Phase %d", snapshot.Phase.Number)
	if snapshot.Phase.Name != "" {
		phaseLine += ": " + snapshot.Phase.Name
	}
	phaseLine += "  " + ui.StatusLabel(string(snapshot.Phase.Status))
	if snapshot.Phase.Error != "" {
		phaseLine += "  " + ui.Muted(snapshot.Phase.Error)
	}

	fmt.Fprintf(w, "%s %s\n", ui.Heading("Project:"), snapshot.ProjectName)
	fmt.Fprintf(w, "%s\n", phaseLine)
	fmt.Fprintf(w, "Overall: %s %d%%\n", ui.ProgressBar(snapshot.OverallProgress, statusBarWidth), snapshot.OverallProgress)
	fmt.Fprintf(w, "Updated: %s\n\n", snapshot.Timestamp.Local().Format(time.DateTime))

	if len(snapshot.Terminals) == 0 {
		_, err := fmt.Fprintln(w, "No active terminals.")
		return err
	}
	builder := ui.NewTableBuilder([]string{"TERMINAL", "STATUS", "PROGRESS", "OPEN", "DONE", "TASK"}, len(snapshot.Terminals))
	for _, entry := range snapshot.Terminals {
		task := entry.Task
		if entry.Error != "" {
			task = "error: " + entry.Error
		}
		builder.AddRow(
			strconv.Itoa(entry.Terminal),
			ui.StatusLabel(string(entry.Status)),
			fmt.Sprintf("%s %3d%%", ui.ProgressBar(entry.Progress, statusBarWidth), entry.Progress),
			strconv.Itoa(len(entry.Tasks.Pending)+len(entry.Tasks.InProgress)),
			strconv.Itoa(len(entry.Tasks.Completed)),
			ui.TruncateTableCell(task),
		)
	}
	_, err := io.WriteString(w, builder.String())
	return err
}

func writeSummaryText(w io.Writer, summary status.Summary) error {
	_, err := fmt.Fprintf(w, "%d tasks: %d completed, %d in progress, %d pending (%d%%)\n",
		summary.Total, summary.Completed, summary.InProgress, summary.Pending, summary.Progress)
	return err
}
