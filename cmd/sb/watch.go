package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/amonks/swarmboard/internal/config"
	"github.com/amonks/swarmboard/internal/paths"
	"github.com/amonks/swarmboard/internal/ui"
	"github.com/amonks/swarmboard/status"
	"github.com/amonks/swarmboard/swarm"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live status from a running swarm server",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var (
	watchAddr string
	watchJSON bool
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "Swarm server address")
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print each snapshot as a JSON line")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	root := ""
	if cwd, err := paths.WorkingDir(); err == nil && looksLikeProject(cwd) {
		root = cwd
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	addr, err := swarm.ResolveAddr(cfg, watchAddr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return streamSnapshots(ctx, swarm.NewClient(addr), os.Stdout)
}

func streamSnapshots(ctx context.Context, client *swarm.Client, w io.Writer) error {
	snapshots, errs := client.Subscribe(ctx)
	for snapshot := range snapshots {
		var err error
		if watchJSON {
			err = encodeJSONLine(w, snapshot)
		} else {
			_, err = fmt.Fprintln(w, snapshotLine(snapshot))
		}
		if err != nil {
			return err
		}
	}
	return <-errs
}

func encodeJSONLine(w io.Writer, value any) error {
	return json.NewEncoder(w).Encode(value)
}

// snapshotLine summarizes a snapshot on one line.
func snapshotLine(snapshot status.Snapshot) string {
	line := fmt.Sprintf("%s  %s  phase %d %s  %s %3d%%",
		snapshot.Timestamp.Local().Format(time.TimeOnly),
		snapshot.ProjectName,
		snapshot.Phase.Number,
		ui.StatusLabel(string(snapshot.Phase.Status)),
		ui.ProgressBar(snapshot.OverallProgress, statusBarWidth),
		snapshot.OverallProgress,
	)
	for _, entry := range snapshot.Terminals {
		line += fmt.Sprintf("  t%d:%d%%", entry.Terminal, entry.Progress)
	}
	return line
}
