package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/amonks/swarmboard/history"
	"github.com/amonks/swarmboard/internal/ui"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded progress changes",
	Long: `Show the project's progress log. The swarm server records an entry
whenever the phase or overall progress changes.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyLimit  int
	historyFormat = formatText
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	historyCmd.Flags().VarP(&formatValue{value: &historyFormat, allowed: outputFormats}, "format", "f", "Output format (text, json, yaml)")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	p, _, err := resolveProject()
	if err != nil {
		return err
	}

	var entries []history.Entry
	if _, err := os.Stat(p.HistoryPath()); err == nil {
		store, err := history.Open(p.HistoryPath())
		if err != nil {
			return err
		}
		defer store.Close()
		entries, err = store.List(cmd.Context(), p.Name, historyLimit)
		if err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if entries == nil {
		entries = []history.Entry{}
	}
	return writeFormatted(os.Stdout, historyFormat, entries, func(w io.Writer) error {
		return writeHistoryTable(w, entries, time.Now())
	})
}

func writeHistoryTable(w io.Writer, entries []history.Entry, now time.Time) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No history recorded.")
		return err
	}
	builder := ui.NewTableBuilder([]string{"TIME", "AGE", "PHASE", "STATUS", "PROGRESS", "SOURCE"}, len(entries))
	for _, entry := range entries {
		builder.AddRow(
			entry.RecordedAt.Local().Format(time.DateTime),
			ui.FormatTimeAgo(entry.RecordedAt, now),
			strconv.Itoa(entry.Phase),
			ui.StatusLabel(entry.PhaseStatus),
			fmt.Sprintf("%d%%", entry.OverallProgress),
			entry.Source,
		)
	}
	_, err := io.WriteString(w, builder.String())
	return err
}
