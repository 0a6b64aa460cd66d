package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/amonks/swarmboard/internal/listflags"
	"github.com/amonks/swarmboard/internal/ui"
	"github.com/amonks/swarmboard/ledger"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List open tasks in the project's terminal documents",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

var (
	scanJSON     bool
	scanAll      bool
	scanTerminal int
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Output as JSON")
	listflags.AddAllFlag(scanCmd, &scanAll)
	scanCmd.Flags().VarP(newTerminalValue(&scanTerminal), "terminal", "t", "Only list this terminal's tasks")
}

func runScan(cmd *cobra.Command, _ []string) error {
	p, _, err := resolveProject()
	if err != nil {
		return err
	}
	scan, err := ledger.Open(p).Scan(cmd.Context())
	if err != nil {
		return err
	}
	if scanTerminal != 0 {
		doc, _ := scan.Document(scanTerminal)
		scan = ledger.Scan{Documents: []ledger.Document{doc}}
	}
	if !scanAll {
		scan = withoutCompleted(scan)
	}

	if scanJSON {
		tasks := scan.Tasks()
		if tasks == nil {
			tasks = []ledger.Task{}
		}
		return encodeJSONToStdout(tasks)
	}
	return writeScanTable(os.Stdout, scan)
}

func withoutCompleted(scan ledger.Scan) ledger.Scan {
	filtered := ledger.Scan{Documents: make([]ledger.Document, 0, len(scan.Documents))}
	for _, doc := range scan.Documents {
		tasks := make([]ledger.Task, 0, len(doc.Tasks))
		for _, task := range doc.Tasks {
			if task.State != ledger.StateCompleted {
				tasks = append(tasks, task)
			}
		}
		doc.Tasks = tasks
		filtered.Documents = append(filtered.Documents, doc)
	}
	return filtered
}

func writeScanTable(w io.Writer, scan ledger.Scan) error {
	tasks := scan.Tasks()
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "No tasks found.")
		return err
	}

	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	prefixes := ui.UniqueIDPrefixLengths(ids)

	builder := ui.NewTableBuilder([]string{"ID", "TERMINAL", "STATE", "SECTION", "TASK"}, len(tasks))
	for _, doc := range scan.Documents {
		for _, task := range doc.Tasks {
			builder.AddRow(
				ui.HighlightID(task.ID, ui.PrefixLength(prefixes, task.ID)),
				strconv.Itoa(doc.Terminal),
				string(task.State),
				ui.TruncateTableCell(task.Section),
				task.Indent+ui.TruncateTableCell(task.Text),
			)
		}
	}
	_, err := io.WriteString(w, builder.String())
	return err
}
