package main

import (
	"fmt"
	"os"

	"github.com/amonks/swarmboard/internal/markdown"
	"github.com/amonks/swarmboard/internal/ui"
	"github.com/amonks/swarmboard/ledger"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Render terminal task documents",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

var (
	showTerminal int
	showRaw      bool
)

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().VarP(newTerminalValue(&showTerminal), "terminal", "t", "Only show this terminal's document")
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print the markdown source")
}

func runShow(cmd *cobra.Command, _ []string) error {
	p, _, err := resolveProject()
	if err != nil {
		return err
	}
	store := ledger.Open(p)

	terminals := ledger.Terminals()
	if showTerminal != 0 {
		terminals = []int{showTerminal}
	}
	width := outputWidth()
	color := ui.ColorEnabled()
	for i, terminal := range terminals {
		doc, err := store.Read(terminal)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(ui.Heading(doc.Name))
		if !doc.Exists {
			fmt.Println(ui.Muted("  (no document)"))
			continue
		}
		if showRaw {
			fmt.Print(doc.Text)
			continue
		}
		rendered := markdown.Render(width, 2, color, []byte(doc.Text))
		if len(rendered) == 0 {
			fmt.Println(ui.Muted("  (empty)"))
			continue
		}
		if _, err := os.Stdout.Write(append(rendered, '\n')); err != nil {
			return err
		}
	}
	return nil
}
