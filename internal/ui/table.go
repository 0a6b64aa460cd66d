package ui

import (
	"strings"

	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

const (
	tableCellMaxWidth = 50
	tableCellEllipsis = "..."
	tableColumnGap    = 2
)

// TableBuilder accumulates rows under fixed headers.
type TableBuilder struct {
	headers []string
	rows    [][]string
}

// NewTableBuilder returns a builder with room for capacity rows.
func NewTableBuilder(headers []string, capacity int) *TableBuilder {
	return &TableBuilder{headers: headers, rows: make([][]string, 0, capacity)}
}

// AddRow appends one row of cells.
func (b *TableBuilder) AddRow(cells ...string) {
	b.rows = append(b.rows, cells)
}

// String renders the accumulated table.
func (b *TableBuilder) String() string {
	return FormatTable(b.headers, b.rows)
}

// FormatTable renders headers and rows as an aligned table. Columns are
// separated by two spaces and the last column is not padded.
func FormatTable(headers []string, rows [][]string) string {
	lines := make([][]string, 0, len(rows)+1)
	for _, line := range append([][]string{headers}, rows...) {
		cells := make([]string, len(line))
		for i, cell := range line {
			cells[i] = normalizeTableCell(cell)
		}
		lines = append(lines, cells)
	}

	widths := make([]int, len(headers))
	for _, line := range lines {
		for i := range min(len(line), len(widths)) {
			widths[i] = max(widths[i], displayWidth(line[i]))
		}
	}

	var out strings.Builder
	for _, line := range lines {
		last := len(line) - 1
		for i, cell := range line {
			out.WriteString(cell)
			if i == last {
				continue
			}
			pad := tableColumnGap
			if i < len(widths) {
				pad += widths[i] - displayWidth(cell)
			}
			out.WriteString(strings.Repeat(" ", pad))
		}
		out.WriteByte('\n')
	}
	return out.String()
}

// TruncateTableCell limits cell width, keeping escape sequences intact.
func TruncateTableCell(value string) string {
	return Truncate(normalizeTableCell(value), tableCellMaxWidth)
}

// Truncate limits value to width visible cells, ending it with an ellipsis
// when anything was cut.
func Truncate(value string, width int) string {
	if width <= 0 {
		return ""
	}
	if displayWidth(value) <= width {
		return value
	}
	if width <= len(tableCellEllipsis) {
		return tableCellEllipsis[:width]
	}
	return truncate.StringWithTail(value, uint(width), tableCellEllipsis)
}

func displayWidth(value string) int {
	return ansi.PrintableRuneWidth(value)
}

func normalizeTableCell(value string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(value)
}
