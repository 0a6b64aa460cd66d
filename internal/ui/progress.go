package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

var (
	barFilledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	barEmptyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	completedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	inProgressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	waitingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	headingStyle    = lipgloss.NewStyle().Bold(true)
)

// ProgressBar renders percent as a bar of width cells, e.g. "#####-----".
// Percent is clamped to [0, 100].
func ProgressBar(percent, width int) string {
	if width <= 0 {
		return ""
	}
	percent = min(max(percent, 0), 100)
	filled := percent * width / 100
	full := strings.Repeat("#", filled)
	empty := strings.Repeat("-", width-filled)
	if !ColorEnabled() {
		return full + empty
	}
	return barFilledStyle.Render(full) + barEmptyStyle.Render(empty)
}

// StatusLabel colors a lifecycle status for terminal output.
func StatusLabel(status string) string {
	if !ColorEnabled() {
		return status
	}
	switch status {
	case "COMPLETED":
		return completedStyle.Render(status)
	case "IN_PROGRESS":
		return inProgressStyle.Render(status)
	case "WAITING":
		return waitingStyle.Render(status)
	case "UNKNOWN":
		return errorStyle.Render(status)
	default:
		return mutedStyle.Render(status)
	}
}

// Heading emphasizes a section title.
func Heading(text string) string {
	if !ColorEnabled() {
		return text
	}
	return headingStyle.Render(text)
}

// Muted de-emphasizes secondary text.
func Muted(text string) string {
	if !ColorEnabled() {
		return text
	}
	return mutedStyle.Render(text)
}

// Wrap word-wraps text to width and indents every line by spaces.
func Wrap(text string, width, spaces int) string {
	if width > spaces {
		text = wordwrap.String(text, width-spaces)
	}
	if spaces <= 0 {
		return text
	}
	return indent.String(text, uint(spaces))
}
