package ledger

import (
	"fmt"
	"regexp"
	"strings"

	internalstrings "github.com/amonks/swarmboard/internal/strings"
	"github.com/amonks/swarmboard/similarity"
)

var checkboxPattern = regexp.MustCompile(`^(\s*)- \[([ xX])\] (.+)$`)

// Parse extracts the checkbox tasks from a document's text in document order.
// Lines that look like checkboxes but are malformed are skipped.
func Parse(documentName, text string) []Task {
	var tasks []Task
	section := ""
	for lineNum, line := range splitLines(text) {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, "#") {
			section = headingText(line)
			continue
		}
		task, ok := parseTaskLine(line)
		if !ok {
			continue
		}
		task.ID = similarity.Identity(documentName, task.Text)
		task.Section = section
		task.Position = len(tasks)
		task.Line = lineNum
		task.State = classify(task.Completed, section)
		tasks = append(tasks, task)
	}
	return tasks
}

func parseTaskLine(line string) (Task, bool) {
	match := checkboxPattern.FindStringSubmatch(line)
	if match == nil {
		return Task{}, false
	}
	text := match[3]
	if internalstrings.IsBlank(text) {
		return Task{}, false
	}
	return Task{
		Indent:    match[1],
		Completed: strings.EqualFold(match[2], "x"),
		Text:      text,
	}, true
}

func headingText(line string) string {
	heading := strings.TrimLeft(line, "#")
	heading = strings.TrimRight(strings.TrimSpace(heading), "#")
	return strings.TrimSpace(heading)
}

func classify(completed bool, section string) State {
	if completed {
		return StateCompleted
	}
	if internalstrings.ContainsAnyFold(section, activeSectionMarkers...) {
		return StateInProgress
	}
	return StatePending
}

// splitLines splits text into lines without their trailing "\n". A final
// newline does not produce a trailing empty line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// SetMark rewrites the checkbox mark on line lineNum of text. Everything else
// on the line, and every other line, is left byte-for-byte unchanged.
func SetMark(text string, lineNum int, completed bool) (string, error) {
	lines := strings.Split(text, "\n")
	if lineNum < 0 || lineNum >= len(lines) {
		return "", fmt.Errorf("line %d out of range", lineNum)
	}
	line := lines[lineNum]
	match := checkboxPattern.FindStringSubmatchIndex(strings.TrimSuffix(line, "\r"))
	if match == nil {
		return "", fmt.Errorf("line %d is not a task", lineNum)
	}
	mark := byte(' ')
	if completed {
		mark = 'x'
	}
	// match[4] is the start of the mark group.
	rewritten := line[:match[4]] + string(mark) + line[match[4]+1:]
	lines[lineNum] = rewritten
	return strings.Join(lines, "\n"), nil
}

// AppendSection appends a heading followed by one unchecked task per entry.
func AppendSection(text, heading string, tasks []string) string {
	var builder strings.Builder
	builder.WriteString(text)
	if text != "" && !strings.HasSuffix(text, "\n") {
		builder.WriteByte('\n')
	}
	builder.WriteString("\n## ")
	builder.WriteString(heading)
	builder.WriteByte('\n')
	for _, task := range tasks {
		builder.WriteString("- [ ] ")
		builder.WriteString(internalstrings.NormalizeWhitespace(task))
		builder.WriteByte('\n')
	}
	return builder.String()
}

// NewDocumentText is the header written when a terminal has no document yet.
func NewDocumentText(terminal int) string {
	return fmt.Sprintf("# Terminal %d - Tasks\n\n", terminal)
}
