// Package ledger reads and writes the per-terminal task documents that are
// the durable record of work in a swarm project.
//
// Each terminal owns one markdown document (todo/terminal-N.md). Tasks are
// checkbox list items; headings group them into sections. Task records are a
// derived view recomputed on every read and never stored on their own.
//
// Writes to a document are serialized through a per-document lock and land
// through an atomic rename, so readers never observe a torn file and never
// need to take the lock themselves.
package ledger

import (
	"errors"
	"fmt"
)

// TerminalCount is the number of terminals in a swarm.
const TerminalCount = 5

// ErrInvalidTerminal is returned for terminal numbers outside 1..TerminalCount.
var ErrInvalidTerminal = errors.New("invalid terminal")

// Terminals returns the terminal numbers in ascending order.
func Terminals() []int {
	terminals := make([]int, TerminalCount)
	for i := range terminals {
		terminals[i] = i + 1
	}
	return terminals
}

// ValidateTerminal checks that terminal is in range.
func ValidateTerminal(terminal int) error {
	if terminal < 1 || terminal > TerminalCount {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidTerminal, terminal, TerminalCount)
	}
	return nil
}

// State classifies a task for display.
type State string

const (
	// StateCompleted is a checked task.
	StateCompleted State = "completed"

	// StateInProgress is an unchecked task under a section that marks active work.
	StateInProgress State = "in_progress"

	// StatePending is any other unchecked task.
	StatePending State = "pending"
)

// activeSectionMarkers identify sections whose open tasks are being worked on.
var activeSectionMarkers = []string{"current", "working", "in progress"}

// Task is one checkbox item parsed from a task document.
type Task struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	Section   string `json:"section"`
	Position  int    `json:"position"`
	Line      int    `json:"line"`
	Indent    string `json:"indent,omitempty"`
	State     State  `json:"state"`
}

// Document is a terminal's task document as read from disk.
type Document struct {
	Terminal int    `json:"terminal"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Exists   bool   `json:"exists"`
	Text     string `json:"-"`
	Tasks    []Task `json:"tasks"`
}

// Counts returns the total, completed and open task counts.
func (d Document) Counts() (total, completed, open int) {
	for _, task := range d.Tasks {
		if task.Completed {
			completed++
		}
	}
	total = len(d.Tasks)
	return total, completed, total - completed
}

// OpenTasks returns the document's unchecked tasks.
func (d Document) OpenTasks() []Task {
	var open []Task
	for _, task := range d.Tasks {
		if !task.Completed {
			open = append(open, task)
		}
	}
	return open
}

// Scan is every terminal's document, ordered by terminal number.
type Scan struct {
	Documents []Document `json:"documents"`
}

// Document returns the document for terminal, if scanned.
func (s Scan) Document(terminal int) (Document, bool) {
	for _, doc := range s.Documents {
		if doc.Terminal == terminal {
			return doc, true
		}
	}
	return Document{}, false
}

// OpenTexts returns the text of every unchecked task across all documents.
func (s Scan) OpenTexts() []string {
	var texts []string
	for _, doc := range s.Documents {
		for _, task := range doc.OpenTasks() {
			texts = append(texts, task.Text)
		}
	}
	return texts
}

// Load returns the open task count per terminal. Every terminal is present,
// including those without a document.
func (s Scan) Load() map[int]int {
	load := make(map[int]int, TerminalCount)
	for _, terminal := range Terminals() {
		load[terminal] = 0
	}
	for _, doc := range s.Documents {
		_, _, open := doc.Counts()
		load[doc.Terminal] = open
	}
	return load
}

// Tasks returns every task across all documents in terminal order.
func (s Scan) Tasks() []Task {
	var tasks []Task
	for _, doc := range s.Documents {
		tasks = append(tasks, doc.Tasks...)
	}
	return tasks
}
