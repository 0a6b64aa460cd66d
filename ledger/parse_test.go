package ledger

import (
	"reflect"
	"testing"

	"github.com/amonks/swarmboard/similarity"
)

const sampleDocument = `Intro line
- [ ] Task before any heading
# Terminal 1 - Tasks

## Current Work
- [x] Set up repository
- [ ] Implement retry after 3 failures
  - [X] Nested done item
-[ ] missing space is skipped
- [y] bad mark is skipped
- [ ]
- [ ]   

## Backlog ##
	- [ ] Tab indented task
`

func TestParse(t *testing.T) {
	tasks := Parse("terminal-1.md", sampleDocument)

	if len(tasks) != 5 {
		t.Fatalf("expected 5 tasks, got %d: %+v", len(tasks), tasks)
	}

	want := []struct {
		text      string
		completed bool
		section   string
		line      int
		indent    string
		state     State
	}{
		{"Task before any heading", false, "", 1, "", StatePending},
		{"Set up repository", true, "Current Work", 5, "", StateCompleted},
		{"Implement retry after 3 failures", false, "Current Work", 6, "", StateInProgress},
		{"Nested done item", true, "Current Work", 7, "  ", StateCompleted},
		{"Tab indented task", false, "Backlog", 14, "\t", StatePending},
	}
	for i, w := range want {
		got := tasks[i]
		if got.Text != w.text || got.Completed != w.completed || got.Section != w.section {
			t.Fatalf("task %d: expected %+v, got %+v", i, w, got)
		}
		if got.Line != w.line || got.Indent != w.indent || got.State != w.state {
			t.Fatalf("task %d: expected line %d indent %q state %s, got %+v", i, w.line, w.indent, w.state, got)
		}
		if got.Position != i {
			t.Fatalf("task %d: expected position %d, got %d", i, i, got.Position)
		}
		if got.ID != similarity.Identity("terminal-1.md", w.text) {
			t.Fatalf("task %d: unexpected id %s", i, got.ID)
		}
	}
}

func TestParseIsIdempotent(t *testing.T) {
	first := Parse("terminal-2.md", sampleDocument)
	second := Parse("terminal-2.md", sampleDocument)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical parses\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestParseHandlesCRLF(t *testing.T) {
	tasks := Parse("terminal-1.md", "# Work\r\n- [x] Done\r\n- [ ] Open\r\n")

	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Text != "Done" || tasks[0].Section != "Work" {
		t.Fatalf("unexpected first task %+v", tasks[0])
	}
	if tasks[1].Text != "Open" {
		t.Fatalf("expected CR stripped, got %q", tasks[1].Text)
	}
}

func TestParseEmpty(t *testing.T) {
	if tasks := Parse("terminal-1.md", ""); len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks))
	}
}

func TestSetMarkPreservesLine(t *testing.T) {
	text := "# T\n  - [ ] Keep   spacing  \n- [x] Other\n"

	updated, err := SetMark(text, 1, true)
	if err != nil {
		t.Fatalf("set mark: %v", err)
	}
	if updated != "# T\n  - [x] Keep   spacing  \n- [x] Other\n" {
		t.Fatalf("unexpected text %q", updated)
	}

	reopened, err := SetMark(updated, 2, false)
	if err != nil {
		t.Fatalf("set mark: %v", err)
	}
	if reopened != "# T\n  - [x] Keep   spacing  \n- [ ] Other\n" {
		t.Fatalf("unexpected text %q", reopened)
	}
}

func TestSetMarkPreservesCRLF(t *testing.T) {
	updated, err := SetMark("- [ ] Task\r\n", 0, true)
	if err != nil {
		t.Fatalf("set mark: %v", err)
	}
	if updated != "- [x] Task\r\n" {
		t.Fatalf("unexpected text %q", updated)
	}
}

func TestSetMarkRejectsNonTaskLine(t *testing.T) {
	if _, err := SetMark("# Heading\n", 0, true); err == nil {
		t.Fatal("expected error for heading line")
	}
	if _, err := SetMark("- [ ] Task\n", 5, true); err == nil {
		t.Fatal("expected error for out-of-range line")
	}
}

func TestAppendSection(t *testing.T) {
	got := AppendSection("# Terminal 1 - Tasks\n- [ ] Old", "New Tasks - 2024-05-01 10:00", []string{"add  login", "fix bug"})

	want := "# Terminal 1 - Tasks\n- [ ] Old\n\n## New Tasks - 2024-05-01 10:00\n- [ ] add login\n- [ ] fix bug\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
