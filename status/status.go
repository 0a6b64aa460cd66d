// Package status derives a project's snapshot from its task documents and
// phase-status store.
//
// A Snapshot is a pure function of those files and the clock: nothing here
// is cached or persisted, and computing one never takes a lock.
package status

import (
	"context"
	"math"
	"time"

	"github.com/amonks/swarmboard/ledger"
	"github.com/amonks/swarmboard/phase"
	"github.com/amonks/swarmboard/project"
	"golang.org/x/sync/errgroup"
)

// NoTaskAssigned is the task shown for a terminal with a document but no
// assignment in the current phase.
const NoTaskAssigned = "No task assigned"

// UnknownPhaseStatus is reported when the phase-status store cannot be read.
const UnknownPhaseStatus phase.Status = "UNKNOWN"

// Snapshot is the aggregated status of a project at one instant.
type Snapshot struct {
	ProjectName     string     `json:"project_name"`
	Timestamp       time.Time  `json:"timestamp"`
	Phase           Phase      `json:"phase"`
	Terminals       []Terminal `json:"terminals"`
	OverallProgress int        `json:"overall_progress"`
}

// Phase summarizes the current phase.
type Phase struct {
	Number int          `json:"number"`
	Name   string       `json:"name"`
	Status phase.Status `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// Terminal is one terminal's entry in a snapshot.
type Terminal struct {
	Terminal int          `json:"terminal"`
	Status   phase.Status `json:"status"`
	Progress int          `json:"progress"`
	Task     string       `json:"task"`
	Tasks    Tasks        `json:"tasks"`
	Error    string       `json:"error,omitempty"`
}

// Tasks groups a terminal's tasks by state.
type Tasks struct {
	Completed  []ledger.Task `json:"completed"`
	InProgress []ledger.Task `json:"in_progress"`
	Pending    []ledger.Task `json:"pending"`
	All        []ledger.Task `json:"all"`
}

// Terminal returns the entry for terminal, if present.
func (s Snapshot) Terminal(terminal int) (Terminal, bool) {
	for _, entry := range s.Terminals {
		if entry.Terminal == terminal {
			return entry, true
		}
	}
	return Terminal{}, false
}

// Options configures an Aggregator.
type Options struct {
	// Now supplies snapshot timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Aggregator computes snapshots.
type Aggregator struct {
	now func() time.Time
}

// NewAggregator returns an Aggregator.
func NewAggregator(opts Options) *Aggregator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Aggregator{now: now}
}

type documentResult struct {
	doc ledger.Document
	err error
}

// Snapshot reads p's phase-status store and every terminal's document
// concurrently and combines them. A failure to read one source is recorded
// on the affected entry; only cancellation of ctx is returned as an error.
func (a *Aggregator) Snapshot(ctx context.Context, p project.Project) (Snapshot, error) {
	store := ledger.Open(p)
	terminals := ledger.Terminals()
	documents := make([]documentResult, len(terminals))
	var phases phase.File
	var phaseErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		phases, phaseErr = phase.Load(p.PhaseStatusPath())
		return gctx.Err()
	})
	for i, terminal := range terminals {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := store.Read(terminal)
			documents[i] = documentResult{doc: doc, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		ProjectName: p.Name,
		Timestamp:   a.now(),
		Terminals:   []Terminal{},
	}
	current, hasCurrent := phase.Phase{}, false
	if phaseErr != nil {
		snapshot.Phase = Phase{Status: UnknownPhaseStatus, Error: phaseErr.Error()}
	} else {
		current, hasCurrent = phases.Current()
		snapshot.Phase = Phase{Number: current.Number, Name: current.Name, Status: current.Status}
		if snapshot.Phase.Status == "" {
			snapshot.Phase.Status = phase.StatusNotStarted
		}
	}

	for i, terminal := range terminals {
		var assignment phase.Assignment
		assigned := false
		if hasCurrent {
			assignment, assigned = current.Assignment(terminal)
		}
		entry, ok := buildTerminal(terminal, assignment, assigned, documents[i])
		if ok {
			snapshot.Terminals = append(snapshot.Terminals, entry)
		}
	}
	snapshot.OverallProgress = overallProgress(snapshot.Terminals)
	return snapshot, nil
}

// buildTerminal reports false for a terminal with neither a phase entry nor a
// document. A document that exists is present even without tasks, and then
// counts as 0% in the overall mean.
func buildTerminal(terminal int, assignment phase.Assignment, assigned bool, result documentResult) (Terminal, bool) {
	doc := result.doc
	if !assigned && !doc.Exists && result.err == nil {
		return Terminal{}, false
	}
	entry := Terminal{
		Terminal: terminal,
		Status:   phase.StatusNotStarted,
		Task:     NoTaskAssigned,
		Tasks:    groupTasks(nil),
	}
	if assigned {
		entry.Status = assignment.Status
		entry.Task = assignment.Task
		entry.Progress = assignment.Progress
	}
	if result.err != nil {
		entry.Error = result.err.Error()
		return entry, true
	}
	entry.Tasks = groupTasks(doc.Tasks)
	if total, completed, _ := doc.Counts(); total > 0 {
		entry.Progress = phase.ClampProgress(completed * 100 / total)
	}
	return entry, true
}

func groupTasks(tasks []ledger.Task) Tasks {
	grouped := Tasks{
		Completed:  []ledger.Task{},
		InProgress: []ledger.Task{},
		Pending:    []ledger.Task{},
		All:        []ledger.Task{},
	}
	for _, task := range tasks {
		switch task.State {
		case ledger.StateCompleted:
			grouped.Completed = append(grouped.Completed, task)
		case ledger.StateInProgress:
			grouped.InProgress = append(grouped.InProgress, task)
		default:
			grouped.Pending = append(grouped.Pending, task)
		}
		grouped.All = append(grouped.All, task)
	}
	return grouped
}

// overallProgress is the mean of the terminals' progress rounded half up.
func overallProgress(terminals []Terminal) int {
	if len(terminals) == 0 {
		return 0
	}
	sum := 0
	for _, entry := range terminals {
		sum += entry.Progress
	}
	return phase.ClampProgress(int(math.Round(float64(sum) / float64(len(terminals)))))
}
