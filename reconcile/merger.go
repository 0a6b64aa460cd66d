package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/amonks/swarmboard/internal/ids"
	internalstrings "github.com/amonks/swarmboard/internal/strings"
	"github.com/amonks/swarmboard/ledger"
	"github.com/amonks/swarmboard/similarity"
)

// sectionTimeLayout formats the timestamp in appended section headings.
const sectionTimeLayout = "2006-01-02 15:04"

// ErrTaskNotFound is returned when a task id prefix matches no task.
var ErrTaskNotFound = errors.New("task not found")

// Options configures a Merger.
type Options struct {
	// Now returns the time used in appended headings and the tracking file.
	Now func() time.Time

	// DuplicateThreshold defaults to similarity.DuplicateThreshold.
	DuplicateThreshold float64

	// UpdateThreshold defaults to similarity.UpdateThreshold.
	UpdateThreshold float64

	Logger *log.Logger
}

// MergeOptions configures a single merge.
type MergeOptions struct {
	DryRun bool
}

// Merger applies merges and status updates to a project's task documents.
type Merger struct {
	store              *ledger.Store
	now                func() time.Time
	duplicateThreshold float64
	updateThreshold    float64
	logger             *log.Logger

	// mu serializes merges so each plan sees the previous merge's appends.
	mu sync.Mutex
}

// NewMerger returns a Merger writing through store.
func NewMerger(store *ledger.Store, opts Options) *Merger {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	duplicate := opts.DuplicateThreshold
	if duplicate <= 0 {
		duplicate = similarity.DuplicateThreshold
	}
	update := opts.UpdateThreshold
	if update <= 0 {
		update = similarity.UpdateThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "reconcile: ", log.LstdFlags)
	}
	return &Merger{
		store:              store,
		now:                now,
		duplicateThreshold: duplicate,
		updateThreshold:    update,
		logger:             logger,
	}
}

// Merge extracts candidate tasks from request, drops those that duplicate
// open work, and appends the rest to the least loaded terminals.
func (m *Merger) Merge(ctx context.Context, request string, opts MergeOptions) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	scan, err := m.store.Scan(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("scan ledger: %w", err)
	}
	result := Plan(request, scan, m.duplicateThreshold)
	if opts.DryRun || len(result.Accepted) == 0 {
		return result, nil
	}

	heading := "New Tasks - " + m.now().Format(sectionTimeLayout)
	for _, terminal := range ledger.Terminals() {
		tasks := result.Distribution[terminal]
		if len(tasks) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		_, err := m.store.Mutate(terminal, func(doc ledger.Document) (string, bool, error) {
			text := doc.Text
			if !doc.Exists {
				text = ledger.NewDocumentText(terminal)
			}
			return ledger.AppendSection(text, heading, tasks), true, nil
		})
		if err != nil {
			return result, fmt.Errorf("append to terminal %d: %w", terminal, err)
		}
		m.logf("added %d task(s) to terminal %d", len(tasks), terminal)
	}
	result.Applied = true
	m.recordTracking(ctx)
	return result, nil
}

// UpdateStatus sets the completion mark of the task in terminal's document
// that best matches text. It reports false when the document is missing or
// no task scores at or above the update threshold.
func (m *Merger) UpdateStatus(ctx context.Context, terminal int, text string, completed bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	candidate := internalstrings.NormalizeLowerTrimSpace(text)
	found := false
	changed := false
	_, err := m.store.Mutate(terminal, func(doc ledger.Document) (string, bool, error) {
		if !doc.Exists || len(doc.Tasks) == 0 {
			return "", false, nil
		}
		texts := make([]string, len(doc.Tasks))
		for i, task := range doc.Tasks {
			texts[i] = internalstrings.NormalizeLower(task.Text)
		}
		index, score := similarity.Best(candidate, texts)
		if index < 0 || !similarity.Matches(score, m.updateThreshold) {
			return "", false, nil
		}
		found = true
		return setTask(doc, doc.Tasks[index], completed, &changed)
	})
	if err != nil {
		return false, err
	}
	if changed {
		m.recordTracking(ctx)
	}
	return found, nil
}

// UpdateByID sets the completion mark of the task whose id starts with
// prefix, searching every terminal's document.
func (m *Merger) UpdateByID(ctx context.Context, prefix string, completed bool) (ledger.Task, error) {
	scan, err := m.store.Scan(ctx)
	if err != nil {
		return ledger.Task{}, fmt.Errorf("scan ledger: %w", err)
	}
	tasks := scan.Tasks()
	taskIDs := make([]string, len(tasks))
	for i, task := range tasks {
		taskIDs[i] = task.ID
	}
	id, err := ids.ResolvePrefix(prefix, taskIDs)
	if errors.Is(err, ids.ErrNoMatch) {
		return ledger.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, prefix)
	}
	if err != nil {
		return ledger.Task{}, err
	}

	terminal := 0
	for _, doc := range scan.Documents {
		for _, task := range doc.Tasks {
			if task.ID == id {
				terminal = doc.Terminal
			}
		}
	}

	var updated ledger.Task
	changed := false
	_, err = m.store.Mutate(terminal, func(doc ledger.Document) (string, bool, error) {
		for _, task := range doc.Tasks {
			if task.ID != id {
				continue
			}
			updated = task
			updated.Completed = completed
			return setTask(doc, task, completed, &changed)
		}
		return "", false, fmt.Errorf("%w: %s", ErrTaskNotFound, prefix)
	})
	if err != nil {
		return ledger.Task{}, err
	}
	if changed {
		m.recordTracking(ctx)
	}
	return updated, nil
}

func setTask(doc ledger.Document, task ledger.Task, completed bool, changed *bool) (string, bool, error) {
	if task.Completed == completed {
		return "", false, nil
	}
	text, err := ledger.SetMark(doc.Text, task.Line, completed)
	if err != nil {
		return "", false, err
	}
	*changed = true
	return text, true, nil
}

// recordTracking refreshes the tracking file. The documents are already
// written, so a failure here is logged rather than returned.
func (m *Merger) recordTracking(ctx context.Context) {
	scan, err := m.store.Scan(ctx)
	if err != nil {
		m.logf("refresh tracking: %v", err)
		return
	}
	if err := m.store.RecordTracking(scan, m.now()); err != nil {
		m.logf("refresh tracking: %v", err)
	}
}

func (m *Merger) logf(format string, args ...any) {
	if m == nil || m.logger == nil {
		return
	}
	m.logger.Printf(format, args...)
}
