// Package reconcile merges newly requested work into the task ledger and
// updates task status in place.
//
// Planning is pure: Plan takes a request and a ledger scan and decides which
// candidates are new, which duplicate open work, and which terminal receives
// each new task. Merger applies a plan by appending to the documents.
package reconcile

import (
	"sort"

	"github.com/amonks/swarmboard/ledger"
	"github.com/amonks/swarmboard/similarity"
)

// Duplicate records a candidate rejected because it resembles open work.
type Duplicate struct {
	Task     string  `json:"task"`
	Existing string  `json:"existing"`
	Score    float64 `json:"score"`
}

// Placement assigns a new task to a terminal.
type Placement struct {
	Terminal int    `json:"terminal"`
	Task     string `json:"task"`
}

// Remaining summarizes a terminal's document before the merge.
type Remaining struct {
	Incomplete int `json:"incomplete"`
	Complete   int `json:"complete"`
	Total      int `json:"total"`
}

// Result is the outcome of planning (and optionally applying) a merge.
type Result struct {
	Candidates   []string          `json:"candidates"`
	Accepted     []string          `json:"new_tasks"`
	Duplicates   []Duplicate       `json:"duplicates_avoided"`
	Placements   []Placement       `json:"placements"`
	Distribution map[int][]string  `json:"distribution"`
	Remaining    map[int]Remaining `json:"remaining_tasks"`
	Applied      bool              `json:"applied"`
}

// Plan decides how request merges into the ledger described by scan.
//
// A candidate is a duplicate when its score against any open task, or
// against a candidate already accepted from the same request, meets
// threshold. The first such match wins. Completed tasks are never compared.
func Plan(request string, scan ledger.Scan, threshold float64) Result {
	result := Result{
		Candidates:   Extract(request),
		Accepted:     []string{},
		Duplicates:   []Duplicate{},
		Distribution: map[int][]string{},
		Remaining:    remaining(scan),
	}

	pool := scan.OpenTexts()
	for _, candidate := range result.Candidates {
		if index, score := similarity.First(candidate, pool, threshold); index >= 0 {
			result.Duplicates = append(result.Duplicates, Duplicate{
				Task:     candidate,
				Existing: pool[index],
				Score:    score,
			})
			continue
		}
		result.Accepted = append(result.Accepted, candidate)
		pool = append(pool, candidate)
	}

	result.Placements = Distribute(result.Accepted, scan.Load())
	for _, terminal := range ledger.Terminals() {
		result.Distribution[terminal] = []string{}
	}
	for _, placement := range result.Placements {
		result.Distribution[placement.Terminal] = append(result.Distribution[placement.Terminal], placement.Task)
	}
	return result
}

// Distribute assigns tasks round-robin over terminals ordered by ascending
// open-task count, ties broken by terminal number. The order is fixed before
// the first assignment and not recomputed as tasks are placed.
func Distribute(tasks []string, load map[int]int) []Placement {
	if len(tasks) == 0 || len(load) == 0 {
		return []Placement{}
	}
	order := make([]int, 0, len(load))
	for terminal := range load {
		order = append(order, terminal)
	}
	sort.Slice(order, func(i, j int) bool {
		if load[order[i]] != load[order[j]] {
			return load[order[i]] < load[order[j]]
		}
		return order[i] < order[j]
	})

	placements := make([]Placement, len(tasks))
	for i, task := range tasks {
		placements[i] = Placement{Terminal: order[i%len(order)], Task: task}
	}
	return placements
}

func remaining(scan ledger.Scan) map[int]Remaining {
	counts := make(map[int]Remaining, len(scan.Documents))
	for _, doc := range scan.Documents {
		if !doc.Exists {
			continue
		}
		total, completed, open := doc.Counts()
		counts[doc.Terminal] = Remaining{Incomplete: open, Complete: completed, Total: total}
	}
	return counts
}
