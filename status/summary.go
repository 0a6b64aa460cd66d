package status

// Summary is a flat count of tasks across every terminal in a snapshot.
type Summary struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"in_progress"`
	Pending    int `json:"pending"`
	Progress   int `json:"progress"`
}

// Summarize totals the snapshot's tasks. Progress is the share of all tasks
// that are completed, truncated to an integer percentage.
func Summarize(snapshot Snapshot) Summary {
	var summary Summary
	for _, entry := range snapshot.Terminals {
		summary.Completed += len(entry.Tasks.Completed)
		summary.InProgress += len(entry.Tasks.InProgress)
		summary.Pending += len(entry.Tasks.Pending)
	}
	summary.Total = summary.Completed + summary.InProgress + summary.Pending
	if summary.Total > 0 {
		summary.Progress = summary.Completed * 100 / summary.Total
	}
	return summary
}
