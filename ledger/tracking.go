package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/amonks/swarmboard/internal/filelock"
)

// Tracking is the bookkeeping record of task ids by state. It is a cache of
// what the documents say and is rebuilt from a Scan on every write.
type Tracking struct {
	LastUpdated time.Time `json:"last_updated"`
	Completed   []string  `json:"completed"`
	InProgress  []string  `json:"in_progress"`
	Pending     []string  `json:"pending"`
}

// NewTracking builds tracking data from a scan.
func NewTracking(scan Scan, now time.Time) Tracking {
	tracking := Tracking{
		LastUpdated: now,
		Completed:   []string{},
		InProgress:  []string{},
		Pending:     []string{},
	}
	for _, task := range scan.Tasks() {
		switch task.State {
		case StateCompleted:
			tracking.Completed = append(tracking.Completed, task.ID)
		case StateInProgress:
			tracking.InProgress = append(tracking.InProgress, task.ID)
		default:
			tracking.Pending = append(tracking.Pending, task.ID)
		}
	}
	return tracking
}

// LoadTracking reads the tracking file. A missing file yields zero Tracking.
func LoadTracking(path string) (Tracking, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Tracking{}, nil
	}
	if err != nil {
		return Tracking{}, fmt.Errorf("read tracking file: %w", err)
	}
	var tracking Tracking
	if err := json.Unmarshal(data, &tracking); err != nil {
		return Tracking{}, fmt.Errorf("parse tracking file: %w", err)
	}
	return tracking, nil
}

// SaveTracking writes tracking data under the file's lock.
func SaveTracking(path string, tracking Tracking) error {
	data, err := json.MarshalIndent(tracking, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tracking file: %w", err)
	}
	data = append(data, '\n')
	return filelock.With(path, func() error {
		return filelock.WriteFile(path, data)
	})
}

// RecordTracking rewrites the project's tracking file from scan.
func (s *Store) RecordTracking(scan Scan, now time.Time) error {
	return SaveTracking(s.project.TrackingPath(), NewTracking(scan, now))
}
