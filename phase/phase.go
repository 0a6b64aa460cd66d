// Package phase reads and updates the project's phase-status store.
//
// The store is a JSON object with a "current_phase" number and one
// "phase_<n>" entry per phase. Phases are never removed. Keys this package
// does not understand are kept verbatim when the file is rewritten.
package phase

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/amonks/swarmboard/internal/filelock"
	"github.com/amonks/swarmboard/internal/validation"
	"github.com/amonks/swarmboard/ledger"
	"github.com/amonks/swarmboard/project"
)

// Status is the lifecycle state of a phase or a terminal's assignment.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusWaiting    Status = "WAITING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// ValidStatuses returns all valid status values.
func ValidStatuses() []Status {
	return []Status{StatusNotStarted, StatusWaiting, StatusInProgress, StatusCompleted}
}

// IsValid returns true if the status is a known valid value.
func (s Status) IsValid() bool {
	for _, valid := range ValidStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// ParseStatus accepts a status in any case, with '-' or ' ' for '_'.
func ParseStatus(value string) (Status, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	status := Status(normalized)
	if !status.IsValid() {
		return "", validation.FormatInvalidValueError(ErrInvalidStatus, Status(value), ValidStatuses())
	}
	return status, nil
}

var (
	// ErrInvalidStatus is returned when an unknown status is provided.
	ErrInvalidStatus = errors.New("invalid phase status")

	// ErrInvalidPhase is returned for phase numbers below 1.
	ErrInvalidPhase = errors.New("invalid phase number")
)

const (
	currentPhaseKey = "current_phase"
	phaseKeyPrefix  = "phase_"
)

// ClampProgress limits a percentage to [0, 100].
func ClampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

// Assignment is one terminal's work within a phase.
type Assignment struct {
	Task     string `json:"task"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
}

// Phase is one entry of the store.
type Phase struct {
	Number    int                   `json:"-"`
	Name      string                `json:"name"`
	Status    Status                `json:"status"`
	Terminals map[string]Assignment `json:"terminals"`
}

// Assignment returns the terminal's assignment, if any. Progress is clamped.
func (p Phase) Assignment(terminal int) (Assignment, bool) {
	assignment, ok := p.Terminals[strconv.Itoa(terminal)]
	if !ok {
		return Assignment{}, false
	}
	assignment.Progress = ClampProgress(assignment.Progress)
	if assignment.Status == "" {
		assignment.Status = StatusNotStarted
	}
	return assignment, true
}

// File is the decoded phase-status store.
type File struct {
	CurrentPhase int
	Phases       map[int]Phase

	extra map[string]json.RawMessage
}

// Current returns the current phase, if present.
func (f File) Current() (Phase, bool) {
	current := f.CurrentPhase
	if current < 1 {
		current = 1
	}
	phase, ok := f.Phases[current]
	if !ok {
		return Phase{Number: current}, false
	}
	return phase, true
}

// Numbers returns the phase numbers in ascending order.
func (f File) Numbers() []int {
	numbers := make([]int, 0, len(f.Phases))
	for number := range f.Phases {
		numbers = append(numbers, number)
	}
	sort.Ints(numbers)
	return numbers
}

// UnmarshalJSON decodes phase_<n> keys into Phases.
func (f *File) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.CurrentPhase = 1
	f.Phases = make(map[int]Phase)
	f.extra = make(map[string]json.RawMessage)
	for key, value := range raw {
		if key == currentPhaseKey {
			var current int
			if err := json.Unmarshal(value, &current); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			f.CurrentPhase = current
			continue
		}
		number, ok := phaseNumber(key)
		if !ok {
			f.extra[key] = value
			continue
		}
		var phase Phase
		if err := json.Unmarshal(value, &phase); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		phase.Number = number
		f.Phases[number] = phase
	}
	return nil
}

// MarshalJSON encodes Phases back into phase_<n> keys.
func (f File) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.Phases)+len(f.extra)+1)
	for key, value := range f.extra {
		out[key] = value
	}
	current := f.CurrentPhase
	if current < 1 {
		current = 1
	}
	out[currentPhaseKey] = current
	for number, phase := range f.Phases {
		if phase.Terminals == nil {
			phase.Terminals = map[string]Assignment{}
		}
		out[phaseKeyPrefix+strconv.Itoa(number)] = phase
	}
	// encoding/json sorts map keys, so output is deterministic.
	return json.Marshal(out)
}

func phaseNumber(key string) (int, bool) {
	suffix, ok := strings.CutPrefix(key, phaseKeyPrefix)
	if !ok {
		return 0, false
	}
	number, err := strconv.Atoi(suffix)
	if err != nil || number < 1 {
		return 0, false
	}
	return number, true
}

// Load reads the store at path. A missing file yields an empty store whose
// current phase is 1.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return File{CurrentPhase: 1, Phases: map[int]Phase{}}, nil
	}
	if err != nil {
		return File{}, fmt.Errorf("read phase status: %w", err)
	}
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("parse phase status: %w", err)
	}
	return file, nil
}

// Store updates a project's phase-status file.
type Store struct {
	path string
}

// Open returns the phase store for p.
func Open(p project.Project) *Store {
	return &Store{path: p.PhaseStatusPath()}
}

// Path returns the file the store reads.
func (s *Store) Path() string {
	return s.path
}

// Load reads the store.
func (s *Store) Load() (File, error) {
	return Load(s.path)
}

// Update describes changes to a terminal's assignment. Nil fields are left alone.
type Update struct {
	Task     *string
	Status   *Status
	Progress *int
}

// SetAssignment applies update to the terminal's assignment in the given
// phase, creating the phase or assignment when missing.
func (s *Store) SetAssignment(number, terminal int, update Update) (Assignment, error) {
	if number < 1 {
		return Assignment{}, fmt.Errorf("%w: %d", ErrInvalidPhase, number)
	}
	if err := ledger.ValidateTerminal(terminal); err != nil {
		return Assignment{}, err
	}
	if update.Status != nil && !update.Status.IsValid() {
		return Assignment{}, validation.FormatInvalidValueError(ErrInvalidStatus, *update.Status, ValidStatuses())
	}

	var result Assignment
	err := filelock.With(s.path, func() error {
		file, err := Load(s.path)
		if err != nil {
			return err
		}
		phase, ok := file.Phases[number]
		if !ok {
			phase = Phase{Number: number, Status: StatusNotStarted}
		}
		if phase.Terminals == nil {
			phase.Terminals = map[string]Assignment{}
		}
		key := strconv.Itoa(terminal)
		assignment, ok := phase.Terminals[key]
		if !ok {
			assignment = Assignment{Status: StatusNotStarted}
		}
		if update.Task != nil {
			assignment.Task = *update.Task
		}
		if update.Status != nil {
			assignment.Status = *update.Status
		}
		if update.Progress != nil {
			assignment.Progress = ClampProgress(*update.Progress)
		}
		phase.Terminals[key] = assignment
		file.Phases[number] = phase
		result = assignment

		data, err := json.MarshalIndent(file, "", "  ")
		if err != nil {
			return fmt.Errorf("encode phase status: %w", err)
		}
		return filelock.WriteFile(s.path, append(data, '\n'))
	})
	return result, err
}
