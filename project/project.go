// Package project locates a swarm project on disk and describes its layout.
//
// A project is passed explicitly to every ledger, status and watch operation;
// nothing in this module keeps a process-wide "current project".
package project

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/amonks/swarmboard/internal/paths"
	internalstrings "github.com/amonks/swarmboard/internal/strings"
)

const (
	// TodoDirName holds the per-terminal task documents.
	TodoDirName = "todo"

	// CoordinationDirName holds phase status and bookkeeping files.
	CoordinationDirName = "coordination"

	// PhaseStatusFile is the phase-status store inside the coordination dir.
	PhaseStatusFile = "phase-status.json"

	// TrackingFile is the task bookkeeping file inside the coordination dir.
	TrackingFile = "task-tracking.json"

	// HistoryFile is the snapshot history database inside the coordination dir.
	HistoryFile = "history.db"

	// ConfigFile is the KEY="VALUE" project metadata file at the project root.
	ConfigFile = "swarm.config"
)

var (
	// ErrProjectNotFound is returned when a project directory does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrInvalidProjectName is returned for names that would escape the projects dir.
	ErrInvalidProjectName = errors.New("invalid project name")
)

// Project identifies a project root.
type Project struct {
	Name string `json:"name"`
	Root string `json:"path"`
}

// Metadata describes a discovered project.
type Metadata struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Created string `json:"created"`
	Status  string `json:"status"`
}

// Open resolves root into a Project. The directory must exist.
func Open(root string) (Project, error) {
	if internalstrings.IsBlank(root) {
		return Project{}, fmt.Errorf("project path is required")
	}
	abs, err := paths.Absolute(root)
	if err != nil {
		return Project{}, err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, abs)
	}
	if err != nil {
		return Project{}, fmt.Errorf("stat project: %w", err)
	}
	if !info.IsDir() {
		return Project{}, fmt.Errorf("%w: %s is not a directory", ErrProjectNotFound, abs)
	}
	return Project{Name: filepath.Base(abs), Root: abs}, nil
}

// IsZero reports whether p is unset.
func (p Project) IsZero() bool {
	return p.Root == ""
}

// TodoDir returns the directory holding the task documents.
func (p Project) TodoDir() string {
	return filepath.Join(p.Root, TodoDirName)
}

// CoordinationDir returns the directory holding phase and tracking files.
func (p Project) CoordinationDir() string {
	return filepath.Join(p.Root, CoordinationDirName)
}

// DocumentName returns the file name of a terminal's task document.
func DocumentName(terminal int) string {
	return "terminal-" + strconv.Itoa(terminal) + ".md"
}

// DocumentPath returns the path of a terminal's task document.
func (p Project) DocumentPath(terminal int) string {
	return filepath.Join(p.TodoDir(), DocumentName(terminal))
}

// PhaseStatusPath returns the path of the phase-status store.
func (p Project) PhaseStatusPath() string {
	return filepath.Join(p.CoordinationDir(), PhaseStatusFile)
}

// TrackingPath returns the path of the task bookkeeping file.
func (p Project) TrackingPath() string {
	return filepath.Join(p.CoordinationDir(), TrackingFile)
}

// HistoryPath returns the path of the snapshot history database.
func (p Project) HistoryPath() string {
	return filepath.Join(p.CoordinationDir(), HistoryFile)
}

// WatchDirs returns the directories whose changes affect a snapshot.
func (p Project) WatchDirs() []string {
	return []string{p.TodoDir(), p.CoordinationDir()}
}

// ReadMetadata parses the project's swarm.config. A missing file yields an
// empty map. Values may be wrapped in double quotes.
func ReadMetadata(root string) (map[string]string, error) {
	f, err := os.Open(filepath.Join(root, ConfigFile))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open project config: %w", err)
	}
	defer f.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read project config: %w", err)
	}
	return values, nil
}

// Discover lists the projects under dir: every subdirectory holding a
// swarm.config. A missing dir yields no projects.
func Discover(dir string) ([]Metadata, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read projects dir: %w", err)
	}

	var projects []Metadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		root := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(root, ConfigFile)); err != nil {
			continue
		}
		values, err := ReadMetadata(root)
		if err != nil {
			return nil, err
		}
		projects = append(projects, Metadata{
			Name:    entry.Name(),
			Path:    root,
			Created: valueOr(values, "CREATED_AT", "Unknown"),
			Status:  valueOr(values, "STATUS", "Unknown"),
		})
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].Name < projects[j].Name
	})
	return projects, nil
}

// Find opens the project called name under dir.
func Find(dir, name string) (Project, error) {
	clean := strings.TrimSpace(name)
	if clean == "" || clean == "." || clean == ".." || strings.ContainsAny(clean, `/\`) {
		return Project{}, fmt.Errorf("%w: %q", ErrInvalidProjectName, name)
	}
	return Open(filepath.Join(dir, clean))
}

func valueOr(values map[string]string, key, fallback string) string {
	if value := strings.TrimSpace(values[key]); value != "" {
		return value
	}
	return fallback
}
