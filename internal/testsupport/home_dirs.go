package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Home is an isolated home directory laid out the way sb expects.
type Home struct {
	Dir         string
	ConfigDir   string
	ProjectsDir string
}

// NewHome creates the config and projects directories under dir.
func NewHome(dir string) (Home, error) {
	home := Home{
		Dir:         dir,
		ConfigDir:   filepath.Join(dir, ".config", "swarmboard"),
		ProjectsDir: filepath.Join(dir, "swarm", "projects"),
	}
	for _, path := range []string{home.ConfigDir, home.ProjectsDir} {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return Home{}, fmt.Errorf("create %s: %w", path, err)
		}
	}
	return home, nil
}

// GlobalConfigPath is the global config file inside the home.
func (h Home) GlobalConfigPath() string {
	return filepath.Join(h.ConfigDir, "config.toml")
}

// SetupTestHome points HOME at a fresh Home and clears SB_ADDR for the test.
func SetupTestHome(t testing.TB) Home {
	t.Helper()

	home, err := NewHome(t.TempDir())
	if err != nil {
		t.Fatalf("setup home dir: %v", err)
	}
	t.Setenv("HOME", home.Dir)
	t.Setenv("SB_ADDR", "")
	return home
}
