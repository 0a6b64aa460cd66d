package paths

import (
	"path/filepath"
	"testing"
)

func TestHomeDirUsesHome(t *testing.T) {
	t.Setenv("HOME", filepath.Join("/tmp", "test-home"))

	home, err := HomeDir()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if home != filepath.Join("/tmp", "test-home") {
		t.Fatalf("expected %s, got %s", filepath.Join("/tmp", "test-home"), home)
	}
}

func TestDefaultConfigDirUsesHome(t *testing.T) {
	t.Setenv("HOME", filepath.Join("/tmp", "test-home"))

	dir, err := DefaultConfigDir()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expected := filepath.Join("/tmp", "test-home", ".config", "swarmboard")
	if dir != expected {
		t.Fatalf("expected %s, got %s", expected, dir)
	}
}

func TestDefaultProjectsDirUsesHome(t *testing.T) {
	t.Setenv("HOME", filepath.Join("/tmp", "test-home"))

	dir, err := DefaultProjectsDir()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expected := filepath.Join("/tmp", "test-home", "swarm", "projects")
	if dir != expected {
		t.Fatalf("expected %s, got %s", expected, dir)
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", filepath.Join("/tmp", "test-home"))

	cases := map[string]string{
		"~":            filepath.Join("/tmp", "test-home"),
		"~/projects":   filepath.Join("/tmp", "test-home", "projects"),
		"/abs/path":    "/abs/path",
		"relative/dir": "relative/dir",
		"~other/dir":   "~other/dir",
	}
	for input, want := range cases {
		got, err := ExpandHome(input)
		if err != nil {
			t.Fatalf("expand %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("expand %q: expected %q, got %q", input, want, got)
		}
	}
}

func TestAbsoluteJoinsWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	got, err := Absolute("proj")
	if err != nil {
		t.Fatalf("absolute: %v", err)
	}
	cwd, err := WorkingDir()
	if err != nil {
		t.Fatalf("working dir: %v", err)
	}
	if got != filepath.Join(cwd, "proj") {
		t.Fatalf("expected %s, got %s", filepath.Join(cwd, "proj"), got)
	}
}
