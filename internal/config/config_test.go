package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amonks/swarmboard/internal/config"
	"github.com/amonks/swarmboard/internal/testsupport"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoad_NotFound(t *testing.T) {
	testsupport.SetupTestHome(t)

	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := config.Default()
	if *cfg != *want {
		t.Fatalf("expected defaults %+v, got %+v", *want, *cfg)
	}
}

func TestLoad_Full(t *testing.T) {
	testsupport.SetupTestHome(t)
	projectRoot := t.TempDir()

	writeConfig(t, filepath.Join(projectRoot, config.FileName), `
[server]
port = 6100
heartbeat = "2s"
watch = false
debounce = "250ms"
projects-dir = "/srv/projects"

[ledger]
duplicate-threshold = 0.65
update-threshold = 0.9

[history]
enabled = false
`)

	cfg, err := config.Load(projectRoot)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Port != 6100 {
		t.Errorf("expected port 6100, got %d", cfg.Server.Port)
	}
	if cfg.Server.Heartbeat != 2*time.Second {
		t.Errorf("expected heartbeat 2s, got %v", cfg.Server.Heartbeat)
	}
	if cfg.Server.Watch {
		t.Error("expected watch disabled")
	}
	if cfg.Server.Debounce != 250*time.Millisecond {
		t.Errorf("expected debounce 250ms, got %v", cfg.Server.Debounce)
	}
	if cfg.Server.ProjectsDir != "/srv/projects" {
		t.Errorf("expected projects dir, got %q", cfg.Server.ProjectsDir)
	}
	if cfg.Ledger.DuplicateThreshold != 0.65 || cfg.Ledger.UpdateThreshold != 0.9 {
		t.Errorf("unexpected thresholds %+v", cfg.Ledger)
	}
	if cfg.History.Enabled {
		t.Error("expected history disabled")
	}
}

func TestLoad_ZeroHeartbeatDisables(t *testing.T) {
	testsupport.SetupTestHome(t)
	projectRoot := t.TempDir()
	writeConfig(t, filepath.Join(projectRoot, config.FileName), "[server]\nheartbeat = \"0s\"\n")

	cfg, err := config.Load(projectRoot)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Heartbeat != 0 {
		t.Fatalf("expected heartbeat disabled, got %v", cfg.Server.Heartbeat)
	}
	if cfg.Server.Port != config.DefaultPort {
		t.Fatalf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestLoad_ProjectOverridesGlobal(t *testing.T) {
	home := testsupport.SetupTestHome(t)
	projectRoot := t.TempDir()

	globalPath, err := config.GlobalPath()
	if err != nil {
		t.Fatalf("global path: %v", err)
	}
	if globalPath != home.GlobalConfigPath() {
		t.Fatalf("expected global config under test home, got %s", globalPath)
	}
	writeConfig(t, globalPath, "[server]\nport = 7000\nwatch = false\n\n[ledger]\nupdate-threshold = 0.85\n")
	writeConfig(t, filepath.Join(projectRoot, config.FileName), "[server]\nport = 7100\n")

	cfg, err := config.Load(projectRoot)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Port != 7100 {
		t.Errorf("expected project port, got %d", cfg.Server.Port)
	}
	if cfg.Server.Watch {
		t.Error("expected global watch=false to apply")
	}
	if cfg.Ledger.UpdateThreshold != 0.85 {
		t.Errorf("expected global update threshold, got %v", cfg.Ledger.UpdateThreshold)
	}
	if cfg.Ledger.DuplicateThreshold != config.DefaultDuplicateThreshold {
		t.Errorf("expected default duplicate threshold, got %v", cfg.Ledger.DuplicateThreshold)
	}
}

func TestLoad_GlobalOnly(t *testing.T) {
	testsupport.SetupTestHome(t)

	globalPath, err := config.GlobalPath()
	if err != nil {
		t.Fatalf("global path: %v", err)
	}
	writeConfig(t, globalPath, "[server]\nprojects-dir = \"~/work/swarm\"\n")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	dir, err := cfg.ResolveProjectsDir()
	if err != nil {
		t.Fatalf("resolve projects dir: %v", err)
	}
	home, _ := os.UserHomeDir()
	if dir != filepath.Join(home, "work", "swarm") {
		t.Fatalf("expected expanded projects dir, got %q", dir)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	testsupport.SetupTestHome(t)
	projectRoot := t.TempDir()
	writeConfig(t, filepath.Join(projectRoot, config.FileName), "[server\nport = 1\n")

	if _, err := config.Load(projectRoot); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	testsupport.SetupTestHome(t)
	projectRoot := t.TempDir()
	writeConfig(t, filepath.Join(projectRoot, config.FileName), "[server]\nprot = 1\n")

	_, err := config.Load(projectRoot)
	if err == nil || !strings.Contains(err.Error(), "server.prot") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoad_RejectsBadThreshold(t *testing.T) {
	testsupport.SetupTestHome(t)
	projectRoot := t.TempDir()
	writeConfig(t, filepath.Join(projectRoot, config.FileName), "[ledger]\nduplicate-threshold = 1.5\n")

	if _, err := config.Load(projectRoot); err == nil {
		t.Fatal("expected threshold error")
	}
}
