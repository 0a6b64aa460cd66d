// Package config handles loading swarmboard.toml configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/amonks/swarmboard/internal/paths"
)

// FileName is the project-level config file name.
const FileName = "swarmboard.toml"

// Defaults for settings left unset in every config file.
const (
	DefaultPort               = 5000
	DefaultHeartbeat          = 5 * time.Second
	DefaultDebounce           = 100 * time.Millisecond
	DefaultDuplicateThreshold = 0.70
	DefaultUpdateThreshold    = 0.80
)

// Config represents the swarmboard.toml configuration file.
type Config struct {
	Server  Server  `toml:"server"`
	Ledger  Ledger  `toml:"ledger"`
	History History `toml:"history"`
}

// Server contains settings for `sb serve`.
type Server struct {
	Port int `toml:"port"`

	// Heartbeat is the interval between unconditional snapshot pushes.
	// Zero disables the heartbeat.
	Heartbeat time.Duration `toml:"heartbeat"`

	// Watch enables filesystem change notifications.
	Watch bool `toml:"watch"`

	// Debounce coalesces bursts of filesystem events.
	Debounce time.Duration `toml:"debounce"`

	// ProjectsDir is scanned by project discovery.
	ProjectsDir string `toml:"projects-dir"`
}

// Ledger contains similarity thresholds.
type Ledger struct {
	DuplicateThreshold float64 `toml:"duplicate-threshold"`
	UpdateThreshold    float64 `toml:"update-threshold"`
}

// History controls the snapshot history log.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Default returns the configuration used when no file sets anything.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:      DefaultPort,
			Heartbeat: DefaultHeartbeat,
			Watch:     true,
			Debounce:  DefaultDebounce,
		},
		Ledger: Ledger{
			DuplicateThreshold: DefaultDuplicateThreshold,
			UpdateThreshold:    DefaultUpdateThreshold,
		},
		History: History{Enabled: true},
	}
}

// Load loads configuration from the project root and the global config
// file. Settings in the project file override the global file; settings in
// neither take their defaults.
func Load(projectRoot string) (*Config, error) {
	globalPath, err := GlobalPath()
	if err != nil {
		return nil, err
	}

	globalCfg, globalMeta, err := loadConfigFile(globalPath)
	if err != nil {
		return nil, err
	}

	projectCfg := &Config{}
	projectMeta := toml.MetaData{}
	if projectRoot != "" {
		projectCfg, projectMeta, err = loadConfigFile(filepath.Join(projectRoot, FileName))
		if err != nil {
			return nil, err
		}
	}

	merged := mergeConfigs(globalCfg, projectCfg, globalMeta, projectMeta)
	if err := merged.validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// GlobalPath returns the path of the global config file.
func GlobalPath() (string, error) {
	dir, err := paths.DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ResolveProjectsDir returns the configured projects directory with "~"
// expanded, or the default when unset.
func (c *Config) ResolveProjectsDir() (string, error) {
	dir := strings.TrimSpace(c.Server.ProjectsDir)
	if dir == "" {
		return paths.DefaultProjectsDir()
	}
	return paths.Absolute(dir)
}

func loadConfigFile(path string) (*Config, toml.MetaData, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, toml.MetaData{}, nil
	}
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, toml.MetaData{}, fmt.Errorf("parse config file %s: unknown key %s", path, undecoded[0])
	}

	return &cfg, meta, nil
}

func mergeConfigs(globalCfg, projectCfg *Config, globalMeta, projectMeta toml.MetaData) *Config {
	if globalCfg == nil {
		globalCfg = &Config{}
	}
	if projectCfg == nil {
		projectCfg = &Config{}
	}
	defaults := Default()

	pick := func(key ...string) (bool, bool) {
		return projectMeta.IsDefined(key...), globalMeta.IsDefined(key...)
	}

	merged := Config{}
	p, g := pick("server", "port")
	merged.Server.Port = mergeValue(p, g, projectCfg.Server.Port, globalCfg.Server.Port, defaults.Server.Port)
	p, g = pick("server", "heartbeat")
	merged.Server.Heartbeat = mergeValue(p, g, projectCfg.Server.Heartbeat, globalCfg.Server.Heartbeat, defaults.Server.Heartbeat)
	p, g = pick("server", "watch")
	merged.Server.Watch = mergeValue(p, g, projectCfg.Server.Watch, globalCfg.Server.Watch, defaults.Server.Watch)
	p, g = pick("server", "debounce")
	merged.Server.Debounce = mergeValue(p, g, projectCfg.Server.Debounce, globalCfg.Server.Debounce, defaults.Server.Debounce)
	p, g = pick("server", "projects-dir")
	merged.Server.ProjectsDir = strings.TrimSpace(mergeValue(p, g, projectCfg.Server.ProjectsDir, globalCfg.Server.ProjectsDir, defaults.Server.ProjectsDir))
	p, g = pick("ledger", "duplicate-threshold")
	merged.Ledger.DuplicateThreshold = mergeValue(p, g, projectCfg.Ledger.DuplicateThreshold, globalCfg.Ledger.DuplicateThreshold, defaults.Ledger.DuplicateThreshold)
	p, g = pick("ledger", "update-threshold")
	merged.Ledger.UpdateThreshold = mergeValue(p, g, projectCfg.Ledger.UpdateThreshold, globalCfg.Ledger.UpdateThreshold, defaults.Ledger.UpdateThreshold)
	p, g = pick("history", "enabled")
	merged.History.Enabled = mergeValue(p, g, projectCfg.History.Enabled, globalCfg.History.Enabled, defaults.History.Enabled)

	return &merged
}

func mergeValue[T any](projectDefined, globalDefined bool, projectValue, globalValue, fallback T) T {
	switch {
	case projectDefined:
		return projectValue
	case globalDefined:
		return globalValue
	default:
		return fallback
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.Heartbeat < 0 {
		return fmt.Errorf("server.heartbeat must not be negative")
	}
	if c.Server.Debounce < 0 {
		return fmt.Errorf("server.debounce must not be negative")
	}
	for name, threshold := range map[string]float64{
		"ledger.duplicate-threshold": c.Ledger.DuplicateThreshold,
		"ledger.update-threshold":    c.Ledger.UpdateThreshold,
	} {
		if threshold <= 0 || threshold > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", name, threshold)
		}
	}
	return nil
}
