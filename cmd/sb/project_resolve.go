package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/amonks/swarmboard/internal/config"
	"github.com/amonks/swarmboard/internal/paths"
	"github.com/amonks/swarmboard/project"
)

// resolveProject returns the project selected by --project and its merged
// configuration. A bare name is looked up in the configured projects
// directory before being treated as a path; an empty flag selects the
// working directory.
func resolveProject() (project.Project, *config.Config, error) {
	p, err := resolveProjectFlag(projectFlag)
	if err != nil {
		return project.Project{}, nil, err
	}
	cfg, err := config.Load(p.Root)
	if err != nil {
		return project.Project{}, nil, err
	}
	return p, cfg, nil
}

func resolveProjectFlag(value string) (project.Project, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		cwd, err := paths.WorkingDir()
		if err != nil {
			return project.Project{}, err
		}
		return project.Open(cwd)
	}
	if isBareName(value) {
		globalCfg, err := config.Load("")
		if err != nil {
			return project.Project{}, err
		}
		projectsDir, err := globalCfg.ResolveProjectsDir()
		if err != nil {
			return project.Project{}, err
		}
		p, err := project.Find(projectsDir, value)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, project.ErrProjectNotFound) {
			return project.Project{}, err
		}
	}
	return project.Open(value)
}

func isBareName(value string) bool {
	return value != "." && value != ".." && !strings.ContainsAny(value, `/\`) && !strings.HasPrefix(value, "~")
}

// looksLikeProject reports whether root has any of a project's files.
func looksLikeProject(root string) bool {
	for _, name := range []string{project.TodoDirName, project.CoordinationDirName, project.ConfigFile} {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			return true
		}
	}
	return false
}

// globalConfig loads the configuration that applies outside any project.
func globalConfig() (*config.Config, error) {
	return config.Load("")
}
