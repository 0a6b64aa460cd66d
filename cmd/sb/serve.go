package main

import (
	"fmt"
	"log"
	"os"

	"github.com/amonks/swarmboard/internal/config"
	"github.com/amonks/swarmboard/internal/paths"
	"github.com/amonks/swarmboard/project"
	"github.com/amonks/swarmboard/swarm"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the swarm server",
	Long: `Start the swarm server. It pushes project snapshots to subscribers on
every heartbeat and every file change, and serves the kanban board at /web/.

The project is taken from --project, or from the working directory when it
contains a project. Without one the server starts idle until a project is
selected.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address or port (default: configured port)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	p, err := serveProject()
	if err != nil {
		return err
	}
	cfg, err := config.Load(p.Root)
	if err != nil {
		return err
	}
	projectsDir, err := cfg.ResolveProjectsDir()
	if err != nil {
		return err
	}
	addr, err := swarm.ResolveAddr(cfg, serveAddr)
	if err != nil {
		return err
	}

	server, err := swarm.NewServer(serveOptions(p, projectsDir, cfg))
	if err != nil {
		return err
	}
	fmt.Printf("Serving on http://%s/web/board\n", addr)
	return server.Serve(addr)
}

func serveOptions(p project.Project, projectsDir string, cfg *config.Config) swarm.ServerOptions {
	return swarm.ServerOptions{
		Project:            p,
		ProjectsDir:        projectsDir,
		Heartbeat:          cfg.Server.Heartbeat,
		Watch:              cfg.Server.Watch,
		Debounce:           cfg.Server.Debounce,
		History:            cfg.History.Enabled,
		DuplicateThreshold: cfg.Ledger.DuplicateThreshold,
		UpdateThreshold:    cfg.Ledger.UpdateThreshold,
		Logger:             log.New(os.Stderr, "swarm: ", log.LstdFlags),
	}
}

// serveProject returns the project to load at startup, or the zero project
// when there is none.
func serveProject() (project.Project, error) {
	if projectFlag != "" {
		return resolveProjectFlag(projectFlag)
	}
	cwd, err := paths.WorkingDir()
	if err != nil {
		return project.Project{}, err
	}
	if !looksLikeProject(cwd) {
		return project.Project{}, nil
	}
	return project.Open(cwd)
}
