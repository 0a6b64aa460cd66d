package main

import (
	"fmt"
	"io"
	"os"

	"github.com/amonks/swarmboard/internal/ui"
	"github.com/amonks/swarmboard/project"
	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects in the projects directory",
	Args:  cobra.NoArgs,
	RunE:  runProjects,
}

var projectsJSON bool

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.Flags().BoolVar(&projectsJSON, "json", false, "Output as JSON")
}

func runProjects(cmd *cobra.Command, _ []string) error {
	cfg, err := globalConfig()
	if err != nil {
		return err
	}
	dir, err := cfg.ResolveProjectsDir()
	if err != nil {
		return err
	}
	projects, err := project.Discover(dir)
	if err != nil {
		return err
	}
	if projectsJSON {
		if projects == nil {
			projects = []project.Metadata{}
		}
		return encodeJSONToStdout(projects)
	}
	return writeProjectsTable(os.Stdout, dir, projects)
}

func writeProjectsTable(w io.Writer, dir string, projects []project.Metadata) error {
	if len(projects) == 0 {
		_, err := fmt.Fprintf(w, "No projects found in %s.\n", dir)
		return err
	}
	builder := ui.NewTableBuilder([]string{"NAME", "STATUS", "CREATED", "PATH"}, len(projects))
	for _, item := range projects {
		builder.AddRow(item.Name, item.Status, item.Created, item.Path)
	}
	_, err := io.WriteString(w, builder.String())
	return err
}
