// Package listflags holds flags shared by listing commands.
package listflags

import "github.com/spf13/cobra"

// AddAllFlag registers --all/-a. Listings hide completed tasks unless it is set.
func AddAllFlag(cmd *cobra.Command, target *bool) {
	cmd.Flags().BoolVarP(target, "all", "a", false, "Include completed tasks")
}
