package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fspx/internal/dag"
)

// ListCmd prints each job name on a line, in post-order (spec.md §6).
var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "print each job name on a line",
	Run: func(cmd *cobra.Command, args []string) {
		e, err := loadEnv()
		if err != nil {
			fail(err)
		}
		nodes, err := dag.FindAllJobs(e.Project.Jobsets)
		if err != nil {
			fail(err)
		}
		for _, n := range nodes {
			fmt.Println(n.Name)
		}
	},
}
