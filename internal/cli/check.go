package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fspx/internal/stale"
)

// CheckCmd runs the staleness checker and prints the stale job names,
// exiting 1 if the jobset is not valid (spec.md §6).
var CheckCmd = &cobra.Command{
	Use:   "check",
	Short: "run staleness check; exit 1 if anything is stale",
	Run: func(cmd *cobra.Command, args []string) {
		e, err := loadEnv()
		if err != nil {
			fail(err)
		}

		checker := stale.New(e.Manifests, e.Store)
		recalc, valid, err := checker.CheckJobset(e.Project.Jobsets)
		if err != nil {
			fail(err)
		}

		for _, n := range recalc {
			fmt.Println(n.Name)
		}
		if !valid {
			os.Exit(1)
		}
	},
}
