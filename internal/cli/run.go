package cli

import (
	"github.com/spf13/cobra"

	"fspx/internal/dag"
	"fspx/internal/dcontext"
	"fspx/internal/runner"
	"fspx/internal/stale"
)

var runLauncher string

func init() {
	RunCmd.Flags().StringVarP(&runLauncher, "launcher", "l", "", "override job launcher for this invocation")
}

// RunCmd runs either the stale closure (no job argument) or exactly the
// named job (spec.md §6). The launcher override, if given, is passed to
// a single Runner instance for the whole invocation and never mutated
// per job, so it cannot "stick" past this command the way the source's
// sticky-default variant did (spec.md §9).
var RunCmd = &cobra.Command{
	Use:   "run [job]",
	Short: "run the stale closure, or a single named job",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := loadEnv()
		if err != nil {
			fail(err)
		}

		r := runner.New(e.Manifests, e.Store)
		r.Launcher = runLauncher
		ctx := dcontext.Background()

		if len(args) == 1 {
			job, err := dag.FindJob(e.Project.Jobsets, args[0])
			if err != nil {
				fail(err)
			}
			if err := r.RunJob(ctx, args[0], job); err != nil {
				fail(err)
			}
			return
		}

		checker := stale.New(e.Manifests, e.Store)
		recalc, _, err := checker.CheckJobset(e.Project.Jobsets)
		if err != nil {
			fail(err)
		}
		for _, n := range recalc {
			if err := r.RunJob(ctx, n.Name, n.Job); err != nil {
				fail(err)
			}
		}
	},
}
