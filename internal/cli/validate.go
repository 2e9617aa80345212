package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fspx/internal/dag"
	"fspx/internal/dcontext"
	"fspx/internal/project"
	"fspx/internal/runner"
	"fspx/internal/stale"
	"fspx/internal/validator"
)

var validateLauncher string

func init() {
	ValidateCmd.Flags().StringVarP(&validateLauncher, "launcher", "l", "", "override job launcher for this invocation")
}

// ValidateCmd ensures the target job(s) are fresh, then re-runs each
// into a shadow working directory and compares output hashes (spec.md
// §4.6, §6).
var ValidateCmd = &cobra.Command{
	Use:   "validate [job]",
	Short: "ensure fresh, then re-run into a shadow dir and compare",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := loadEnv()
		if err != nil {
			fail(err)
		}
		ctx := dcontext.Background()

		var targets []dag.Node
		if len(args) == 1 {
			job, err := dag.FindJob(e.Project.Jobsets, args[0])
			if err != nil {
				fail(err)
			}
			targets = []dag.Node{{Name: args[0], Job: job}}
		} else {
			nodes, err := dag.FindAllJobs(e.Project.Jobsets)
			if err != nil {
				fail(err)
			}
			targets = nodes
		}

		r := runner.New(e.Manifests, e.Store)
		r.Launcher = validateLauncher
		checker := stale.New(e.Manifests, e.Store)
		for _, n := range targets {
			fresh, err := checker.CheckJob(n.Name, n.Job)
			if err != nil {
				fail(err)
			}
			if !fresh {
				if err := r.RunJob(ctx, n.Name, n.Job); err != nil {
					fail(err)
				}
			}
		}

		v := validator.New(e.Manifests, e.Store)
		v.Launcher = validateLauncher

		allOK := true
		for _, n := range targets {
			ok, err := validateJob(ctx, v, n.Name, n.Job)
			if err != nil {
				fail(err)
			}
			if !ok {
				allOK = false
			}
		}
		if !allOK {
			os.Exit(1)
		}
	},
}

func validateJob(ctx context.Context, v *validator.Validator, name string, job *project.Job) (bool, error) {
	ok, err := v.Validate(ctx, name, job)
	if err != nil {
		return false, err
	}
	if !ok {
		fmt.Printf("%s: cannot be reproduced\n", name)
	}
	return ok, nil
}
