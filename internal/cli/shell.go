package cli

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"fspx/internal/dag"
	"fspx/internal/dcontext"
	"fspx/internal/ferrors"
	"fspx/internal/project"
	"fspx/internal/runner"
)

// ShellCmd stages a job's inputs into its workdir, then execs an
// interactive shell running the job's env string (SPEC_FULL.md §7: the
// original Python source invoked "nix-shell -p <env>"; fspx generalizes
// env to an opaque command run via "$SHELL -c <env>", per spec.md §3's
// description of env as "opaque to the engine").
var ShellCmd = &cobra.Command{
	Use:   "shell <job>",
	Short: "stage a job's inputs, then open an interactive environment",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := loadEnv()
		if err != nil {
			fail(err)
		}

		job, err := dag.FindJob(e.Project.Jobsets, args[0])
		if err != nil {
			fail(err)
		}

		r := runner.New(e.Manifests, e.Store)
		ctx := dcontext.Background()

		if err := r.Stage(args[0], job); err != nil {
			fail(err)
		}

		shell := os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/sh"
		}

		c := exec.CommandContext(ctx, shell, "-c", job.Env)
		c.Dir = project.ExpandWorkdir(job)
		c.Env = os.Environ()
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		if err := c.Run(); err != nil {
			fail(&ferrors.SubprocessFailed{Job: args[0], Command: shell, Code: 1})
		}
	},
}
