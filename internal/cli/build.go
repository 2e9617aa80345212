package cli

import (
	"errors"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"fspx/internal/ferrors"
)

// configurator is the external project-description generator, an
// out-of-scope collaborator per spec.md §1. SPEC_FULL.md §7 keeps this
// as a named, swappable command rather than hardcoding the original
// Python source's "nix-build .../project.nix" invocation.
var configurator string

func init() {
	BuildCmd.Flags().StringVar(&configurator, "configurator", "fspx-configure", "external project-description generator")
}

// BuildCmd invokes the configurator to materialize .fspx/cfg/project.json
// from a config file, exiting with its exit code on failure (spec.md §6).
var BuildCmd = &cobra.Command{
	Use:   "build <config_file>",
	Short: "invoke the external configurator to materialize project.json",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := os.MkdirAll(cfgDir+"/cfg", 0o755); err != nil {
			fail(&ferrors.IoError{Op: "mkdir " + cfgDir + "/cfg", Err: err})
		}

		c := exec.CommandContext(cmd.Context(), configurator, args[0], "--out", projectPath)
		c.Env = os.Environ()
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		if err := c.Run(); err != nil {
			code := 1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			}
			os.Stderr.WriteString(err.Error() + "\n")
			os.Exit(code)
		}
	},
}
