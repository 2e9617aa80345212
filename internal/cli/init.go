package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fspx/internal/ferrors"
)

// InitCmd creates the project scaffolding: inputs/ and src/ for the
// configurator's raw materials, and .fspx/ for manifests and the
// materialized project description (SPEC_FULL.md §7; the original
// Python's cmd_init created inputs/ and src/ but collapsed them into one
// directory via a tuple/list bug not reproduced here).
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "create inputs/, src/, and .fspx/ if absent",
	Run: func(cmd *cobra.Command, args []string) {
		for _, dir := range []string{"inputs", "src", cfgDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				fail(&ferrors.IoError{Op: "mkdir " + dir, Err: err})
			}
		}
		fmt.Println("initialized project")
	},
}
