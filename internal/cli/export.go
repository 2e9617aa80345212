package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fspx/internal/cas"
	"fspx/internal/export"
)

// ExportCmd produces a self-contained archive of the current project
// under toDir, backed by a fresh store at targetStore (spec.md §4.7, §6).
var ExportCmd = &cobra.Command{
	Use:   "export <target_dir> <target_store>",
	Short: "produce a self-contained archive of the project",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := loadEnv()
		if err != nil {
			fail(err)
		}

		toDir, targetStore := args[0], args[1]
		exporter := export.New(e.Store, cas.New(targetStore), e.Manifests)
		if err := exporter.Export(toDir, e.Project); err != nil {
			fail(err)
		}
		fmt.Printf("exported to %s\n", toDir)
	},
}
