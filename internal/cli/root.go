package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fspx/internal/dcontext"
)

var verbose bool

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cobra.OnInitialize(func() {
		if verbose {
			dcontext.SetLevel(logrus.DebugLevel)
		}
	})

	RootCmd.AddCommand(InitCmd)
	RootCmd.AddCommand(BuildCmd)
	RootCmd.AddCommand(ListCmd)
	RootCmd.AddCommand(CheckCmd)
	RootCmd.AddCommand(RunCmd)
	RootCmd.AddCommand(ValidateCmd)
	RootCmd.AddCommand(ShellCmd)
	RootCmd.AddCommand(ExportCmd)
	RootCmd.AddCommand(StoreCheckCmd)
	RootCmd.AddCommand(StoreGCCmd)
	RootCmd.AddCommand(StoreImportCmd)
}

// RootCmd is the main command for the 'fspx' binary.
var RootCmd = &cobra.Command{
	Use:   "fspx",
	Short: "content-addressed scientific build engine",
	Long:  "`fspx` runs a DAG of content-addressed, manifest-cached jobs",
}

// Execute runs the CLI, exiting the process on error per spec.md §6
// ("exit 0 on success; 1 on failure").
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fail(err)
	}
}
