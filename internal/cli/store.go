package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fspx/internal/cas"
)

// StoreCheckCmd runs verify_store against an arbitrary store directory,
// independent of any project (spec.md §6).
var StoreCheckCmd = &cobra.Command{
	Use:   "store-check <dstore>",
	Short: "run verify_store against a data store",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := cas.New(args[0])
		ok, problems := store.Verify()
		for _, p := range problems {
			fmt.Println(p)
		}
		if !ok {
			os.Exit(1)
		}
	},
}

// StoreGCCmd runs clean_garbage against a store and prints the count of
// blobs removed.
var StoreGCCmd = &cobra.Command{
	Use:   "store-gc <dstore>",
	Short: "run clean_garbage against a data store",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := cas.New(args[0])
		count, err := store.GC()
		if err != nil {
			fail(err)
		}
		fmt.Println(count)
	},
}

// StoreImportCmd ingests one file into the current project's data store
// and registers linkName as a GC-rooted symlink to it (spec.md §6,
// SPEC_FULL.md §7).
var StoreImportCmd = &cobra.Command{
	Use:   "store-import <file> <link_name>",
	Short: "ingest one file and make link_name a GC-rooted symlink to it",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := loadEnv()
		if err != nil {
			fail(err)
		}

		d, err := e.Store.Ingest(args[0])
		if err != nil {
			fail(err)
		}
		if err := e.Store.Link(args[1], d, true, true); err != nil {
			fail(err)
		}
		fmt.Println(d.Encoded())
	},
}
