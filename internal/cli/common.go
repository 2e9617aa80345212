// Package cli wires the CLI verbs to the engine's internal packages,
// one cobra.Command per verb, mirroring the teacher's
// registry/root.go + registry/*.go split between command definitions
// and the engine logic they call into.
package cli

import (
	"fmt"
	"os"

	"fspx/internal/cas"
	"fspx/internal/manifest"
	"fspx/internal/project"
)

// cfgDir is the process-wide configuration root (spec.md §6, §9 "Global
// configuration path"): threaded here as a single constant rather than
// ambient global state scattered across packages.
const cfgDir = ".fspx"

const projectPath = cfgDir + "/cfg/project.json"

// env bundles the objects every non-trivial command needs.
type env struct {
	Project   *project.Project
	Manifests *manifest.Store
	Store     *cas.Store
}

func loadEnv() (*env, error) {
	proj, err := project.Load(projectPath)
	if err != nil {
		return nil, err
	}
	return &env{
		Project:   proj,
		Manifests: manifest.New(cfgDir),
		Store:     cas.New(proj.DStore),
	}, nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
