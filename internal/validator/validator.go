// Package validator implements the re-run validator (spec.md §4.6): it
// re-executes a job into a shadow working directory, without touching
// the main store's outputs tree, and compares the freshly produced
// files against the manifest's recorded output hashes.
//
// Grounded on the teacher's registry/storage/garbagecollect_test.go
// pattern of standing up a throwaway directory to exercise real
// filesystem behavior and tearing it down on success.
package validator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"fspx/internal/cas"
	"fspx/internal/dcontext"
	"fspx/internal/manifest"
	"fspx/internal/project"
	"fspx/internal/runner"
)

func hashFile(r io.Reader) (string, error) {
	d, err := digest.FromReader(r)
	if err != nil {
		return "", err
	}
	return d.Encoded(), nil
}

// Validator re-runs jobs into a "-validate" shadow of their workdir.
type Validator struct {
	Manifests *manifest.Store
	Store     *cas.Store
	Launcher  string
}

func New(manifests *manifest.Store, store *cas.Store) *Validator {
	return &Validator{Manifests: manifests, Store: store}
}

// Validate re-runs name's job into <workdir>-validate and compares the
// resulting output hashes to the manifest. It returns false (with a
// diagnostic) on any mismatch or missing file and leaves the shadow
// directory behind for inspection; on success it hashes outputs
// without re-ingesting them and removes the shadow directory.
func (v *Validator) Validate(ctx context.Context, name string, job *project.Job) (bool, error) {
	log := dcontext.GetLogger(ctx)

	m, err := v.Manifests.Read(name)
	if err != nil {
		return false, err
	}

	shadow := *job
	shadow.Workdir = project.ExpandWorkdir(job) + "-validate"
	if err := os.MkdirAll(shadow.Workdir, 0o755); err != nil {
		return false, err
	}

	// The shadow run executes exactly like a real job (staging, launcher,
	// run script, check script) through a Runner pointed at the same
	// store, but stops before output capture: the shadow outputs are only
	// hashed below, never ingested, so manifest.outputs and outputs/ are
	// left untouched.
	shadowRunner := &runner.Runner{Manifests: v.Manifests, Store: v.Store, Launcher: v.Launcher}
	if err := shadowRunner.StageAndExecute(ctx, name, &shadow); err != nil {
		return false, err
	}

	ok := true
	for _, o := range job.Outputs {
		path := filepath.Join(shadow.Workdir, o)
		f, err := os.Open(path)
		if err != nil {
			log.Warnf("job %q: validate: output %q cannot be reproduced: %v", name, o, err)
			ok = false
			continue
		}
		live, err := hashFile(f)
		f.Close()
		if err != nil {
			return false, err
		}
		if live != m.Outputs[o] {
			log.Warnf("job %q: output %q cannot be reproduced (hash mismatch)", name, o)
			ok = false
		}
	}

	if !ok {
		return false, nil
	}
	if err := os.RemoveAll(shadow.Workdir); err != nil {
		return false, fmt.Errorf("validate %q: cleaning up %s: %w", name, shadow.Workdir, err)
	}
	return true, nil
}
