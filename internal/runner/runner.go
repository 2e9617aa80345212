// Package runner implements the job runner (spec.md §4.5): stages a
// job's inputs as symlinks, invokes its run and check scripts, and
// ingests its outputs back into the store.
//
// Grounded on the teacher's registry/handlers push/pull flow (stage a
// blob locally, invoke an external step, then commit it into the
// store), generalized from "accept an HTTP upload" to "spawn a
// subprocess and capture its declared output files".
package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"fspx/internal/cas"
	"fspx/internal/dcontext"
	"fspx/internal/ferrors"
	"fspx/internal/manifest"
	"fspx/internal/project"
)

// Runner executes jobs against a manifest store and a CAS.
type Runner struct {
	Manifests *manifest.Store
	Store     *cas.Store

	// Launcher, if non-empty, overrides every job's JobLauncher for the
	// lifetime of this Runner. It is never mutated after construction, so
	// a CLI-provided override cannot "stick" across jobs the way the
	// Python source's sticky-default bug did (spec.md §9).
	Launcher string
}

func New(manifests *manifest.Store, store *cas.Store) *Runner {
	return &Runner{Manifests: manifests, Store: store}
}

func (r *Runner) effectiveLauncher(job *project.Job) string {
	if r.Launcher != "" {
		return r.Launcher
	}
	return job.JobLauncher
}

// StageAndExecute runs staging, input linking, and script execution
// but stops short of output capture, so the validator can re-run a job
// into a shadow workdir and inspect its outputs itself without
// disturbing the main store's outputs/ tree or manifest.
func (r *Runner) StageAndExecute(ctx context.Context, name string, job *project.Job) error {
	if err := r.Stage(name, job); err != nil {
		return err
	}
	return r.execute(ctx, name, job)
}

// Stage ingests name's declared inputs and links them into ./inputs/
// and <workdir>/inputs/, without invoking the run or check script. Used
// directly by the "shell" verb, which only needs a populated workdir.
func (r *Runner) Stage(name string, job *project.Job) error {
	hashes, err := r.stageInputs(name, job)
	if err != nil {
		return err
	}
	return r.linkInputs(job, hashes)
}

// RunJob stages, executes, and captures outputs for one job. A
// subprocess or store failure is returned as a fatal error that should
// abort the whole engine invocation; a missing-output failure at
// capture time is swallowed here (logged and left for the next
// staleness check to re-detect), per spec.md §4.9.
func (r *Runner) RunJob(ctx context.Context, name string, job *project.Job) error {
	log := dcontext.GetLogger(ctx)

	hashes, err := r.stageInputs(name, job)
	if err != nil {
		return err
	}
	if err := r.linkInputs(job, hashes); err != nil {
		return err
	}
	if err := r.execute(ctx, name, job); err != nil {
		return err
	}

	if err := r.captureOutputs(name, job); err != nil {
		var nf *ferrors.NotFound
		if errors.As(err, &nf) {
			log.Warnf("job %q: %v; leaving it stale", name, err)
			return nil
		}
		return err
	}
	return nil
}

func toDigest(hex string) (digest.Digest, error) {
	d := digest.NewDigestFromEncoded(digest.SHA256, hex)
	return d, d.Validate()
}

func resolvedInputPath(name string) string {
	if project.IsOutputRef(name) {
		return filepath.Join("outputs", project.OutputRefTail(name))
	}
	return name
}

// stageInputs is import_input_paths (spec.md §4.5): it resolves each
// declared input to a live content hash (re-ingesting from source,
// trusting a pinned hash already present in the store, or re-ingesting
// an output-reference from outputs/), then writes the updated manifest,
// clearing outputs whenever an input's hash changed or the recipe's
// fingerprint changed.
func (r *Runner) stageInputs(name string, job *project.Job) (map[string]digest.Digest, error) {
	m, err := r.Manifests.Read(name)
	if err != nil {
		return nil, err
	}

	hashes := make(map[string]digest.Digest, len(job.Inputs))
	changed := false

	for inputName, pinned := range job.Inputs {
		var d digest.Digest

		switch {
		case project.IsOutputRef(inputName):
			d, err = r.Store.Ingest(resolvedInputPath(inputName))
		case pinned != nil:
			if pd, derr := toDigest(*pinned); derr == nil && r.Store.Exists(pd) {
				d = pd
			} else {
				d, err = r.Store.Ingest(inputName)
			}
		default:
			d, err = r.Store.Ingest(inputName)
		}
		if err != nil {
			return nil, err
		}

		hashes[inputName] = d
		if prev, ok := m.Inputs[inputName]; !ok || prev != d.Encoded() {
			changed = true
		}
		m.Inputs[inputName] = d.Encoded()
	}

	if changed {
		m.Outputs = map[string]string{}
	}
	if job.RunScript != m.Function {
		m.Function = job.RunScript
		m.Outputs = map[string]string{}
	}

	if err := r.Manifests.Write(name, m); err != nil {
		return nil, err
	}
	return hashes, nil
}

// linkInputs creates the job's input symlink trees (spec.md §4.5): a
// GC-rooted, relative tree at ./inputs/ for user visibility, and a
// non-root, absolute tree at <workdir>/inputs/ for ephemeral staging.
func (r *Runner) linkInputs(job *project.Job, hashes map[string]digest.Digest) error {
	if err := os.MkdirAll("inputs", 0o755); err != nil {
		return &ferrors.IoError{Op: "mkdir inputs", Err: err}
	}
	workInputs := filepath.Join(project.ExpandWorkdir(job), "inputs")
	if err := os.MkdirAll(workInputs, 0o755); err != nil {
		return &ferrors.IoError{Op: "mkdir " + workInputs, Err: err}
	}

	for inputName, d := range hashes {
		base := filepath.Base(resolvedInputPath(inputName))

		if err := r.Store.Link(filepath.Join("inputs", base), d, true, true); err != nil {
			return err
		}
		if err := r.Store.Link(filepath.Join(workInputs, base), d, false, false); err != nil {
			return err
		}
	}
	return nil
}

// execute invokes the launcher-wrapped run script, then the check
// script, both inheriting the caller's environment (spec.md §4.5). Only
// the run script is launcher-wrapped: jobLauncher (spec.md §3) wraps
// "the run script", singular, and the check script's failure handling
// is the only thing spec.md §4.5 carries over to it, not launcher
// wrapping. A scheduler launcher like a queue submitter can exit 0 on
// successful submission rather than completion, which would make a
// launcher-wrapped check script silently always pass. A non-zero exit
// from either script is fatal.
func (r *Runner) execute(ctx context.Context, name string, job *project.Job) error {
	launcher := r.effectiveLauncher(job)
	workdir := project.ExpandWorkdir(job)

	if err := r.spawn(ctx, name, launcher, job.RunScript, workdir, launcher); err != nil {
		return err
	}
	return r.spawn(ctx, name, "", job.CheckScript, workdir, strings.Join(job.Outputs, " "))
}

func (r *Runner) spawn(ctx context.Context, name, launcher, script string, args ...string) error {
	var argv []string
	if launcher != "" {
		argv = append(argv, launcher, script)
	} else {
		argv = append(argv, script)
	}
	argv = append(argv, args...)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		code := 1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ferrors.SubprocessFailed{Job: name, Command: script, Code: code}
	}
	return nil
}

// captureOutputs ingests a job's declared outputs and updates its
// manifest and outputs/ symlink tree (spec.md §4.5), via the bulk
// import_paths primitive (cas.Store.IngestPaths, spec.md §4.5 "ingest
// declared outputs ... using workdir/ as the ingest prefix"), which also
// gives output capture the same $VAR-expansion and store-path
// short-circuit as input staging. The first missing output aborts
// capture with a NotFound that the caller treats as non-fatal.
func (r *Runner) captureOutputs(name string, job *project.Job) error {
	m, err := r.Manifests.Read(name)
	if err != nil {
		return err
	}

	hashes, err := r.Store.IngestPaths(job.Outputs, project.ExpandWorkdir(job)+"/")
	if err != nil {
		var ioErr *ferrors.IoError
		if errors.As(err, &ioErr) && errors.Is(ioErr.Err, os.ErrNotExist) {
			missing := name
			var pathErr *os.PathError
			if errors.As(ioErr.Err, &pathErr) {
				missing = pathErr.Path
			}
			return &ferrors.NotFound{What: "job output", Name: missing}
		}
		return err
	}

	outHashes := make(map[string]string, len(hashes))
	for o, d := range hashes {
		outHashes[o] = d.Encoded()
		if err := r.Store.Link(filepath.Join("outputs", o), d, true, true); err != nil {
			return err
		}
	}

	m.Outputs = outHashes
	return r.Manifests.Write(name, m)
}
