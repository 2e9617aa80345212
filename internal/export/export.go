// Package export implements the archive exporter (spec.md §4.7): it
// rewrites a project description with frozen content hashes, copies
// every blob it references into a target store, links them into a
// self-contained directory tree, and packages the transitive closure
// of job recipes as archive blobs.
//
// Grounded on the teacher's registry/storage/garbagecollect.go "mark"
// phase for closure-style traversal, and registry/client's blob-copy
// pattern for moving content between two stores; dedup of blobs queued
// for copy uses the pack's digestset, the same way the teacher uses it
// to resolve short digests without re-walking a manifest list.
package export

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/go-digest/digestset"

	"fspx/internal/cas"
	"fspx/internal/ferrors"
	"fspx/internal/jsonio"
	"fspx/internal/manifest"
	"fspx/internal/project"
)

// Job is the rewritten, frozen form of project.Job that ships in an
// exported config.json: inputs are always pinned hashes, outputs are a
// name->hash mapping instead of a bare list, and workdir (meaningless
// outside the originating project) is dropped.
type Job struct {
	Inputs      map[string]string `json:"inputs"`
	Outputs     map[string]string `json:"outputs"`
	RunScript   string            `json:"runScript"`
	CheckScript string            `json:"checkScript"`
	JobLauncher string            `json:"jobLauncher"`
	Env         string            `json:"env"`
	Deps        map[string]*Job   `json:"deps"`
}

// Archive is the rewritten project description written to
// <toDir>/config.json.
type Archive struct {
	DStore  string          `json:"dstore"`
	Jobsets map[string]*Job `json:"jobsets"`
}

// Exporter copies a project's closure of content from a source store
// into a target store and directory.
type Exporter struct {
	Source    *cas.Store
	Target    *cas.Store
	Manifests *manifest.Store

	// ClosureTool is the external derivation system invoked to enumerate
	// and pack the transitive closure of job recipes, e.g. the same
	// external configurator named in SPEC_FULL.md §7's "build" verb.
	// Defaults to "fspx-closure" if empty.
	ClosureTool string
}

func New(source, target *cas.Store, manifests *manifest.Store) *Exporter {
	return &Exporter{Source: source, Target: target, Manifests: manifests}
}

func (e *Exporter) closureTool() string {
	if e.ClosureTool != "" {
		return e.ClosureTool
	}
	return "fspx-closure"
}

// Export writes a self-contained archive of proj's jobsets to toDir,
// backed by e.Target.
func (e *Exporter) Export(toDir string, proj *project.Project) error {
	for _, sub := range []string{"inputs", "outputs", "nar"} {
		if err := os.MkdirAll(filepath.Join(toDir, sub), 0o755); err != nil {
			return &ferrors.IoError{Op: "mkdir " + filepath.Join(toDir, sub), Err: err}
		}
	}

	seen := digestset.NewSet()

	rewritten, err := e.freeze(proj.Jobsets, toDir, seen)
	if err != nil {
		return err
	}
	archive := &Archive{DStore: e.Target.Dir, Jobsets: rewritten}

	cfgPath := filepath.Join(toDir, "config.json")
	cfgTmp := cfgPath + ".tmp"
	if err := jsonio.Write(cfgTmp, archive); err != nil {
		return err
	}
	cfgData, err := readFile(cfgTmp)
	if err != nil {
		return err
	}
	if err := os.Remove(cfgTmp); err != nil {
		return &ferrors.IoError{Op: "remove " + cfgTmp, Err: err}
	}

	d, err := e.Target.IngestBytes(cfgData)
	if err != nil {
		return err
	}
	if err := e.Target.Link(cfgPath, d, true, true); err != nil {
		return err
	}

	recipes := collectRecipes(proj.Jobsets, map[string]bool{})
	return e.exportClosure(toDir, recipes)
}

// freeze recursively rewrites jobset into export Jobs, copying every
// referenced (non-output-reference) input blob and every output blob
// from the source store into the target store and linking each as a
// GC root under <toDir>/inputs/ or <toDir>/outputs/.
func (e *Exporter) freeze(jobset map[string]*project.Job, toDir string, seen *digestset.Set) (map[string]*Job, error) {
	out := make(map[string]*Job, len(jobset))

	for name, job := range jobset {
		m, err := e.Manifests.Read(name)
		if err != nil {
			return nil, err
		}

		inputs := make(map[string]string, len(job.Inputs))
		for inputName, pinned := range job.Inputs {
			hash := m.Inputs[inputName]
			if pinned != nil {
				hash = *pinned
			}
			inputs[inputName] = hash

			if project.IsOutputRef(inputName) {
				continue
			}
			if err := e.copyBlob(hash, filepath.Join(toDir, "inputs", filepath.Base(inputName)), seen); err != nil {
				return nil, err
			}
		}

		outputs := make(map[string]string, len(job.Outputs))
		for _, o := range job.Outputs {
			hash := m.Outputs[o]
			outputs[o] = hash
			if err := e.copyBlob(hash, filepath.Join(toDir, "outputs", o), seen); err != nil {
				return nil, err
			}
		}

		deps, err := e.freeze(job.Deps, toDir, seen)
		if err != nil {
			return nil, err
		}

		out[name] = &Job{
			Inputs:      inputs,
			Outputs:     outputs,
			RunScript:   job.RunScript,
			CheckScript: job.CheckScript,
			JobLauncher: job.JobLauncher,
			Env:         job.Env,
			Deps:        deps,
		}
	}

	return out, nil
}

// copyBlob ensures hash is present in the target store, copying it
// from the source store at most once per export (tracked via seen),
// then links linkPath to it as a relative GC root.
func (e *Exporter) copyBlob(hash, linkPath string, seen *digestset.Set) error {
	d := digest.NewDigestFromEncoded(digest.SHA256, hash)
	if err := d.Validate(); err != nil {
		return &ferrors.IntegrityViolation{Path: hash, Reason: err.Error()}
	}

	if _, err := seen.Lookup(d.String()); err != nil {
		if !e.Target.Exists(d) {
			if _, err := e.Target.Ingest(e.Source.Path(d)); err != nil {
				return err
			}
		}
		if err := seen.Add(d); err != nil {
			return &ferrors.IoError{Op: "track exported digest " + d.String(), Err: err}
		}
	}

	return e.Target.Link(linkPath, d, true, true)
}

func collectRecipes(jobset map[string]*project.Job, seen map[string]bool) []string {
	var out []string
	for _, job := range jobset {
		for _, script := range []string{job.RunScript, job.CheckScript} {
			if script != "" && !seen[script] {
				seen[script] = true
				out = append(out, script)
			}
		}
		out = append(out, collectRecipes(job.Deps, seen)...)
	}
	return out
}

// exportClosure asks the external closure tool for the transitive
// closure of recipes, packs each element as an archive blob, and links
// it into <toDir>/nar/ as a GC root of the target store (spec.md
// §4.7's "recipe closure" step).
func (e *Exporter) exportClosure(toDir string, recipes []string) error {
	if len(recipes) == 0 {
		return nil
	}

	listArgs := append([]string{"closure"}, recipes...)
	out, err := exec.Command(e.closureTool(), listArgs...).Output()
	if err != nil {
		return &ferrors.SubprocessFailed{Command: e.closureTool(), Code: exitCode(err)}
	}

	for _, elem := range strings.Fields(string(out)) {
		archive, err := exec.Command(e.closureTool(), "pack", elem).Output()
		if err != nil {
			return &ferrors.SubprocessFailed{Command: e.closureTool(), Code: exitCode(err)}
		}

		d, err := e.Target.IngestBytes(archive)
		if err != nil {
			return err
		}

		narPath := filepath.Join(toDir, "nar", filepath.Base(elem)+".nar")
		if err := e.Target.Link(narPath, d, true, true); err != nil {
			return err
		}
	}
	return nil
}

func exitCode(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ferrors.IoError{Op: "read " + path, Err: err}
	}
	return data, nil
}
