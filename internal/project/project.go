// Package project defines the Job and Project types fspx reads from
// project.json (spec.md §3 "Job", "Project description", §6). Reading
// this document is the one external, read-only input to the engine; the
// document itself is produced by an out-of-scope configurator
// (spec.md §1).
package project

import (
	"os"

	"fspx/internal/ferrors"
	"fspx/internal/jsonio"
)

// Job is one node of the project's job DAG.
type Job struct {
	// Inputs maps a logical input name to either nil ("compute the hash
	// from the source path") or a pinned 64-hex content hash.
	Inputs map[string]*string `json:"inputs"`

	// Outputs is the ordered list of file names the run script produces
	// into Workdir.
	Outputs []string `json:"outputs"`

	RunScript   string `json:"runScript"`
	CheckScript string `json:"checkScript"`
	JobLauncher string `json:"jobLauncher"`
	Env         string `json:"env"`
	Workdir     string `json:"workdir"`

	Deps map[string]*Job `json:"deps"`
}

// Project is the top-level project description (project.json).
type Project struct {
	DStore  string          `json:"dstore"`
	Workdir string          `json:"workdir"`
	Jobsets map[string]*Job `json:"jobsets"`
	Deps    map[string]*Job `json:"deps"`
}

// Load reads and validates a project description from path.
func Load(path string) (*Project, error) {
	var p Project
	if err := jsonio.Read(path, &p); err != nil {
		return nil, err
	}
	if p.DStore == "" {
		return nil, &ferrors.ConfigError{Reason: "project description is missing \"dstore\""}
	}
	if p.Jobsets == nil {
		return nil, &ferrors.ConfigError{Reason: "project description is missing \"jobsets\""}
	}
	return &p, nil
}

// Save writes a project description to path. The exporter does not use
// it: config.json is written from export's own Archive type.
func Save(path string, p *Project) error {
	return jsonio.Write(path, p)
}

// IsOutputRef reports whether an input name is an output-reference
// (":job.output", spec.md §3).
func IsOutputRef(name string) bool {
	return len(name) > 0 && name[0] == ':'
}

// OutputRefTail strips the leading ':' from an output-reference name,
// yielding the "outputs/<rest>" suffix.
func OutputRefTail(name string) string {
	if !IsOutputRef(name) {
		return name
	}
	return name[1:]
}

// ExpandWorkdir expands environment variable references in a job's
// workdir, the way the original source's runJobs expanded
// job['workdir'] with os.path.expandvars before staging or running
// anything. Every reader of Job.Workdir should go through this rather
// than using the raw field, so a workdir like "$SCRATCH/job-a" resolves
// consistently wherever it's used.
func ExpandWorkdir(job *Job) string {
	return os.ExpandEnv(job.Workdir)
}
