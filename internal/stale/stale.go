// Package stale implements the staleness checker (spec.md §4.4): for
// each job, decide whether its manifest still matches current inputs,
// recipe, and store state, and cascade invalidation up the DAG.
//
// Grounded on the teacher's registry/storage/graph.go reference-counting
// walk (IsDirty/IsEmpty checks cascading from layers up through
// manifests to repositories), generalized from "dirty docker repository"
// to "stale fspx job".
package stale

import (
	"fspx/internal/cas"
	"fspx/internal/manifest"
	"fspx/internal/project"
)

// Checker decides job freshness against a manifest store and a CAS.
type Checker struct {
	Manifests *manifest.Store
	Store     *cas.Store
}

func New(manifests *manifest.Store, store *cas.Store) *Checker {
	return &Checker{Manifests: manifests, Store: store}
}

// CheckJob implements check_job (spec.md §4.4, P6): a job is fresh iff,
// in order, it has a manifest with a recorded outputs set, every
// declared output is present in the manifest and live in the store, the
// recorded recipe fingerprint matches job.RunScript, and every declared
// input's live content hash matches what the manifest recorded.
func (c *Checker) CheckJob(name string, job *project.Job) (bool, error) {
	m, err := c.Manifests.Read(name)
	if err != nil {
		return false, err
	}
	if !m.Exists {
		return false, nil
	}

	for _, out := range job.Outputs {
		hash, ok := m.Outputs[out]
		if !ok {
			return false, nil
		}
		d, err := toDigest(hash)
		if err != nil || !c.Store.Exists(d) {
			return false, nil
		}
	}

	if job.RunScript != m.Function {
		return false, nil
	}

	for inputName, pinned := range job.Inputs {
		recorded, ok := m.Inputs[inputName]
		if !ok {
			return false, nil
		}

		live, err := c.liveHash(inputName)
		if err != nil {
			return false, nil
		}

		if pinned != nil {
			if project.IsOutputRef(inputName) {
				d, err := c.Store.HashFromStorePath("outputs/" + project.OutputRefTail(inputName))
				if err != nil || d.Encoded() != *pinned {
					return false, nil
				}
			}
			if *pinned != recorded {
				return false, nil
			}
		}

		if live != recorded {
			return false, nil
		}
	}

	return true, nil
}

// liveHash recomputes the current content hash of an input: for an
// output-reference, via hash_from_store_path against the live
// outputs/<tail> symlink; for a plain input, via a full content hash of
// its source path.
func (c *Checker) liveHash(inputName string) (string, error) {
	if project.IsOutputRef(inputName) {
		d, err := c.Store.HashFromStorePath("outputs/" + project.OutputRefTail(inputName))
		if err != nil {
			return "", err
		}
		return d.Encoded(), nil
	}

	d, err := hashSource(inputName)
	if err != nil {
		return "", err
	}
	return d, nil
}
