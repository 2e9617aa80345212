// Package manifest persists the per-job record of last-seen input hashes,
// recipe identity, and output hashes (spec.md §3 "Manifest", §4.2).
//
// Grounded on the teacher's registry/storage/revisionstore.go +
// tagstore.go split between "read whatever's there" and "atomically
// replace it", generalized from manifest-list revisions to a single
// per-job JSON record, with the atomic-write fix spec.md §9 calls for
// ("Manifest atomicity": write a temp file and rename).
package manifest

import (
	"os"
	"path/filepath"

	"fspx/internal/jsonio"
)

// Manifest is the authoritative memory of a job's previous successful
// state.
type Manifest struct {
	Inputs   map[string]string `json:"inputs"`
	Function string            `json:"function"`
	Outputs  map[string]string `json:"outputs"`

	// Exists is true when this record was actually read from disk, as
	// opposed to synthesized as an empty-defaults record because no
	// manifest has ever been written for the job. check_job's "has no
	// outputs field" test (spec.md §4.4) is this flag, not merely an
	// empty Outputs map, since a job that legitimately declares zero
	// outputs must still be considered stale until it has run once.
	Exists bool `json:"-"`
}

func empty() Manifest {
	return Manifest{
		Inputs:  map[string]string{},
		Outputs: map[string]string{},
	}
}

// Store reads and writes manifests under Dir, one file per job named
// "<name>.manifest".
type Store struct {
	Dir string
}

func New(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Dir, name+".manifest")
}

// Read returns the manifest for name, or an empty-defaults record if none
// has been written yet (read_manifest).
func (s *Store) Read(name string) (Manifest, error) {
	path := s.path(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return empty(), nil
	}

	var m Manifest
	if err := jsonio.Read(path, &m); err != nil {
		return Manifest{}, err
	}
	if m.Inputs == nil {
		m.Inputs = map[string]string{}
	}
	if m.Outputs == nil {
		m.Outputs = map[string]string{}
	}
	m.Exists = true
	return m, nil
}

// Write performs a full, atomic overwrite of name's manifest
// (update_manifest): marshal to a temp file in Dir, then rename over the
// final path so a crash mid-write never leaves a corrupt manifest.
func (s *Store) Write(name string, m Manifest) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}

	final := s.path(name)
	tmp := final + ".tmp"
	if err := jsonio.Write(tmp, m); err != nil {
		return err
	}
	return os.Rename(tmp, final)
}
