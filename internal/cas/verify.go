package cas

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// gcrootsDirName is the one reserved entry directly under dstore that is
// never itself a blob.
const gcrootsDirName = "gcroots"

// Verify implements verify_store: every regular file directly under
// dstore must have a 64-hex name that equals the SHA-256 of its content.
// Per the Open Question in spec.md §9, dangling gcroots entries are a GC
// concern, not a verify failure: this walks only regular files directly
// under dstore.
func (s *Store) Verify() (bool, []error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return false, []error{fmt.Errorf("reading %s: %w", s.Dir, err)}
	}

	var problems []error
	for _, entry := range entries {
		if entry.Name() == gcrootsDirName {
			continue
		}
		if entry.IsDir() {
			continue
		}
		if entry.Type()&os.ModeSymlink != 0 {
			continue
		}

		path := filepath.Join(s.Dir, entry.Name())
		if len(entry.Name()) != 64 {
			problems = append(problems, fmt.Errorf("%s: name is not a 64-character digest", path))
			continue
		}

		f, err := os.Open(path)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", path, err))
			continue
		}
		d, err := digest.FromReader(f)
		f.Close()
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", path, err))
			continue
		}

		if d.Encoded() != entry.Name() {
			problems = append(problems, fmt.Errorf("%s: content hashes to %s, not %s", path, d.Encoded(), entry.Name()))
		}
	}

	return len(problems) == 0, problems
}
