package cas

import (
	"os"
	"path/filepath"

	"fspx/internal/dcontext"
	"fspx/internal/ferrors"
)

// GC implements clean_garbage's two strictly-ordered phases (spec.md
// §4.1): reap unsound gcroots, then sweep any blob left with no root
// directory at all. Grounded on the teacher's mark-and-sweep shape in
// registry/storage/garbagecollect.go, simplified to this engine's
// single-pass, single-instance contract (spec.md §5: "GC is not safe
// against concurrent modification of the store").
func (s *Store) GC() (int, error) {
	logger := dcontext.GetLogger(s.ctx())
	count := 0

	rootsDir := filepath.Join(s.Dir, gcrootsDirName)
	rootEntries, err := os.ReadDir(rootsDir)
	if err != nil && !os.IsNotExist(err) {
		return 0, &ferrors.IoError{Op: "reading " + rootsDir, Err: err}
	}

	for _, rootEntry := range rootEntries {
		if !rootEntry.IsDir() {
			continue
		}
		hexHash := rootEntry.Name()
		hashDir := filepath.Join(rootsDir, hexHash)

		emptied, err := reapRoot(hashDir, hexHash)
		if err != nil {
			return count, err
		}
		if !emptied {
			continue
		}

		if err := os.Remove(hashDir); err != nil && !os.IsNotExist(err) {
			return count, &ferrors.IoError{Op: "remove " + hashDir, Err: err}
		}

		blobPath := filepath.Join(s.Dir, hexHash)
		if _, err := os.Stat(blobPath); err == nil {
			if err := deleteReadOnly(blobPath); err != nil {
				return count, err
			}
			logger.Infof("garbage collected blob %s", hexHash)
			count++
		}
	}

	// Phase B: sweep any regular file that never had a gcroots directory
	// at all (e.g. one predating the current set of referrers, or one
	// whose only referrers were removed without going through Link/GC).
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return count, &ferrors.IoError{Op: "reading " + s.Dir, Err: err}
	}
	for _, entry := range entries {
		if entry.Name() == gcrootsDirName || entry.IsDir() {
			continue
		}
		rootDir := filepath.Join(rootsDir, entry.Name())
		if _, err := os.Stat(rootDir); err == nil {
			continue
		}

		blobPath := filepath.Join(s.Dir, entry.Name())
		if err := deleteReadOnly(blobPath); err != nil {
			return count, err
		}
		logger.Infof("garbage collected orphaned blob %s", entry.Name())
		count++
	}

	return count, nil
}

// reapRoot removes unsound referrer symlinks from hashDir (a
// gcroots/<H>/ directory) and reports whether the directory is now
// empty. A root is sound iff it is a symlink whose resolution exists and
// whose resolved basename equals hexHash (I2).
func reapRoot(hashDir, hexHash string) (empty bool, err error) {
	entries, err := os.ReadDir(hashDir)
	if err != nil {
		return false, &ferrors.IoError{Op: "reading " + hashDir, Err: err}
	}

	remaining := len(entries)
	for _, entry := range entries {
		refPath := filepath.Join(hashDir, entry.Name())

		if _, statErr := os.Stat(refPath); statErr != nil {
			if os.IsNotExist(statErr) {
				if rmErr := os.Remove(refPath); rmErr != nil {
					return false, &ferrors.IoError{Op: "remove " + refPath, Err: rmErr}
				}
				remaining--
				continue
			}
			return false, &ferrors.IoError{Op: "stat " + refPath, Err: statErr}
		}

		referrerTarget, rlErr := os.Readlink(refPath)
		if rlErr != nil {
			return false, &ferrors.IoError{Op: "readlink " + refPath, Err: rlErr}
		}
		if !filepath.IsAbs(referrerTarget) {
			referrerTarget = filepath.Join(filepath.Dir(refPath), referrerTarget)
		}

		sound := false
		if finalTarget, rerr := os.Readlink(referrerTarget); rerr == nil {
			if !filepath.IsAbs(finalTarget) {
				finalTarget = filepath.Join(filepath.Dir(referrerTarget), finalTarget)
			}
			sound = filepath.Base(finalTarget) == hexHash
		} else if _, serr := os.Lstat(referrerTarget); serr == nil {
			// The referrer path exists but is not itself a symlink; spec
			// requires gcroots entries to resolve to a symlink, so this
			// is unsound.
			sound = false
		}

		if !sound {
			if rmErr := os.Remove(refPath); rmErr != nil {
				return false, &ferrors.IoError{Op: "remove " + refPath, Err: rmErr}
			}
			remaining--
		}
	}

	return remaining == 0, nil
}

func deleteReadOnly(path string) error {
	if err := os.Chmod(path, 0o644); err != nil {
		return &ferrors.IoError{Op: "chmod " + path, Err: err}
	}
	if err := os.Remove(path); err != nil {
		return &ferrors.IoError{Op: "remove " + path, Err: err}
	}
	return nil
}
