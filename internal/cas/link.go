package cas

import (
	"crypto/sha1"
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"fspx/internal/ferrors"
)

// refEncoding is the base64 alphabet spec.md §3 calls for: the standard
// alphabet with the 63rd/64th symbols '+' and '-' (i.e. the usual '/' is
// replaced by '-' so the encoded referrer name is filesystem-safe), with
// no padding.
var refEncoding = base64.NewEncoding(
	"ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+-",
).WithPadding(base64.NoPadding)

func referrerName(referrerPath string) string {
	sum := sha1.Sum([]byte(referrerPath))
	return refEncoding.EncodeToString(sum[:])
}

func removeIfSymlink(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &ferrors.IoError{Op: "lstat " + path, Err: err}
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return &ferrors.IoError{Op: "remove " + path, Err: err}
	}
	return nil
}

func symlinkTarget(target, linkPath string, relative bool) (string, error) {
	if relative {
		rel, err := filepath.Rel(filepath.Dir(linkPath), target)
		if err != nil {
			return "", &ferrors.IoError{Op: "relpath " + linkPath, Err: err}
		}
		return rel, nil
	}
	return canonical(target)
}

// Link creates a symlink at path pointing into the store at d
// (link_to_store). If gcroot is set, a back-reference symlink is also
// registered under dstore/gcroots/<H>/ so the blob survives GC.
func (s *Store) Link(path string, d digest.Digest, relative, gcroot bool) error {
	if err := removeIfSymlink(path); err != nil {
		return err
	}

	storeAbs, err := filepath.Abs(s.Dir)
	if err != nil {
		return &ferrors.IoError{Op: "abs " + s.Dir, Err: err}
	}
	target := filepath.Join(storeAbs, hexName(d))

	linkTarget, err := symlinkTarget(target, path, relative)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &ferrors.IoError{Op: "mkdir " + filepath.Dir(path), Err: err}
	}
	if err := os.Symlink(linkTarget, path); err != nil {
		return &ferrors.IoError{Op: "symlink " + path, Err: err}
	}

	if !gcroot {
		return nil
	}
	return s.addRoot(path, d, relative)
}

// addRoot registers path as a GC root referrer for d.
func (s *Store) addRoot(path string, d digest.Digest, relative bool) error {
	rootDir := filepath.Join(s.Dir, "gcroots", hexName(d))
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return &ferrors.IoError{Op: "mkdir " + rootDir, Err: err}
	}

	rootLink := filepath.Join(rootDir, referrerName(path))
	if err := removeIfSymlink(rootLink); err != nil {
		return err
	}

	// The root must point back at the referrer symlink itself, not at
	// whatever it ultimately resolves to, so an absolute target is built
	// with filepath.Abs, which does not resolve symlinks.
	var target string
	if relative {
		rel, err := filepath.Rel(filepath.Dir(rootLink), path)
		if err != nil {
			return &ferrors.IoError{Op: "relpath " + rootLink, Err: err}
		}
		target = rel
	} else {
		abs, err := filepath.Abs(path)
		if err != nil {
			return &ferrors.IoError{Op: "abs " + path, Err: err}
		}
		target = abs
	}

	if err := os.Symlink(target, rootLink); err != nil {
		return &ferrors.IoError{Op: "symlink " + rootLink, Err: err}
	}
	return nil
}
