// Package cas implements the content-addressed file store described in
// spec.md §3/§4.1: a directory of files named by the SHA-256 of their
// content, a gcroots/ side table of back-reference symlinks, ingest,
// linking, verification and two-phase garbage collection.
//
// The shape (a leaky, utility-style store object that also knows how to
// create and traverse its own "links") is grounded on the teacher's
// registry/storage/blobstore.go blobStore type, generalized from a
// storagedriver-backed virtual blob store to a plain local directory of
// real files and real symlinks, since spec.md requires actual OS symlinks
// for gcroots (a network/object-storage backend cannot express that).
package cas

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"fspx/internal/dcontext"
	"fspx/internal/ferrors"
)

// Store is a content-addressed directory rooted at Dir.
type Store struct {
	Dir string

	// Ctx carries the logger used for ingest diagnostics. Defaults to a
	// background context with the process-wide logger if left nil.
	Ctx context.Context
}

// New returns a Store rooted at dir. dir is not required to exist yet;
// it is created lazily by the first ingest (mirroring import_paths'
// "Creates dstore if missing" contract in spec.md §4.1).
func New(dir string) *Store {
	return &Store{Dir: dir, Ctx: dcontext.Background()}
}

func (s *Store) ctx() context.Context {
	if s.Ctx != nil {
		return s.Ctx
	}
	return dcontext.Background()
}

// hexName returns the on-disk filename for d: its algorithm-less hex
// encoding, per I1 ("len(basename(F)) == 64").
func hexName(d digest.Digest) string {
	return d.Encoded()
}

func toDigest(hex string) (digest.Digest, error) {
	d := digest.NewDigestFromEncoded(digest.SHA256, hex)
	if err := d.Validate(); err != nil {
		return "", err
	}
	return d, nil
}

// Path returns the canonical store path for d, which may or may not exist.
func (s *Store) Path(d digest.Digest) string {
	return filepath.Join(s.Dir, hexName(d))
}

// Exists reports whether d is present in the store (hash_exists).
func (s *Store) Exists(d digest.Digest) bool {
	_, err := os.Stat(s.Path(d))
	return err == nil
}

func (s *Store) ensureDir() error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return &ferrors.IoError{Op: "mkdir dstore", Err: err}
	}
	return nil
}

// Ingest copies the file at path into the store under its content digest
// (copy_to_store). Idempotent: if the blob already exists, no copy is
// performed.
func (s *Store) Ingest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &ferrors.IoError{Op: "open " + path, Err: err}
	}
	defer f.Close()

	d, err := digest.FromReader(f)
	if err != nil {
		return "", &ferrors.IoError{Op: "hash " + path, Err: err}
	}

	if err := s.ensureDir(); err != nil {
		return "", err
	}

	dst := s.Path(d)
	if _, err := os.Stat(dst); err == nil {
		return d, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", &ferrors.IoError{Op: "seek " + path, Err: err}
	}

	dcontext.GetLogger(s.ctx()).Debugf("importing %s into %s (%s)", path, s.Dir, d)

	if err := writeReadOnly(dst, f); err != nil {
		return "", err
	}

	return d, nil
}

// IngestBytes stores data under its content digest (import_data).
func (s *Store) IngestBytes(data []byte) (digest.Digest, error) {
	d := digest.FromBytes(data)

	if err := s.ensureDir(); err != nil {
		return "", err
	}

	dst := s.Path(d)
	if _, err := os.Stat(dst); err == nil {
		return d, nil
	}

	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", &ferrors.IoError{Op: "write " + tmp, Err: err}
	}
	if err := os.Chmod(tmp, 0o444); err != nil {
		return "", &ferrors.IoError{Op: "chmod " + tmp, Err: err}
	}
	if err := os.Rename(tmp, dst); err != nil {
		return "", &ferrors.IoError{Op: "rename " + tmp, Err: err}
	}

	return d, nil
}

func writeReadOnly(dst string, r io.Reader) error {
	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &ferrors.IoError{Op: "create " + tmp, Err: err}
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(tmp)
		return &ferrors.IoError{Op: "copy into " + tmp, Err: err}
	}
	if err := out.Close(); err != nil {
		return &ferrors.IoError{Op: "close " + tmp, Err: err}
	}
	if err := os.Chmod(tmp, 0o444); err != nil {
		return &ferrors.IoError{Op: "chmod " + tmp, Err: err}
	}
	if err := os.Rename(tmp, dst); err != nil {
		return &ferrors.IoError{Op: "rename " + tmp, Err: err}
	}
	return nil
}

// canonical resolves path the way Python's os.path.realpath does: absolute,
// with symlinks resolved where the path exists; for a path that does not
// (yet) exist, only the existing prefix is resolved.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	// Walk up to the nearest existing ancestor and resolve that, then
	// reattach the non-existent suffix.
	dir, base := filepath.Split(abs)
	dir = filepath.Clean(dir)
	resolvedDir, derr := canonical(dir)
	if derr != nil {
		return "", derr
	}
	return filepath.Join(resolvedDir, base), nil
}

// withinStore reports whether the canonical path cp lies strictly inside
// the canonical store root cstore, i.e. the store is a prefix of cp
// starting at index 0 and cp is not the store root itself.
func withinStore(cstore, cp string) bool {
	rel, err := filepath.Rel(cstore, cp)
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !hasParentPrefix(rel)
}

func hasParentPrefix(rel string) bool {
	return rel == ".." || (len(rel) >= 3 && rel[:3] == "../")
}

// HashFromStorePath implements hash_from_store_path: path must canonicalize
// to lie exactly inside dstore's canonical form.
func (s *Store) HashFromStorePath(path string) (digest.Digest, error) {
	cp, err := canonical(path)
	if err != nil {
		return "", &ferrors.IoError{Op: "canonicalize " + path, Err: err}
	}
	cstore, err := canonical(s.Dir)
	if err != nil {
		return "", &ferrors.IoError{Op: "canonicalize " + s.Dir, Err: err}
	}

	if !withinStore(cstore, cp) {
		return "", &ferrors.NotInStore{Path: path, Store: s.Dir}
	}

	return toDigest(filepath.Base(cp))
}

// IngestPaths bulk-ingests the given logical names, applying $VAR
// expansion after prepending prefix (import_paths). If a path already
// canonicalizes into dstore, its basename is trusted as the hash and no
// copy happens.
func (s *Store) IngestPaths(names []string, prefix string) (map[string]digest.Digest, error) {
	if err := s.ensureDir(); err != nil {
		return nil, err
	}

	cstore, err := canonical(s.Dir)
	if err != nil {
		return nil, &ferrors.IoError{Op: "canonicalize " + s.Dir, Err: err}
	}

	out := make(map[string]digest.Digest, len(names))
	for _, name := range names {
		expanded := os.ExpandEnv(prefix + name)
		cp, err := canonical(expanded)
		if err != nil {
			return nil, &ferrors.IoError{Op: "canonicalize " + expanded, Err: err}
		}

		var d digest.Digest
		if withinStore(cstore, cp) {
			d, err = toDigest(filepath.Base(cp))
			if err != nil {
				return nil, &ferrors.IntegrityViolation{Path: cp, Reason: err.Error()}
			}
		} else {
			d, err = s.Ingest(cp)
			if err != nil {
				return nil, err
			}
		}
		out[name] = d
	}

	return out, nil
}
