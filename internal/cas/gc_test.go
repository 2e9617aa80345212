package cas

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGCPreservesRootedBlobs(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "dstore"))

	src := filepath.Join(dir, "a.txt")
	os.WriteFile(src, []byte("hi\n"), 0o644)
	d, _ := store.Ingest(src)
	store.Link(filepath.Join(dir, "outputs", "y.txt"), d, true, true)

	count, err := store.GC()
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if count != 0 {
		t.Fatalf("GC removed %d blobs, want 0 for a still-referenced blob", count)
	}
	if !store.Exists(d) {
		t.Fatalf("rooted blob was removed by GC")
	}
}

func TestGCRemovesUnreferencedBlobs(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "dstore"))

	src := filepath.Join(dir, "a.txt")
	os.WriteFile(src, []byte("hi\n"), 0o644)
	d, _ := store.Ingest(src)

	linkPath := filepath.Join(dir, "outputs", "y.txt")
	store.Link(linkPath, d, true, true)
	if err := os.Remove(linkPath); err != nil {
		t.Fatalf("unlinking referrer: %v", err)
	}

	count, err := store.GC()
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if count != 1 {
		t.Fatalf("GC removed %d blobs, want 1", count)
	}
	if store.Exists(d) {
		t.Fatalf("unreferenced blob survived GC")
	}
	if _, err := os.Stat(filepath.Join(store.Dir, "gcroots", d.Encoded())); !os.IsNotExist(err) {
		t.Fatalf("gcroots dir for the reaped blob should be gone")
	}
}

func TestGCSweepsOrphanedBlobWithNoRootDir(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "dstore"))

	src := filepath.Join(dir, "a.txt")
	os.WriteFile(src, []byte("orphan"), 0o644)
	d, _ := store.Ingest(src)

	count, err := store.GC()
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if count != 1 {
		t.Fatalf("GC removed %d blobs, want 1 for an orphan with no gcroots dir", count)
	}
	if store.Exists(d) {
		t.Fatalf("orphaned blob survived GC")
	}
}
