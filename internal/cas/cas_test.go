package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestIngestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "dstore"))

	src := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(src, []byte("hi\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	d, err := store.Ingest(src)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	sum := sha256.Sum256([]byte("hi\n"))
	want := hex.EncodeToString(sum[:])
	if d.Encoded() != want {
		t.Fatalf("digest = %s, want %s", d.Encoded(), want)
	}

	got, err := os.ReadFile(store.Path(d))
	if err != nil {
		t.Fatalf("reading stored blob: %v", err)
	}
	if string(got) != "hi\n" {
		t.Fatalf("stored content = %q, want %q", got, "hi\n")
	}
}

func TestIngestIsIdempotentAndReadOnly(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "dstore"))

	src := filepath.Join(dir, "a.txt")
	os.WriteFile(src, []byte("content"), 0o644)

	d1, err := store.Ingest(src)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	d2, err := store.Ingest(src)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("ingesting identical content twice produced different hashes: %s vs %s", d1, d2)
	}

	info, err := os.Stat(store.Path(d1))
	if err != nil {
		t.Fatalf("stat blob: %v", err)
	}
	if info.Mode().Perm()&0o200 != 0 {
		t.Fatalf("blob is owner-writable: %v", info.Mode())
	}
}

func TestIngestPathsShortCircuitsStorePaths(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "dstore"))

	src := filepath.Join(dir, "a.txt")
	os.WriteFile(src, []byte("payload"), 0o644)
	d, err := store.Ingest(src)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	hashes, err := store.IngestPaths([]string{store.Path(d)}, "")
	if err != nil {
		t.Fatalf("IngestPaths: %v", err)
	}
	if hashes[store.Path(d)] != d {
		t.Fatalf("IngestPaths on a store-relative path returned %s, want %s", hashes[store.Path(d)], d)
	}
}

func TestHashFromStorePathRejectsOutsidePaths(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "dstore"))
	os.MkdirAll(store.Dir, 0o755)

	outside := filepath.Join(dir, "outside.txt")
	os.WriteFile(outside, []byte("x"), 0o644)

	if _, err := store.HashFromStorePath(outside); err == nil {
		t.Fatalf("expected NotInStore error for a path outside the store")
	}
}
