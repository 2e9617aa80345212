package stale

import (
	"os"
	"path/filepath"
	"testing"

	"fspx/internal/cas"
	"fspx/internal/manifest"
	"fspx/internal/project"
)

func setup(t *testing.T) (*Checker, string) {
	t.Helper()
	dir := t.TempDir()
	store := cas.New(filepath.Join(dir, "dstore"))
	manifests := manifest.New(filepath.Join(dir, "cfg"))
	return New(manifests, store), dir
}

func TestCheckJobIsStaleWithNoManifest(t *testing.T) {
	c, dir := setup(t)
	src := filepath.Join(dir, "x.txt")
	os.WriteFile(src, []byte("hi\n"), 0o644)

	job := &project.Job{
		Inputs:    map[string]*string{src: nil},
		Outputs:   []string{"y.txt"},
		RunScript: "run.sh",
	}

	fresh, err := c.CheckJob("A", job)
	if err != nil {
		t.Fatalf("CheckJob: %v", err)
	}
	if fresh {
		t.Fatalf("a job with no manifest must be stale")
	}
}

func TestCheckJobFreshAfterMatchingManifest(t *testing.T) {
	c, dir := setup(t)
	src := filepath.Join(dir, "x.txt")
	os.WriteFile(src, []byte("hi\n"), 0o644)

	job := &project.Job{
		Inputs:    map[string]*string{src: nil},
		Outputs:   []string{"y.txt"},
		RunScript: "run.sh",
	}

	inputHash, err := c.Store.Ingest(src)
	if err != nil {
		t.Fatalf("ingest input: %v", err)
	}
	outPath := filepath.Join(dir, "y.txt")
	os.WriteFile(outPath, []byte("out"), 0o644)
	outHash, err := c.Store.Ingest(outPath)
	if err != nil {
		t.Fatalf("ingest output: %v", err)
	}

	err = c.Manifests.Write("A", manifest.Manifest{
		Inputs:   map[string]string{src: inputHash.Encoded()},
		Function: "run.sh",
		Outputs:  map[string]string{"y.txt": outHash.Encoded()},
	})
	if err != nil {
		t.Fatalf("Write manifest: %v", err)
	}

	fresh, err := c.CheckJob("A", job)
	if err != nil {
		t.Fatalf("CheckJob: %v", err)
	}
	if !fresh {
		t.Fatalf("job should be fresh when manifest matches live state")
	}
}

func TestCheckJobStaleAfterInputMutation(t *testing.T) {
	c, dir := setup(t)
	src := filepath.Join(dir, "x.txt")
	os.WriteFile(src, []byte("hi\n"), 0o644)

	job := &project.Job{
		Inputs:    map[string]*string{src: nil},
		Outputs:   []string{"y.txt"},
		RunScript: "run.sh",
	}

	inputHash, _ := c.Store.Ingest(src)
	outPath := filepath.Join(dir, "y.txt")
	os.WriteFile(outPath, []byte("out"), 0o644)
	outHash, _ := c.Store.Ingest(outPath)

	c.Manifests.Write("A", manifest.Manifest{
		Inputs:   map[string]string{src: inputHash.Encoded()},
		Function: "run.sh",
		Outputs:  map[string]string{"y.txt": outHash.Encoded()},
	})

	os.WriteFile(src, []byte("bye\n"), 0o644)

	fresh, err := c.CheckJob("A", job)
	if err != nil {
		t.Fatalf("CheckJob: %v", err)
	}
	if fresh {
		t.Fatalf("job should be stale after its input's content changed")
	}
}

func TestCheckJobsetIsInvalidWithNoManifests(t *testing.T) {
	c, dir := setup(t)
	src := filepath.Join(dir, "x.txt")
	os.WriteFile(src, []byte("hi\n"), 0o644)

	a := &project.Job{
		Inputs:    map[string]*string{src: nil},
		Outputs:   []string{"A.y.txt"},
		RunScript: "a.sh",
	}
	b := &project.Job{
		Inputs:    map[string]*string{":A.y.txt": nil},
		Outputs:   []string{"B.z.txt"},
		RunScript: "b.sh",
		Deps:      map[string]*project.Job{"A": a},
	}

	jobset := map[string]*project.Job{"A": a, "B": b}

	_, valid, err := c.CheckJobset(jobset)
	if err != nil {
		t.Fatalf("CheckJobset: %v", err)
	}
	if valid {
		t.Fatalf("a jobset with no manifests at all must be invalid")
	}
}
