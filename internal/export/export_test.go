package export

import (
	"os"
	"path/filepath"
	"testing"

	"fspx/internal/cas"
	"fspx/internal/manifest"
	"fspx/internal/project"
)

func TestExportCopiesBlobsAndLinksIntoTargetStore(t *testing.T) {
	dir := t.TempDir()

	src := filepath.Join(dir, "x.txt")
	os.WriteFile(src, []byte("hi\n"), 0o644)

	source := cas.New(filepath.Join(dir, "dstore"))
	target := cas.New(filepath.Join(dir, "target-dstore"))
	manifests := manifest.New(filepath.Join(dir, "cfg"))

	inHash, err := source.Ingest(src)
	if err != nil {
		t.Fatalf("ingest input: %v", err)
	}
	outPath := filepath.Join(dir, "y.txt")
	os.WriteFile(outPath, []byte("out"), 0o644)
	outHash, err := source.Ingest(outPath)
	if err != nil {
		t.Fatalf("ingest output: %v", err)
	}

	if err := manifests.Write("A", manifest.Manifest{
		Inputs:   map[string]string{src: inHash.Encoded()},
		Function: "run.sh",
		Outputs:  map[string]string{"y.txt": outHash.Encoded()},
	}); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	proj := &project.Project{
		DStore: source.Dir,
		Jobsets: map[string]*project.Job{
			"A": {
				Inputs:    map[string]*string{src: nil},
				Outputs:   []string{"y.txt"},
				RunScript: "run.sh",
			},
		},
	}

	closureTool := filepath.Join(dir, "closure-tool.sh")
	os.WriteFile(closureTool, []byte("#!/bin/sh\nexit 0\n"), 0o755)

	toDir := filepath.Join(dir, "archive")
	exporter := New(source, target, manifests)
	exporter.ClosureTool = closureTool
	if err := exporter.Export(toDir, proj); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if !target.Exists(inHash) {
		t.Fatalf("input blob was not copied into the target store")
	}
	if !target.Exists(outHash) {
		t.Fatalf("output blob was not copied into the target store")
	}

	if _, err := os.Lstat(filepath.Join(toDir, "inputs", "x.txt")); err != nil {
		t.Fatalf("archive inputs/x.txt missing: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(toDir, "outputs", "y.txt")); err != nil {
		t.Fatalf("archive outputs/y.txt missing: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(toDir, "config.json")); err != nil {
		t.Fatalf("archive config.json missing: %v", err)
	}

	ok, problems := target.Verify()
	if !ok {
		t.Fatalf("target store failed verify_store: %v", problems)
	}
}
