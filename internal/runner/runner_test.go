package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fspx/internal/cas"
	"fspx/internal/manifest"
	"fspx/internal/project"
)

// writeScript writes an executable shell script to path.
func writeScript(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing script %s: %v", path, err)
	}
}

func TestRunJobStagesExecutesAndCapturesOutputs(t *testing.T) {
	dir := t.TempDir()
	oldwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(oldwd)

	workdir := filepath.Join(dir, "work")
	os.MkdirAll(workdir, 0o755)

	src := filepath.Join(dir, "x.txt")
	os.WriteFile(src, []byte("hi\n"), 0o644)

	runScript := filepath.Join(dir, "run.sh")
	writeScript(t, runScript, `cp "$1/inputs/x.txt" "$1/y.txt"`)
	checkScript := filepath.Join(dir, "check.sh")
	writeScript(t, checkScript, `test -f "$1/y.txt"`)

	job := &project.Job{
		Inputs:      map[string]*string{src: nil},
		Outputs:     []string{"y.txt"},
		RunScript:   runScript,
		CheckScript: checkScript,
		Workdir:     workdir,
	}

	store := cas.New(filepath.Join(dir, "dstore"))
	manifests := manifest.New(filepath.Join(dir, "cfg"))
	r := New(manifests, store)

	if err := r.RunJob(context.Background(), "A", job); err != nil {
		t.Fatalf("RunJob: %v", err)
	}

	m, err := manifests.Read("A")
	if err != nil {
		t.Fatalf("Read manifest: %v", err)
	}
	if _, ok := m.Outputs["y.txt"]; !ok {
		t.Fatalf("manifest has no recorded hash for y.txt: %+v", m)
	}

	if _, err := os.Lstat(filepath.Join(dir, "outputs", "y.txt")); err != nil {
		t.Fatalf("outputs/y.txt was not linked: %v", err)
	}
}

func TestRunJobFailsFatallyOnNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	oldwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(oldwd)

	workdir := filepath.Join(dir, "work")
	os.MkdirAll(workdir, 0o755)

	runScript := filepath.Join(dir, "run.sh")
	writeScript(t, runScript, `exit 1`)

	job := &project.Job{
		Outputs:   []string{"y.txt"},
		RunScript: runScript,
		Workdir:   workdir,
	}

	store := cas.New(filepath.Join(dir, "dstore"))
	manifests := manifest.New(filepath.Join(dir, "cfg"))
	r := New(manifests, store)

	if err := r.RunJob(context.Background(), "A", job); err == nil {
		t.Fatalf("expected a fatal error from a non-zero run script exit")
	}
}
