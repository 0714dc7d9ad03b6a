package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStartProfile(t *testing.T) {
	dir := t.TempDir()

	p, err := startProfile("cpu", dir)
	if err != nil {
		t.Fatal(err)
	}
	p.Stop()
	if _, err := os.Stat(filepath.Join(dir, "cpu.pprof")); err != nil {
		t.Fatalf("profile not written on explicit stop: %v", err)
	}

	p, err = startProfile("", dir)
	if err != nil {
		t.Fatal(err)
	}
	p.Stop()

	if _, err := startProfile("gpu", dir); err == nil {
		t.Fatalf("expected an error")
	}
}
