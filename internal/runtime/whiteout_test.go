package runtime

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsWhiteoutRejectsRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regular")
	if err := os.WriteFile(path, []byte("hi"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if IsWhiteout(fi) {
		t.Fatal("regular file reported as whiteout")
	}
}

func TestMakeWhiteoutThenIsWhiteout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deleted")
	if err := MakeWhiteout(path); err != nil {
		t.Fatalf("MakeWhiteout: %v", err)
	}
	fi, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if !IsWhiteout(fi) {
		t.Fatal("node created by MakeWhiteout not recognized as a whiteout")
	}
}

func TestMakeWhiteoutReplacesExistingEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "was-a-dir")
	if err := os.MkdirAll(filepath.Join(path, "child"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := MakeWhiteout(path); err != nil {
		t.Fatalf("MakeWhiteout: %v", err)
	}
	fi, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if !IsWhiteout(fi) {
		t.Fatal("existing directory not replaced with a whiteout node")
	}
}
