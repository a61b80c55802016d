package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDir_Exists(t *testing.T) {
	dir := t.TempDir()

	d := New(dir)
	ok, err := d.Exists(context.Background())
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Error("Exists = false, want true for a directory that exists")
	}
}

func TestDir_ExistsFalseWhenMissing(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "does-not-exist"))

	ok, err := d.Exists(context.Background())
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Error("Exists = true, want false for a path that does not exist")
	}
}

func TestDir_ExistsFalseWhenEmptyPath(t *testing.T) {
	d := New("")

	ok, err := d.Exists(context.Background())
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Error("Exists = true, want false for an empty path")
	}
}

func TestDir_ExistsFalseWhenPathIsAFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d := New(file)
	ok, err := d.Exists(context.Background())
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Error("Exists = true, want false for a path that is a regular file, not a directory")
	}
}
