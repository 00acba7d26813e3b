package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsDirAndIsRegular(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if ok, err := IsDir(dir); err != nil || !ok {
		t.Errorf("IsDir(%s) = %v, %v; want true, nil", dir, ok, err)
	}
	if ok, err := IsDir(file); err != nil || ok {
		t.Errorf("IsDir(%s) = %v, %v; want false, nil", file, ok, err)
	}
	if ok, err := IsRegular(file); err != nil || !ok {
		t.Errorf("IsRegular(%s) = %v, %v; want true, nil", file, ok, err)
	}
	if _, err := IsRegular(dir); err == nil {
		t.Errorf("expected IsRegular on a directory to error")
	}
}

func TestIsDirMissingIsNotAnError(t *testing.T) {
	ok, err := IsDir(filepath.Join(t.TempDir(), "nonexistent"))
	if err != nil {
		t.Errorf("expected no error for a missing path, got %v", err)
	}
	if ok {
		t.Errorf("expected a missing path to report false")
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	if Exists(file) {
		t.Errorf("expected nonexistent file to report false")
	}
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !Exists(file) {
		t.Errorf("expected existing file to report true")
	}
}

func TestAtomicWriteFileReplacesContentWhole(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "record.json")
	if err := AtomicWriteFile(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("got %q, want %q", got, "second")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestCopyFilePreservesContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dest := filepath.Join(dir, "dest.txt")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := CopyFile(src, dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("got %q, want %q", got, "payload")
	}
}

func TestCopyDirSkipsSymlinksAndRecurses(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "sub"), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "sub", "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.Symlink(filepath.Join(src, "sub", "f.txt"), filepath.Join(src, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported in this environment: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "copy")
	if err := CopyDir(src, dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !Exists(filepath.Join(dest, "sub", "f.txt")) {
		t.Errorf("expected nested file to be copied")
	}
	if Exists(filepath.Join(dest, "link.txt")) {
		t.Errorf("expected symlink to be skipped, not copied")
	}
}
