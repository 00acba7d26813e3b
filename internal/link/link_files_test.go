package link

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRewritePlaceholderTextReplacesPrefix(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.py")
	content := "PREFIX = '" + placeholderPrefix + "'\n"
	if err := os.WriteFile(src, []byte(content), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	dest := filepath.Join(dir, "nested", "dest.py")

	if err := rewritePlaceholderText(src, dest, placeholderPrefix, "/home/user/envs/myenv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "PREFIX = '/home/user/envs/myenv'\n"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewritePlaceholderTextHonorsDeclaredPlaceholder(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.py")
	custom := "/custom/placeholder/path"
	if err := os.WriteFile(src, []byte("PREFIX = '"+custom+"'\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	dest := filepath.Join(dir, "dest.py")

	if err := rewritePlaceholderText(src, dest, custom, "/home/user/envs/myenv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "PREFIX = '/home/user/envs/myenv'\n"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewritePlaceholderBinaryPadsWithNulls(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	content := []byte(placeholderPrefix + "\x00trailing")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	dest := filepath.Join(dir, "dest.bin")

	shortPrefix := "/opt/x"
	if err := rewritePlaceholderBinary(src, dest, placeholderPrefix, shortPrefix); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(content) {
		t.Fatalf("got length %d, want unchanged length %d (null-padded)", len(got), len(content))
	}
	if string(got[:len(shortPrefix)]) != shortPrefix {
		t.Errorf("got prefix %q, want %q", got[:len(shortPrefix)], shortPrefix)
	}
	for _, b := range got[len(shortPrefix):len(placeholderPrefix)] {
		if b != 0 {
			t.Fatalf("expected null padding after the replacement prefix, got byte %v", b)
		}
	}
}

func TestRewritePlaceholderBinaryRejectsTooLongReplacement(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	if err := os.WriteFile(src, []byte(placeholderPrefix), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	dest := filepath.Join(dir, "dest.bin")

	tooLong := placeholderPrefix + "-extra-long-suffix-that-does-not-fit"
	if err := rewritePlaceholderBinary(src, dest, placeholderPrefix, tooLong); err == nil {
		t.Errorf("expected an error when the replacement prefix is longer than the placeholder")
	}
}

func TestReadPathsJSONListsFilesFromInfoFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "info"), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "info", "files"), []byte("lib/a.py\nlib/b.py\n\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	entries, err := readPathsJSON(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (blank line skipped)", len(entries))
	}
	if entries[0].Path != "lib/a.py" || entries[1].Path != "lib/b.py" {
		t.Errorf("got %+v", entries)
	}
	if entries[0].FileMode != "" || entries[0].Placeholder != "" {
		t.Errorf("expected no placeholder metadata without a has_prefix file, got %+v", entries[0])
	}
}

func TestReadPathsJSONAppliesLegacyHasPrefix(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "info"), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "info", "files"), []byte("bin/launcher\nlib/a.py\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	hasPrefix := "/opt/custom/placeholder binary bin/launcher\nbin/a.py\n"
	if err := os.WriteFile(filepath.Join(dir, "info", "has_prefix"), []byte(hasPrefix), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	entries, err := readPathsJSON(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byPath := map[string]pathEntry{}
	for _, e := range entries {
		byPath[e.Path] = e
	}

	launcher, ok := byPath["bin/launcher"]
	if !ok {
		t.Fatalf("missing bin/launcher entry: %+v", entries)
	}
	if launcher.FileMode != "binary-replace" || launcher.Placeholder != "/opt/custom/placeholder" {
		t.Errorf("got %+v, want binary-replace with custom placeholder", launcher)
	}

	plain, ok := byPath["lib/a.py"]
	if !ok {
		t.Fatalf("missing lib/a.py entry: %+v", entries)
	}
	if plain.FileMode != "" {
		t.Errorf("got %+v, want no placeholder rewrite declared", plain)
	}
}

func TestReadPathsJSONPrefersPathsJSONOverLegacyFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "info"), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	pathsJSON := `{
		"paths_version": 1,
		"paths": [
			{"_path": "lib/a.py", "path_type": "hardlink", "sha256_in_prefix": "abc", "size_in_bytes": 3},
			{"_path": "bin/launcher", "path_type": "hardlink", "prefix_placeholder": "/opt/anaconda1anaconda2anaconda3", "file_mode": "binary", "no_link": true}
		]
	}`
	if err := os.WriteFile(filepath.Join(dir, "info", "paths.json"), []byte(pathsJSON), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	// A stale legacy files list should be ignored once paths.json exists.
	if err := os.WriteFile(filepath.Join(dir, "info", "files"), []byte("should/not/appear\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	entries, err := readPathsJSON(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 from paths.json", len(entries))
	}
	if entries[0].Path != "lib/a.py" || entries[0].FileMode != "" {
		t.Errorf("got %+v", entries[0])
	}
	if entries[1].Path != "bin/launcher" || entries[1].FileMode != "binary-replace" || !entries[1].NoLink {
		t.Errorf("got %+v", entries[1])
	}
	if entries[1].Placeholder != placeholderPrefix {
		t.Errorf("got placeholder %q, want default", entries[1].Placeholder)
	}
}

func TestPythonTagExtractsMajorMinor(t *testing.T) {
	cases := map[string]string{
		"3.11.4": "3.11",
		"3.9":    "3.9",
		"3":      "",
	}
	for in, want := range cases {
		if got := pythonTag(in); got != want {
			t.Errorf("pythonTag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolvePythonDirsFallsBackWithoutInstalledPython(t *testing.T) {
	sitePackages, scripts := resolvePythonDirs(nil)
	if sitePackages == "" || scripts == "" {
		t.Errorf("expected non-empty fallback directories, got %q %q", sitePackages, scripts)
	}
}

func TestHashFileIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("same content"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	sum1, size1, err := hashFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sum2, size2, err := hashFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum1 != sum2 || size1 != size2 {
		t.Errorf("expected repeated hashing of the same file to agree")
	}
}
