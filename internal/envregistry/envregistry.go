// Package envregistry implements the plain newline-delimited list of
// environment prefixes conda maintains so `conda env list` (and similar
// tooling) can enumerate every environment ever created, even ones
// outside the default envs directory.
package envregistry

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/gonda-project/gonda/internal/fsutil"
)

// FileName is the registry file's conventional name beneath the user's
// conda config directory.
const FileName = "environments.txt"

// Registry is an append/query-only set of absolute environment prefixes.
type Registry struct {
	path string
}

// Open returns a Registry backed by path, creating neither the file nor
// its parent directory until the first Append.
func Open(path string) *Registry {
	return &Registry{path: path}
}

// List returns every registered prefix, deduplicated and sorted, skipping
// entries that no longer exist on disk.
func (r *Registry) List() ([]string, error) {
	f, err := os.Open(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", r.path)
	}
	defer f.Close()

	seen := make(map[string]bool)
	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || seen[line] {
			continue
		}
		if ok, _ := fsutil.IsDir(line); !ok {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", r.path)
	}
	sort.Strings(out)
	return out, nil
}

// Append records prefix in the registry if it is not already present.
// prefix is stored as given; callers should pass an absolute path.
func (r *Registry) Append(prefix string) error {
	existing, err := r.rawLines()
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e == prefix {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(r.path))
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "opening %s", r.path)
	}
	defer f.Close()
	_, err = f.WriteString(prefix + "\n")
	return err
}

// Remove drops prefix from the registry, rewriting the file atomically.
func (r *Registry) Remove(prefix string) error {
	existing, err := r.rawLines()
	if err != nil {
		return err
	}
	var kept []string
	for _, e := range existing {
		if e != prefix {
			kept = append(kept, e)
		}
	}
	return fsutil.AtomicWriteFile(r.path, []byte(strings.Join(kept, "\n")+"\n"), 0o644)
}

func (r *Registry) rawLines() ([]string, error) {
	f, err := os.Open(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", r.path)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
