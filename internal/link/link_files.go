package link

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"

	"github.com/gonda-project/gonda/internal/gondaerrors"
	"github.com/gonda-project/gonda/internal/prefixdata"
	"github.com/gonda-project/gonda/internal/pkgcache"
	"github.com/gonda-project/gonda/internal/record"
)

// placeholderPrefix is the build-time placeholder conda packages bake
// into text and binary files by default; link-time rewriting replaces it
// with the real prefix path. A package may declare a different
// placeholder per file (paths.json's prefix_placeholder, or the legacy
// has_prefix file's first field) — that value always wins over this
// default when present.
const placeholderPrefix = "/opt/anaconda1anaconda2anaconda3"

// linkOne extracts rec (fetching into the cache first if needed),
// rewrites noarch paths and prefix placeholders, and materializes every
// file into the prefix, returning the PrefixRecord to persist. pd is
// consulted to resolve the real site-packages/scripts directories for a
// noarch: python package, from whatever Python is already linked into
// the prefix.
func (e *Engine) linkOne(ctx context.Context, rec *record.PackageRecord, pd *prefixdata.PrefixData) (*prefixdata.PrefixRecord, error) {
	if _, err := e.Cache.Fetch(ctx, rec); err != nil {
		return nil, err
	}
	extractedDir, err := e.Cache.Extract(ctx, rec)
	if err != nil {
		return nil, err
	}

	info, err := readPathsJSON(extractedDir)
	if err != nil {
		return nil, err
	}

	var sitePackages, scriptsDir string
	if rec.NoarchKind == record.NoarchPython {
		sitePackages, scriptsDir = resolvePythonDirs(pd)
	}

	var files []prefixdata.PrefixFile
	for _, p := range info {
		target := p.Path
		isEntryPoint := false
		if rec.NoarchKind == record.NoarchPython {
			rewrites := record.MaterializeNoarchPython([]string{p.Path}, sitePackages, scriptsDir)
			target = rewrites[0].Target
			isEntryPoint = rewrites[0].IsEntryPoint
		}

		srcPath := filepath.Join(extractedDir, p.Path)
		destPath := filepath.Join(e.Prefix, target)

		placeholder := p.Placeholder
		if placeholder == "" {
			placeholder = placeholderPrefix
		}

		var linkType pkgcache.LinkType
		fileMode := ""
		switch p.FileMode {
		case "text":
			fileMode = "text"
			if err := rewritePlaceholderText(srcPath, destPath, placeholder, e.Prefix); err != nil {
				return nil, &gondaerrors.LinkFailed{Package: rec.Name, File: target, Cause: err}
			}
			linkType = pkgcache.LinkCopy
		case "binary-replace":
			fileMode = "binary"
			if err := rewritePlaceholderBinary(srcPath, destPath, placeholder, e.Prefix); err != nil {
				return nil, &gondaerrors.LinkFailed{Package: rec.Name, File: target, Cause: err}
			}
			linkType = pkgcache.LinkCopy
		default:
			lt, err := pkgcache.LinkFile(srcPath, destPath, e.AllowSoftlink, p.NoLink)
			if err != nil {
				return nil, &gondaerrors.LinkFailed{Package: rec.Name, File: target, Cause: err}
			}
			linkType = lt
		}

		if isEntryPoint {
			if err := os.Chmod(destPath, 0o755); err != nil {
				return nil, &gondaerrors.LinkFailed{Package: rec.Name, File: target, Cause: err}
			}
		}

		sum, size, err := hashFile(destPath)
		if err != nil {
			return nil, err
		}
		prefixPlaceholder := ""
		if fileMode != "" {
			prefixPlaceholder = placeholder
		}
		files = append(files, prefixdata.PrefixFile{
			Path:              target,
			PathType:          string(linkType),
			PrefixPlaceholder: prefixPlaceholder,
			FileMode:          fileMode,
			SHA256:            sum,
			SizeInBytes:       size,
		})
	}

	return &prefixdata.PrefixRecord{
		PackageRecord:    *rec,
		Files:            files,
		LinkedPackageDir: extractedDir,
	}, nil
}

// resolvePythonDirs returns the platform site-packages and scripts/bin
// directories, relative to the prefix, for whatever Python is currently
// linked there — matching conda's long-standing layout rather than
// inventing a new scheme. A noarch: python package is only ever solved
// alongside a python dependency, and the planner always links leaves
// (python) before the packages that depend on it, so pd should already
// carry the installed python record by the time this runs.
func resolvePythonDirs(pd *prefixdata.PrefixData) (sitePackages, scripts string) {
	var pythonVersion string
	if pd != nil {
		if py := pd.Get("python"); py != nil {
			pythonVersion = pythonTag(py.Version.String())
		}
	}
	if pythonVersion == "" {
		pythonVersion = "3"
	}
	if runtime.GOOS == "windows" {
		return "Lib/site-packages", "Scripts"
	}
	return "lib/python" + pythonVersion + "/site-packages", "bin"
}

// pythonTag extracts "major.minor" from a python version string such as
// "3.11.4", returning "" if it cannot find two numeric release components
// (resolvePythonDirs then falls back to "3").
func pythonTag(raw string) string {
	fields := strings.SplitN(raw, ".", 3)
	var nums []string
	for _, f := range fields {
		d := leadingDigits(f)
		if d == "" {
			break
		}
		nums = append(nums, d)
		if len(nums) == 2 {
			break
		}
	}
	if len(nums) < 2 {
		return ""
	}
	return nums[0] + "." + nums[1]
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

// pathEntry is one file conda's linker must materialize, plus the
// per-file metadata paths.json (or its legacy has_prefix/files
// equivalent) declares about it.
type pathEntry struct {
	Path        string
	FileMode    string // "text", "binary-replace", or ""
	Placeholder string // declared prefix placeholder; "" means the default
	NoLink      bool
	SHA256      string
	SizeInBytes int64
}

type wirePathsJSON struct {
	PathsVersion int              `json:"paths_version"`
	Paths        []wirePathsEntry `json:"paths"`
}

type wirePathsEntry struct {
	Path              string `json:"_path"`
	PathType          string `json:"path_type"`
	PrefixPlaceholder string `json:"prefix_placeholder"`
	FileMode          string `json:"file_mode"`
	NoLink            bool   `json:"no_link"`
	SHA256            string `json:"sha256_in_prefix"`
	SizeInBytes       int64  `json:"size_in_bytes"`
}

// readPathsJSON reads the extracted package's info/paths.json — the
// authoritative file list with per-file placeholder, mode, size, and
// SHA256 — falling back to the legacy info/files (line-delimited path
// list) plus info/has_prefix (legacy per-file placeholder/mode data)
// when paths.json is absent, the way older .tar.bz2 packages declare it.
func readPathsJSON(dir string) ([]pathEntry, error) {
	pathsJSON := filepath.Join(dir, "info", "paths.json")
	data, err := os.ReadFile(pathsJSON)
	if err == nil {
		return parsePathsJSON(data)
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "reading %s", pathsJSON)
	}
	return readLegacyFileList(dir)
}

func parsePathsJSON(data []byte) ([]pathEntry, error) {
	var w wirePathsJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(err, "parsing paths.json")
	}
	out := make([]pathEntry, 0, len(w.Paths))
	for _, p := range w.Paths {
		mode := ""
		if p.PrefixPlaceholder != "" {
			if p.FileMode == "text" {
				mode = "text"
			} else {
				mode = "binary-replace"
			}
		}
		out = append(out, pathEntry{
			Path:        p.Path,
			FileMode:    mode,
			Placeholder: p.PrefixPlaceholder,
			NoLink:      p.NoLink,
			SHA256:      p.SHA256,
			SizeInBytes: p.SizeInBytes,
		})
	}
	return out, nil
}

// hasPrefixEntry is one line of the legacy info/has_prefix file: a
// placeholder and mode declared for one path, the pre-paths.json way of
// saying "rewrite this file at link time".
type hasPrefixEntry struct {
	Placeholder string
	Mode        string // "text" or "binary"
}

func readLegacyFileList(dir string) ([]pathEntry, error) {
	filesList := filepath.Join(dir, "info", "files")
	data, err := os.ReadFile(filesList)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filesList)
	}
	hasPrefix := parseHasPrefix(dir)

	var out []pathEntry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		entry := pathEntry{Path: line}
		if hp, ok := hasPrefix[line]; ok {
			entry.Placeholder = hp.Placeholder
			if hp.Mode == "binary" {
				entry.FileMode = "binary-replace"
			} else {
				entry.FileMode = "text"
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// parseHasPrefix reads info/has_prefix, conda's legacy declaration of
// which files need placeholder rewriting. Each line is either a bare
// path (default placeholder, text mode) or "placeholder mode path" for a
// binary file or a non-default placeholder. A missing has_prefix file is
// not an error: it means the package declares no placeholder rewrites.
func parseHasPrefix(dir string) map[string]hasPrefixEntry {
	data, err := os.ReadFile(filepath.Join(dir, "info", "has_prefix"))
	if err != nil {
		return nil
	}
	out := make(map[string]hasPrefixEntry)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch len(fields) {
		case 1:
			out[fields[0]] = hasPrefixEntry{Placeholder: placeholderPrefix, Mode: "text"}
		case 3:
			out[fields[2]] = hasPrefixEntry{Placeholder: fields[0], Mode: fields[1]}
		}
	}
	return out
}

func rewritePlaceholderText(src, dest, placeholder, prefix string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	rewritten := bytes.ReplaceAll(data, []byte(placeholder), []byte(prefix))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, rewritten, 0o644)
}

func rewritePlaceholderBinary(src, dest, placeholder, prefix string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if len(prefix) > len(placeholder) {
		return &gondaerrors.PrefixTooLong{File: dest, Placeholder: len(placeholder), Replacement: len(prefix)}
	}
	// Each NUL-terminated string holding the placeholder is rewritten and
	// then NUL-padded back to its original length.
	ph := []byte(placeholder)
	segs := bytes.Split(data, []byte{0})
	for i, seg := range segs {
		if bytes.Contains(seg, ph) {
			s := bytes.ReplaceAll(seg, ph, []byte(prefix))
			segs[i] = append(s, make([]byte, len(seg)-len(s))...)
		}
	}
	rewritten := bytes.Join(segs, []byte{0})
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, rewritten, 0o644)
}

func hashFile(path string) (sum string, size int64, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), int64(len(data)), nil
}
