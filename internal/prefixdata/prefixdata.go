// Package prefixdata implements the on-disk metadata for one conda
// environment prefix: the per-package PrefixRecord files under
// conda-meta/, the PrefixData in-memory view built from them, and the
// invariants that must hold for any prefix (unique name per prefix, no
// two packages claiming the same file), written with the same
// atomic-write-then-rename discipline used throughout this module, with
// per-file hash/size bookkeeping modeled on how content-addressed
// install recorders track materialized files.
package prefixdata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/gonda-project/gonda/internal/fsutil"
	"github.com/gonda-project/gonda/internal/gondaerrors"
	"github.com/gonda-project/gonda/internal/record"
	"github.com/gonda-project/gonda/internal/version"
)

// MetaDir is the conda-meta directory name beneath a prefix.
const MetaDir = "conda-meta"

// PrefixFile records the per-file metadata conda tracks for an installed
// package: its path relative to the prefix, whether prefix placeholders
// were rewritten into it, the file mode it was linked with, and the
// content hash recorded at link time.
type PrefixFile struct {
	Path            string `json:"path"`
	PathType        string `json:"path_type"` // "hardlink", "softlink", "copy"
	PrefixPlaceholder string `json:"prefix_placeholder,omitempty"`
	FileMode        string `json:"file_mode,omitempty"` // "text" or "binary"
	SHA256          string `json:"sha256_in_prefix,omitempty"`
	SizeInBytes     int64  `json:"size_in_bytes,omitempty"`
}

// PrefixRecord is a PackageRecord plus the installation-time metadata
// recorded for one package in one prefix: its linked files and the
// specs that were explicitly requested when it was installed.
type PrefixRecord struct {
	record.PackageRecord
	Files          []PrefixFile `json:"files"`
	Paths          []string     `json:"-"` // cached Files[i].Path, derived
	RequestedSpec  string       `json:"requested_spec,omitempty"`
	LinkedPackageDir string     `json:"package_tarball_full_path,omitempty"`
}

// FileList returns the prefix-relative paths this record claims.
func (pr *PrefixRecord) FileList() []string {
	if pr.Paths != nil {
		return pr.Paths
	}
	paths := make([]string, len(pr.Files))
	for i, f := range pr.Files {
		paths[i] = f.Path
	}
	return paths
}

// PrefixData is the loaded conda-meta/ state for one prefix: every
// installed package, keyed by name. A prefix may never hold two records
// for the same name.
type PrefixData struct {
	Prefix   string
	byName   map[string]*PrefixRecord
	byFile   map[string]string // prefix-relative file path -> owning package name
}

// Load reads every *.json file under prefix/conda-meta and builds a
// PrefixData, validating two invariants: one record per name, and no two
// records claiming the same file.
func Load(prefix string) (*PrefixData, error) {
	pd := &PrefixData{
		Prefix: prefix,
		byName: make(map[string]*PrefixRecord),
		byFile: make(map[string]string),
	}

	metaDir := filepath.Join(prefix, MetaDir)
	entries, err := os.ReadDir(metaDir)
	if err != nil {
		if os.IsNotExist(err) {
			return pd, nil
		}
		return nil, errors.Wrapf(err, "reading %s", metaDir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, fn := range names {
		data, err := os.ReadFile(filepath.Join(metaDir, fn))
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", fn)
		}
		pr, err := decodeRecord(data)
		if err != nil {
			return nil, &gondaerrors.CorruptPrefix{Prefix: prefix, BadRecord: fn, Reason: err.Error()}
		}
		if err := pd.insertLocked(pr); err != nil {
			return nil, err
		}
	}

	return pd, nil
}

type wireRecord struct {
	Channel      string                     `json:"channel"`
	Subdir       string                     `json:"subdir"`
	Name         string                     `json:"name"`
	Version      string                     `json:"version"`
	Build        string                     `json:"build"`
	BuildNumber  int                        `json:"build_number"`
	Depends      []string                   `json:"depends"`
	Constrains   []string                   `json:"constrains,omitempty"`
	Features     []string                   `json:"features,omitempty"`
	TrackFeature []string                   `json:"track_features,omitempty"`
	License      string                     `json:"license,omitempty"`
	Size         int64                      `json:"size"`
	MD5          string                     `json:"md5,omitempty"`
	SHA256       string                     `json:"sha256,omitempty"`
	Timestamp    int64                      `json:"timestamp,omitempty"`
	NoarchKind   string                     `json:"noarch,omitempty"`
	Platform     string                     `json:"platform,omitempty"`
	URL          string                     `json:"url,omitempty"`
	Files        []PrefixFile               `json:"files"`
	RequestedSpec string                    `json:"requested_spec,omitempty"`
	PackageTarballFullPath string           `json:"package_tarball_full_path,omitempty"`
	Extra        map[string]json.RawMessage `json:"-"`
}

func decodeRecord(data []byte) (*PrefixRecord, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	v, err := version.Parse(w.Version)
	if err != nil {
		return nil, err
	}
	pr := &PrefixRecord{
		PackageRecord: record.PackageRecord{
			Channel:      w.Channel,
			Subdir:       w.Subdir,
			Name:         w.Name,
			Version:      v,
			Build:        w.Build,
			BuildNumber:  w.BuildNumber,
			Depends:      w.Depends,
			Constrains:   w.Constrains,
			Features:     w.Features,
			TrackFeature: w.TrackFeature,
			License:      w.License,
			Size:         w.Size,
			MD5:          w.MD5,
			SHA256:       w.SHA256,
			Timestamp:    w.Timestamp,
			NoarchKind:   record.Noarch(w.NoarchKind),
			Platform:     w.Platform,
			URL:          w.URL,
		},
		Files:            w.Files,
		RequestedSpec:    w.RequestedSpec,
		LinkedPackageDir: w.PackageTarballFullPath,
	}
	return pr, nil
}

func encodeRecord(pr *PrefixRecord) ([]byte, error) {
	w := wireRecord{
		Channel:                pr.Channel,
		Subdir:                 pr.Subdir,
		Name:                   pr.Name,
		Version:                pr.Version.String(),
		Build:                  pr.Build,
		BuildNumber:            pr.BuildNumber,
		Depends:                pr.Depends,
		Constrains:             pr.Constrains,
		Features:               pr.Features,
		TrackFeature:           pr.TrackFeature,
		License:                pr.License,
		Size:                   pr.Size,
		MD5:                    pr.MD5,
		SHA256:                 pr.SHA256,
		Timestamp:              pr.Timestamp,
		NoarchKind:             string(pr.NoarchKind),
		Platform:               pr.Platform,
		URL:                    pr.URL,
		Files:                  pr.Files,
		RequestedSpec:          pr.RequestedSpec,
		PackageTarballFullPath: pr.LinkedPackageDir,
	}
	return json.MarshalIndent(w, "", "  ")
}

// Get returns the installed record for name, or nil if not installed.
func (pd *PrefixData) Get(name string) *PrefixRecord {
	return pd.byName[name]
}

// ByName returns a snapshot of the current name -> record map, safe for
// a caller to range over without racing further mutation of pd.
func (pd *PrefixData) ByName() map[string]*PrefixRecord {
	out := make(map[string]*PrefixRecord, len(pd.byName))
	for n, pr := range pd.byName {
		out[n] = pr
	}
	return out
}

// All returns every installed record, sorted by name for determinism.
func (pd *PrefixData) All() []*PrefixRecord {
	names := make([]string, 0, len(pd.byName))
	for n := range pd.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*PrefixRecord, len(names))
	for i, n := range names {
		out[i] = pd.byName[n]
	}
	return out
}

func (pd *PrefixData) insertLocked(pr *PrefixRecord) error {
	if existing, ok := pd.byName[pr.Name]; ok {
		return &gondaerrors.CorruptPrefix{
			Prefix:    pd.Prefix,
			BadRecord: pr.Name,
			Reason:    "duplicate conda-meta record for package " + pr.Name + " (already have " + existing.Fn() + ")",
		}
	}
	for _, f := range pr.FileList() {
		if owner, ok := pd.byFile[f]; ok {
			return &gondaerrors.CorruptPrefix{
				Prefix:    pd.Prefix,
				BadRecord: pr.Name,
				Reason:    "file " + f + " claimed by both " + owner + " and " + pr.Name,
			}
		}
	}
	pd.byName[pr.Name] = pr
	for _, f := range pr.FileList() {
		pd.byFile[f] = pr.Name
	}
	return nil
}

// Insert adds a new package record to in-memory state without touching
// disk; WriteRecord persists it. It re-validates the two
// PrefixData invariants.
func (pd *PrefixData) Insert(pr *PrefixRecord) error {
	return pd.insertLocked(pr)
}

// Remove drops name from in-memory state without touching disk.
func (pd *PrefixData) Remove(name string) {
	pr, ok := pd.byName[name]
	if !ok {
		return
	}
	for _, f := range pr.FileList() {
		delete(pd.byFile, f)
	}
	delete(pd.byName, name)
}

// FileOwner returns which package name claims a given prefix-relative
// path, or "" if unclaimed.
func (pd *PrefixData) FileOwner(path string) string {
	return pd.byFile[path]
}

// metaFileName is the conda-meta/ filename for a record: "<fn-without-ext>.json".
func metaFileName(pr *PrefixRecord) string {
	fn := pr.Fn()
	for _, ext := range []string{".conda", ".tar.bz2"} {
		if len(fn) > len(ext) && fn[len(fn)-len(ext):] == ext {
			fn = fn[:len(fn)-len(ext)]
			break
		}
	}
	return fn + ".json"
}

// WriteRecord atomically writes pr's conda-meta/<fn>.json file, creating
// conda-meta/ if necessary. It does not mutate in-memory state; callers
// persisting a new install should call Insert then WriteRecord.
func WriteRecord(prefix string, pr *PrefixRecord) error {
	metaDir := filepath.Join(prefix, MetaDir)
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", metaDir)
	}
	data, err := encodeRecord(pr)
	if err != nil {
		return errors.Wrap(err, "encoding prefix record")
	}
	path := filepath.Join(metaDir, metaFileName(pr))
	return fsutil.AtomicWriteFile(path, data, 0o644)
}

// RemoveRecordFile deletes name's conda-meta/<fn>.json file from disk.
func RemoveRecordFile(prefix string, pr *PrefixRecord) error {
	path := filepath.Join(prefix, MetaDir, metaFileName(pr))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", path)
	}
	return nil
}
