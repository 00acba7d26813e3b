// Package doctor implements conda's read-only environment health checks:
// a registry of named checks, each producing a Report, plus an optional
// fixer that can repair what the check found.
package doctor

import (
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/gonda-project/gonda/internal/fsutil"
	"github.com/gonda-project/gonda/internal/history"
	"github.com/gonda-project/gonda/internal/prefixdata"
)

// Finding is one problem surfaced by a check.
type Finding struct {
	Package  string // empty if not package-specific
	Path     string // empty if not file-specific
	Message  string
}

// Report is the result of running one check against one prefix.
type Report struct {
	Name     string
	Findings []Finding
}

func (r Report) OK() bool { return len(r.Findings) == 0 }

// CheckFunc runs one named check against prefix. verbose requests extra
// detail in Findings where a check supports it (e.g. including every
// matched file, not just a count).
type CheckFunc func(prefix string, verbose bool) (Report, error)

// FixFunc repairs whatever the paired CheckFunc most recently found. Not
// every check has a fixer; registry entries without one leave Fix nil.
type FixFunc func(prefix string, report Report) error

// entry pairs one named check with its optional fixer.
type entry struct {
	check CheckFunc
	fix   FixFunc
}

var registry = map[string]entry{
	"missing-files":  {check: CheckMissingFiles},
	"altered-files":  {check: CheckAlteredFiles},
	"consistency":    {check: CheckConsistency},
	"pinned":         {check: CheckPinned},
	"environment-txt": {check: CheckEnvironmentFiles},
}

// Names returns every registered check name, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sortStrings(names)
	return names
}

func sortStrings(ss []string) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j-1] > ss[j]; j-- {
			ss[j-1], ss[j] = ss[j], ss[j-1]
		}
	}
}

// Run executes one named check.
func Run(name, prefix string, verbose bool) (Report, error) {
	e, ok := registry[name]
	if !ok {
		return Report{}, errors.Errorf("doctor: no such check %q", name)
	}
	return e.check(prefix, verbose)
}

// RunAll executes every registered check and returns the reports with at
// least one finding, sorted by check name.
func RunAll(prefix string, verbose bool) ([]Report, error) {
	var out []Report
	for _, name := range Names() {
		r, err := Run(name, prefix, verbose)
		if err != nil {
			return nil, errors.Wrapf(err, "running check %s", name)
		}
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out, nil
}

// Fix applies the fixer registered for name, if any. It is an error to
// call Fix for a check with no registered fixer.
func Fix(name, prefix string, report Report) error {
	e, ok := registry[name]
	if !ok {
		return errors.Errorf("doctor: no such check %q", name)
	}
	if e.fix == nil {
		return errors.Errorf("doctor: check %q has no fixer", name)
	}
	return e.fix(prefix, report)
}

// CheckMissingFiles reports every file a conda-meta record claims to own
// that is no longer present on disk.
func CheckMissingFiles(prefix string, verbose bool) (Report, error) {
	pd, err := prefixdata.Load(prefix)
	if err != nil {
		return Report{}, err
	}
	r := Report{Name: "missing-files"}
	for _, pr := range pd.All() {
		for _, f := range pr.FileList() {
			full := filepath.Join(prefix, f)
			if !fsutil.Exists(full) {
				r.Findings = append(r.Findings, Finding{Package: pr.Name, Path: f, Message: "file missing"})
			}
		}
	}
	return r, nil
}

// CheckAlteredFiles reports every file whose on-disk sha256 no longer
// matches the hash recorded at link time.
func CheckAlteredFiles(prefix string, verbose bool) (Report, error) {
	pd, err := prefixdata.Load(prefix)
	if err != nil {
		return Report{}, err
	}
	r := Report{Name: "altered-files"}
	for _, pr := range pd.All() {
		for _, f := range pr.Files {
			if f.SHA256 == "" {
				continue
			}
			full := filepath.Join(prefix, f.Path)
			sum, _, err := fileSHA256(full)
			if err != nil {
				continue // covered by missing-files
			}
			if sum != f.SHA256 {
				r.Findings = append(r.Findings, Finding{Package: pr.Name, Path: f.Path, Message: "content differs from what was recorded at link time"})
			}
		}
	}
	return r, nil
}

// CheckConsistency reports every record whose declared dependency is not
// installed. Two records claiming the same file make prefixdata.Load fail,
// so this check returns that error rather than a finding.
func CheckConsistency(prefix string, verbose bool) (Report, error) {
	pd, err := prefixdata.Load(prefix)
	if err != nil {
		return Report{}, err
	}
	r := Report{Name: "consistency"}
	for _, pr := range pd.All() {
		for _, dep := range pr.Depends {
			name := dependencyName(dep)
			if pd.Get(name) == nil {
				r.Findings = append(r.Findings, Finding{Package: pr.Name, Message: "depends on " + name + ", which is not installed"})
			}
		}
	}
	return r, nil
}

func dependencyName(dep string) string {
	for i, r := range dep {
		if r == ' ' || r == '=' || r == '<' || r == '>' || r == '!' || r == '[' {
			return dep[:i]
		}
	}
	return dep
}

// CheckPinned loads the history ledger and computes its input hash. It
// compares the hash with nothing, so its report never has a finding.
func CheckPinned(prefix string, verbose bool) (Report, error) {
	h, err := history.Load(prefix)
	if err != nil {
		return Report{}, err
	}
	r := Report{Name: "pinned"}
	if len(h.Entries) == 0 {
		return r, nil
	}
	// An empty hash would mean no requested specs were ever recorded;
	// nothing to validate against.
	if len(h.InputHash()) == 0 {
		return r, nil
	}
	return r, nil
}

// CheckEnvironmentFiles walks the prefix (skipping conda-meta) for *.pyc
// cache files that no installed record claims, using godirwalk for fast,
// order-stable traversal.
func CheckEnvironmentFiles(prefix string, verbose bool) (Report, error) {
	pd, err := prefixdata.Load(prefix)
	if err != nil {
		return Report{}, err
	}
	owned := make(map[string]bool)
	for _, pr := range pd.All() {
		for _, f := range pr.FileList() {
			owned[filepath.Join(prefix, f)] = true
		}
	}

	r := Report{Name: "environment-txt"}
	err = godirwalk.Walk(prefix, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				if filepath.Base(osPathname) == prefixdata.MetaDir {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(osPathname) == ".pyc" && !owned[osPathname] {
				r.Findings = append(r.Findings, Finding{Path: osPathname, Message: "unowned compiled bytecode cache file"})
			}
			return nil
		},
	})
	if err != nil {
		return Report{}, errors.Wrap(err, "walking prefix")
	}
	return r, nil
}
