package record

import (
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"
)

// FileRewrite describes how one file entry in a noarch: python package's
// file list gets materialized for the requesting platform:
// "site-packages/…" moves under the platform's Python site-packages
// directory, and "python-scripts/…" moves under the platform bin/Scripts
// directory. Dependencies themselves are never rewritten — only paths.
type FileRewrite struct {
	// Source is the path as declared in paths.json.
	Source string
	// Target is Source rewritten under sitePackages or scriptsDir, or
	// Source unchanged for any other path.
	Target string
	// IsEntryPoint is true when Source falls under "python-scripts/". It
	// only marks the entry; no entry-point stub is generated for it.
	IsEntryPoint bool
}

// MaterializeNoarchPython rewrites a noarch: python record's declared file
// paths for a concrete platform. sitePackages and scriptsDir are the
// platform-specific directories the link engine resolves (e.g.
// "lib/python3.11/site-packages" and "bin" on unix, "Lib\site-packages"
// and "Scripts" on Windows) — matching conda's long-standing behavior
// rather than inventing a new layout scheme.
func MaterializeNoarchPython(paths []string, sitePackages, scriptsDir string) []FileRewrite {
	out := make([]FileRewrite, 0, len(paths))
	for _, p := range paths {
		switch {
		case strings.HasPrefix(p, "site-packages/"):
			rest := strings.TrimPrefix(p, "site-packages/")
			out = append(out, FileRewrite{
				Source: p,
				Target: joinSlash(sitePackages, rest),
			})
		case strings.HasPrefix(p, "python-scripts/"):
			rest := strings.TrimPrefix(p, "python-scripts/")
			out = append(out, FileRewrite{
				Source:       p,
				Target:       joinSlash(scriptsDir, rest),
				IsEntryPoint: true,
			})
		default:
			out = append(out, FileRewrite{Source: p, Target: p})
		}
	}
	return out
}

func joinSlash(a, b string) string {
	if a == "" {
		return b
	}
	return strings.TrimSuffix(a, "/") + "/" + b
}

// NormalizeRequiresPython validates and normalizes a noarch: python
// record's optional `requires_python` compatibility tag. Unlike the
// package's own version (which follows conda's grammar, internal/version),
// this sub-field genuinely is a PEP440 version-specifier string (e.g.
// ">=3.8,<3.12") as produced by Python packaging tooling, so it is parsed
// with the ecosystem's own PEP440 implementation rather than conda's
// comparator.
func NormalizeRequiresPython(spec string) (string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", nil
	}
	c, err := pep440.NewConstraints(spec)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// PythonSatisfies reports whether the given interpreter version (e.g.
// "3.11.4") satisfies a record's requires_python constraint.
func PythonSatisfies(requiresPython, pythonVersion string) (bool, error) {
	if requiresPython == "" {
		return true, nil
	}
	c, err := pep440.NewConstraints(requiresPython)
	if err != nil {
		return false, err
	}
	v, err := pep440.Parse(pythonVersion)
	if err != nil {
		return false, err
	}
	return c.Check(v), nil
}
