// Package version implements conda's version grammar and total ordering:
// an optional epoch, a dot-separated release of integer/string atoms, and
// an optional local segment. No library in the retrieval pack parses this
// exact grammar (PEP440 and SemVer are both close but not equivalent —
// neither has conda's free-form alphanumeric build-string tail or its
// `dev < _ < alpha < beta < rc < (release) < post` atom order) so this is
// the one hand-rolled comparator in the module; see DESIGN.md.
package version

import (
	"strconv"
	"strings"

	"github.com/gonda-project/gonda/internal/gondaerrors"
)

// atomClass orders the non-numeric atom classes relative to a bare release
// segment and to each other. Numeric atoms always sort by value within a
// component and dominate no class; this table only ranks the *kind* of a
// string atom against the implicit "release" class (rank 0).
var atomClass = map[string]int{
	"dev":   -50,
	"_":     -40,
	"alpha": -30,
	"a":     -30,
	"beta":  -20,
	"b":     -20,
	"rc":    -10,
	"c":     -10,
	"post":  10,
	"rev":   10,
	"r":     10,
}

// atom is one dot-separated piece of a release/local component. Exactly one
// of (isNum, num) or (str) is meaningful.
type atom struct {
	isNum bool
	num   int64
	str   string
}

func parseAtom(s string) atom {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return atom{isNum: true, num: n}
	}
	return atom{str: strings.ToLower(s)}
}

func (a atom) class() int {
	if a.isNum {
		return 0
	}
	if c, ok := atomClass[a.str]; ok {
		return c
	}
	// Unknown string atoms (e.g. a custom suffix) sort like a release
	// atom that is alphabetically after the release itself but before any
	// recognised post marker; conda treats them as ordinary string
	// components compared lexically within their own class.
	return 5
}

func compareAtom(a, b atom) int {
	ac, bc := a.class(), b.class()
	if ac != bc {
		if ac < bc {
			return -1
		}
		return 1
	}
	if a.isNum && b.isNum {
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	}
	if a.str < b.str {
		return -1
	}
	if a.str > b.str {
		return 1
	}
	return 0
}

// splitComponent breaks one dot-delimited component (e.g. "1.0rc1" after
// splitting on dots would already have fed us "1" then "0rc1") further into
// a run of digit/non-digit atoms, the way conda's tokenizer does: "0rc1"
// becomes atoms [0, rc, 1].
func splitComponent(s string) []atom {
	var atoms []atom
	i := 0
	for i < len(s) {
		j := i
		isDigit := s[i] >= '0' && s[i] <= '9'
		for j < len(s) {
			d := s[j] >= '0' && s[j] <= '9'
			if d != isDigit {
				break
			}
			j++
		}
		atoms = append(atoms, parseAtom(s[i:j]))
		i = j
	}
	if len(atoms) == 0 {
		atoms = append(atoms, atom{isNum: true, num: 0})
	}
	return atoms
}

// tokenize splits a release or local segment into its dot/underscore/hyphen
// separated components, each further broken into atoms. A component that
// opens with a string atom (".dev0", ".post1") continues the component
// before it, so "1.0.dev0" orders like "1.0dev0".
func tokenize(segment string) [][]atom {
	if segment == "" {
		return nil
	}
	parts := strings.FieldsFunc(segment, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	out := make([][]atom, 0, len(parts))
	for _, p := range parts {
		atoms := splitComponent(p)
		if len(out) > 0 && !atoms[0].isNum {
			out[len(out)-1] = append(out[len(out)-1], atoms...)
			continue
		}
		out = append(out, atoms)
	}
	return out
}

// Version is an immutable, totally ordered value parsed from a conda
// version string.
type Version struct {
	raw     string
	epoch   int64
	release [][]atom
	local   [][]atom
}

// Parse parses a version string of the form `[epoch!]release[+local]`.
// Leading `v` is never stripped; `parse_version("v1.0")` treats `v1` as the
// first release atom.
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, &gondaerrors.BadVersion{Input: s, Cause: errEmpty}
	}
	v := Version{raw: s}

	rest := s
	if i := strings.IndexByte(rest, '!'); i >= 0 {
		n, err := strconv.ParseInt(rest[:i], 10, 64)
		if err != nil || n < 0 {
			return Version{}, &gondaerrors.BadVersion{Input: s, Cause: errEpoch}
		}
		v.epoch = n
		rest = rest[i+1:]
	}

	release := rest
	var local string
	if i := strings.IndexByte(rest, '+'); i >= 0 {
		release = rest[:i]
		local = rest[i+1:]
	}
	if release == "" {
		return Version{}, &gondaerrors.BadVersion{Input: s, Cause: errNoRelease}
	}

	v.release = tokenize(release)
	if local != "" {
		v.local = tokenize(local)
	}
	return v, nil
}

// MustParse panics on invalid input; only used for statically known
// version literals (tests, constants).
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the original, unnormalized input string.
func (v Version) String() string { return v.raw }

// Epoch returns the version's epoch (0 if unspecified).
func (v Version) Epoch() int64 { return v.epoch }

func compareComponents(a, b [][]atom) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var ca, cb []atom
		if i < len(a) {
			ca = a[i]
		}
		if i < len(b) {
			cb = b[i]
		}
		if d := compareAtomRun(ca, cb); d != 0 {
			return d
		}
	}
	return 0
}

// compareAtomRun compares two atom runs, padding the shorter one with
// implicit zero atoms — except that a run whose first extra atom is a
// dev/rc-class marker makes that side smaller even against a zero pad,
// which is what makes `1.0.dev1 < 1.0` and `1.0rc1 < 1.0` hold.
func compareAtomRun(a, b []atom) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	zero := atom{isNum: true, num: 0}
	for i := 0; i < n; i++ {
		av, bv := zero, zero
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if d := compareAtom(av, bv); d != 0 {
			return d
		}
	}
	return 0
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// o. It is total, reflexive, transitive, and antisymmetric: epochs
// dominate, then the release component-wise, then the local segment
// (present > absent, compared the same way).
func (v Version) Compare(o Version) int {
	if v.epoch != o.epoch {
		if v.epoch < o.epoch {
			return -1
		}
		return 1
	}
	if d := compareComponents(v.release, o.release); d != 0 {
		return d
	}
	switch {
	case len(v.local) == 0 && len(o.local) == 0:
		return 0
	case len(v.local) == 0:
		return -1
	case len(o.local) == 0:
		return 1
	default:
		return compareComponents(v.local, o.local)
	}
}

func (v Version) Less(o Version) bool    { return v.Compare(o) < 0 }
func (v Version) Equal(o Version) bool   { return v.Compare(o) == 0 }
func (v Version) Greater(o Version) bool { return v.Compare(o) > 0 }

// IsZero reports whether v is the unparsed zero value.
func (v Version) IsZero() bool { return v.raw == "" && v.release == nil }

var (
	errEmpty     = simpleErr("empty version string")
	errEpoch     = simpleErr("malformed epoch segment")
	errNoRelease = simpleErr("missing release segment")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
