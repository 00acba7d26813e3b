package version

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/gonda-project/gonda/internal/gondaerrors"
)

// Record is the minimal view of a package record a MatchSpec needs to
// evaluate against. internal/record.PackageRecord satisfies it; the
// interface lives here (rather than importing internal/record) to avoid a
// dependency cycle: constraint logic never imports the solver packages
// that consume it.
type Record interface {
	RecordName() string
	RecordVersion() Version
	RecordBuild() string
	RecordBuildNumber() int
	RecordChannel() string
	RecordSubdir() string
	RecordMD5() string
	RecordSHA256() string
	RecordTrackFeatures() []string
	RecordFeatures() []string
	RecordLicense() string
}

// MatchSpec is a predicate over a PackageRecord: an optional
// channel/subdir prefix, a package name, an optional version constraint, an
// optional build-string constraint, and a set of bracket options.
type MatchSpec struct {
	Channel      string
	Subdir       string
	Name         string
	Version      Constraint
	versionText  string
	Build        string // may contain a trailing "*" glob
	BuildNumber  *int
	MD5          string
	SHA256       string
	TrackFeature string
	Feature      string
	License      string
}

// Matches reports whether rec satisfies every clause of the match spec.
// It is pure and has no side effects.
func (m MatchSpec) Matches(rec Record) bool {
	if m.Name != "" && m.Name != "*" && rec.RecordName() != m.Name {
		return false
	}
	if m.Channel != "" && rec.RecordChannel() != m.Channel {
		return false
	}
	if m.Subdir != "" && rec.RecordSubdir() != m.Subdir {
		return false
	}
	if m.Version != nil && !m.Version.Matches(rec.RecordVersion()) {
		return false
	}
	if m.Build != "" && !globMatch(m.Build, rec.RecordBuild()) {
		return false
	}
	if m.BuildNumber != nil && *m.BuildNumber != rec.RecordBuildNumber() {
		return false
	}
	if m.MD5 != "" && !strings.EqualFold(m.MD5, rec.RecordMD5()) {
		return false
	}
	if m.SHA256 != "" && !strings.EqualFold(m.SHA256, rec.RecordSHA256()) {
		return false
	}
	if m.TrackFeature != "" && !contains(rec.RecordTrackFeatures(), m.TrackFeature) {
		return false
	}
	if m.Feature != "" && !contains(rec.RecordFeatures(), m.Feature) {
		return false
	}
	if m.License != "" && rec.RecordLicense() != m.License {
		return false
	}
	return true
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// ParseMatchSpec parses the textual form
// `[channel/subdir::]name[version-constraint][build-constraint][bracket-options]`.
// Bracket options may carry any of version, build,
// build_number, channel, subdir, md5, sha256, track_features, features,
// license, and override any value already present before the bracket.
func ParseMatchSpec(s string) (MatchSpec, error) {
	orig := s
	s = strings.TrimSpace(s)
	if s == "" {
		return MatchSpec{}, &gondaerrors.BadSpec{Input: orig, Cause: errEmptySpec}
	}

	m := MatchSpec{}

	var bracket string
	if i := strings.IndexByte(s, '['); i >= 0 {
		if !strings.HasSuffix(s, "]") {
			return MatchSpec{}, &gondaerrors.BadSpec{Input: orig, Cause: errUnterminatedBracket}
		}
		bracket = s[i+1 : len(s)-1]
		s = s[:i]
	}

	if i := strings.Index(s, "::"); i >= 0 {
		chanSub := s[:i]
		s = s[i+2:]
		if j := strings.LastIndex(chanSub, "/"); j >= 0 {
			m.Channel = chanSub[:j]
			m.Subdir = chanSub[j+1:]
		} else {
			m.Channel = chanSub
		}
	}

	// Name, then optional version, then optional " build" suffix.
	name, versionBuild := splitNameFromRest(s)
	if name == "" {
		return MatchSpec{}, &gondaerrors.BadSpec{Input: orig, Cause: errMissingName}
	}
	m.Name = name

	if versionBuild != "" {
		verText, build := splitVersionBuild(versionBuild)
		if verText != "" {
			c, err := ParseVersionConstraint(verText)
			if err != nil {
				return MatchSpec{}, &gondaerrors.BadSpec{Input: orig, Cause: err}
			}
			m.Version = c
			m.versionText = verText
		}
		m.Build = build
	}

	if bracket != "" {
		if err := applyBracketOptions(&m, bracket); err != nil {
			return MatchSpec{}, &gondaerrors.BadSpec{Input: orig, Cause: err}
		}
	}

	return m, nil
}

// splitNameFromRest finds the boundary between the bare package name and
// any trailing version/build constraint text: the first operator character
// or space. A digit does not end the name ("numpy1.20" never occurs in
// practice — conda names are always followed by whitespace or an operator
// before a constraint).
func splitNameFromRest(s string) (name, rest string) {
	for i, r := range s {
		switch r {
		case '=', '<', '>', '!', '~', ' ':
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i:])
		}
	}
	return s, ""
}

// splitVersionBuild separates "<version> <build>" — conda spec strings
// join the build string to the version with whitespace, e.g.
// "1.22.0 py310h1234_0".
func splitVersionBuild(s string) (ver, build string) {
	parts := strings.Fields(s)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func applyBracketOptions(m *MatchSpec, bracket string) error {
	for _, kv := range splitBracketFields(bracket) {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			return fmt.Errorf("malformed bracket option %q", kv)
		}
		key := strings.TrimSpace(kv[:eq])
		val := strings.Trim(strings.TrimSpace(kv[eq+1:]), `"'`)
		switch key {
		case "version":
			c, err := ParseVersionConstraint(val)
			if err != nil {
				return err
			}
			m.Version = c
			m.versionText = val
		case "build":
			m.Build = val
		case "build_number":
			var n int
			if _, err := fmt.Sscanf(val, "%d", &n); err != nil {
				return fmt.Errorf("bad build_number %q: %w", val, err)
			}
			m.BuildNumber = &n
		case "channel":
			m.Channel = val
		case "subdir":
			m.Subdir = val
		case "md5":
			m.MD5 = val
		case "sha256":
			m.SHA256 = val
		case "track_features":
			m.TrackFeature = val
		case "features":
			m.Feature = val
		case "license":
			m.License = val
		default:
			return fmt.Errorf("unknown bracket option %q", key)
		}
	}
	return nil
}

func splitBracketFields(s string) []string {
	var fields []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '"', '\'':
			depth ^= 1
		case ',':
			if depth == 0 {
				fields = append(fields, s[start:i])
				start = i + 1
			}
		}
	}
	fields = append(fields, s[start:])
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// String renders the canonical textual form. Parsing it again must yield
// an equal MatchSpec.
func (m MatchSpec) String() string {
	var sb strings.Builder
	if m.Channel != "" {
		sb.WriteString(m.Channel)
		if m.Subdir != "" {
			sb.WriteByte('/')
			sb.WriteString(m.Subdir)
		}
		sb.WriteString("::")
	}
	sb.WriteString(m.Name)

	var brackets []string
	if m.versionText != "" {
		if looksLikeBareVersion(m.versionText) {
			sb.WriteString(m.versionText)
		} else {
			brackets = append(brackets, "version="+quoteIfNeeded(m.versionText))
		}
	}
	if m.Build != "" {
		if m.versionText != "" && looksLikeBareVersion(m.versionText) {
			sb.WriteByte(' ')
			sb.WriteString(m.Build)
		} else {
			brackets = append(brackets, "build="+quoteIfNeeded(m.Build))
		}
	}
	if m.BuildNumber != nil {
		brackets = append(brackets, fmt.Sprintf("build_number=%d", *m.BuildNumber))
	}
	if m.MD5 != "" {
		brackets = append(brackets, "md5="+m.MD5)
	}
	if m.SHA256 != "" {
		brackets = append(brackets, "sha256="+m.SHA256)
	}
	if m.TrackFeature != "" {
		brackets = append(brackets, "track_features="+m.TrackFeature)
	}
	if m.Feature != "" {
		brackets = append(brackets, "features="+m.Feature)
	}
	if m.License != "" {
		brackets = append(brackets, "license="+quoteIfNeeded(m.License))
	}

	if len(brackets) > 0 {
		sort.Strings(brackets)
		sb.WriteByte('[')
		sb.WriteString(strings.Join(brackets, ","))
		sb.WriteByte(']')
	}
	return sb.String()
}

func looksLikeBareVersion(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case '=', '<', '>', '!', '~':
		return true
	}
	return !strings.ContainsAny(s, ",|")
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, ",[]=") {
		return `"` + s + `"`
	}
	return s
}

// Hash returns a deterministic hash of the match spec's canonical form,
// making MatchSpec usable as a stable set element.
func (m MatchSpec) Hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(m.String()))
	return h.Sum64()
}

var (
	errEmptySpec           = simpleErr("empty match spec")
	errUnterminatedBracket = simpleErr("unterminated bracket option list")
	errMissingName         = simpleErr("match spec has no package name")
)
