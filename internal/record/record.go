// Package record implements the in-memory PackageRecord representation and
// the channel/subdir-addressed Index built from repodata. Unknown JSON
// keys are preserved in a side bag so records round-trip even though
// each record carries many optional fields.
package record

import (
	"encoding/json"
	"sort"

	"github.com/gonda-project/gonda/internal/version"
)

// Noarch classifies a record's noarch kind.
type Noarch string

const (
	NoarchNone    Noarch = ""
	NoarchPython  Noarch = "python"
	NoarchGeneric Noarch = "generic"
)

// PackageRecord is one immutable package at one specific version/build.
// Primary key = (Channel, Subdir, Name, Version, Build, BuildNumber).
type PackageRecord struct {
	Channel      string
	Subdir       string
	Name         string
	Version      version.Version
	Build        string
	BuildNumber  int
	Depends      []string
	Constrains   []string
	Features     []string
	TrackFeature []string
	License      string
	Size         int64
	MD5          string
	SHA256       string
	Timestamp    int64
	NoarchKind   Noarch
	Platform     string
	URL          string

	// Extra preserves repodata fields this struct does not model
	// explicitly, keyed by JSON field name, so loaders remain
	// forward-compatible.
	Extra map[string]json.RawMessage
}

// Fn is the repodata filename this record was parsed from, e.g.
// "numpy-1.22.0-py310h1234_0.tar.bz2" or "...conda". It doubles as a cache
// key component.
func (r *PackageRecord) Fn() string {
	ext := ".tar.bz2"
	if isCondaFormat(r.Extra) {
		ext = ".conda"
	}
	return r.Name + "-" + r.Version.String() + "-" + r.Build + ext
}

func isCondaFormat(extra map[string]json.RawMessage) bool {
	_, ok := extra["__conda_format"]
	return ok
}

// The following accessors satisfy version.Record, letting MatchSpec
// evaluate directly against a *PackageRecord without internal/version
// importing internal/record (see matchspec.go's comment on layering).

func (r *PackageRecord) RecordName() string            { return r.Name }
func (r *PackageRecord) RecordVersion() version.Version { return r.Version }
func (r *PackageRecord) RecordBuild() string            { return r.Build }
func (r *PackageRecord) RecordBuildNumber() int         { return r.BuildNumber }
func (r *PackageRecord) RecordChannel() string          { return r.Channel }
func (r *PackageRecord) RecordSubdir() string           { return r.Subdir }
func (r *PackageRecord) RecordMD5() string              { return r.MD5 }
func (r *PackageRecord) RecordSHA256() string           { return r.SHA256 }
func (r *PackageRecord) RecordTrackFeatures() []string  { return r.TrackFeature }
func (r *PackageRecord) RecordFeatures() []string       { return r.Features }
func (r *PackageRecord) RecordLicense() string          { return r.License }

// PrimaryKey is the record's unique identity tuple rendered as a string,
// used as a map key throughout the solver and planner.
func (r *PackageRecord) PrimaryKey() string {
	return r.Channel + "/" + r.Subdir + "::" + r.Name + "-" + r.Version.String() + "-" + r.Build +
		"-" + itoa(r.BuildNumber)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Hash returns the declared integrity hash for the record, preferring
// sha256 when present and falling back to md5; legacy records carrying
// only an md5 are never upgraded to a computed sha256.
func (r *PackageRecord) Hash() (algo, digest string) {
	if r.SHA256 != "" {
		return "sha256", r.SHA256
	}
	return "md5", r.MD5
}

// ByQueryOrder sorts records the way Index.Query must return them:
// channel priority ascending, version descending, build_number descending,
// build string descending, timestamp descending. priority maps a channel
// name to its configured priority (lower = higher priority);
// unknown channels sort last.
func ByQueryOrder(recs []*PackageRecord, priority map[string]int) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		pa, pb := channelPriority(priority, a.Channel), channelPriority(priority, b.Channel)
		if pa != pb {
			return pa < pb
		}
		if c := a.Version.Compare(b.Version); c != 0 {
			return c > 0
		}
		if a.BuildNumber != b.BuildNumber {
			return a.BuildNumber > b.BuildNumber
		}
		if a.Build != b.Build {
			return a.Build > b.Build
		}
		return a.Timestamp > b.Timestamp
	})
}

func channelPriority(priority map[string]int, channel string) int {
	if p, ok := priority[channel]; ok {
		return p
	}
	return 1 << 30
}
