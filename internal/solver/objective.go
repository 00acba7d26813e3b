package solver

import (
	"sort"

	"github.com/gonda-project/gonda/internal/record"
)

// objective is the ordered criteria vector used to rank candidate
// solutions: channel priority violations, track_features count, version
// decreases, total changes, then version/build/timestamp preference
// sums. Lower is always better, compared lexicographically left to
// right.
type objective struct {
	channelViolations int
	trackFeatures     int
	decreases         int
	changes           int
	versionRankSum    int64 // negated already: lower (more negative) is better
	buildNumberSum    int64
	timestampSum      int64
}

// less reports whether a is strictly better than b under lexicographic
// minimisation.
func (a objective) less(b objective) bool {
	if a.channelViolations != b.channelViolations {
		return a.channelViolations < b.channelViolations
	}
	if a.trackFeatures != b.trackFeatures {
		return a.trackFeatures < b.trackFeatures
	}
	if a.decreases != b.decreases {
		return a.decreases < b.decreases
	}
	if a.changes != b.changes {
		return a.changes < b.changes
	}
	if a.versionRankSum != b.versionRankSum {
		return a.versionRankSum < b.versionRankSum
	}
	if a.buildNumberSum != b.buildNumberSum {
		return a.buildNumberSum < b.buildNumberSum
	}
	return a.timestampSum < b.timestampSum
}

// evaluate computes the objective vector for one candidate assignment
// (name -> chosen record, absent names simply missing from the map)
// against the installed baseline and channel priority table.
func evaluate(chosen map[string]*record.PackageRecord, installed map[string]*record.PackageRecord, strictChannelPriority bool, channelRank map[string]int, universe *candidateUniverse) objective {
	var o objective

	if strictChannelPriority {
		for name, rec := range chosen {
			best := -1
			for _, cand := range universe.byName[name] {
				r, ok := channelRank[cand.Channel]
				if !ok {
					r = 1 << 30
				}
				if best == -1 || r < best {
					best = r
				}
			}
			r, ok := channelRank[rec.Channel]
			if !ok {
				r = 1 << 30
			}
			if best != -1 && r != best {
				o.channelViolations++
			}
		}
	}

	for _, rec := range chosen {
		o.trackFeatures += len(rec.TrackFeature)
	}

	for name, old := range installed {
		newRec, ok := chosen[name]
		if !ok {
			o.changes++
			continue
		}
		if newRec.PrimaryKey() != old.PrimaryKey() {
			o.changes++
			if newRec.Version.Compare(old.Version) < 0 {
				o.decreases++
			}
		}
	}

	for name, rec := range chosen {
		cands := universe.byName[name]
		o.versionRankSum -= int64(versionRank(cands, rec))
		o.buildNumberSum -= int64(rec.BuildNumber)
		o.timestampSum -= rec.Timestamp
	}

	return o
}

// versionRank returns rec's rank among cands ordered by version (ties broken
// by build number), counted from 1 for the oldest up to len(cands) for the
// newest, or 0 if rec is not among cands; used so "prefer newer" scores
// consistently even across packages with very different version magnitudes.
func versionRank(cands []*record.PackageRecord, rec *record.PackageRecord) int {
	sorted := append([]*record.PackageRecord(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].Version.Compare(sorted[j].Version); c != 0 {
			return c > 0
		}
		return sorted[i].BuildNumber > sorted[j].BuildNumber
	})
	for i, c := range sorted {
		if c.PrimaryKey() == rec.PrimaryKey() {
			return len(sorted) - i
		}
	}
	return 0
}
