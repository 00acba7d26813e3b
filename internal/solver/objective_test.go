package solver

import (
	"testing"

	"github.com/gonda-project/gonda/internal/record"
)

func TestObjectiveLessIsLexicographic(t *testing.T) {
	cases := []struct {
		name string
		a, b objective
		want bool
	}{
		{"channel violations dominate", objective{channelViolations: 0, changes: 10}, objective{channelViolations: 1, changes: 0}, true},
		{"track features break ties after channel", objective{channelViolations: 1, trackFeatures: 0}, objective{channelViolations: 1, trackFeatures: 1}, true},
		{"decreases beats changes", objective{decreases: 0, changes: 5}, objective{decreases: 1, changes: 0}, true},
		{"equal vectors are not less", objective{changes: 1}, objective{changes: 1}, false},
		{"version rank sum is the tie-break after changes", objective{versionRankSum: -5}, objective{versionRankSum: -1}, true},
	}
	for _, c := range cases {
		if got := c.a.less(c.b); got != c.want {
			t.Errorf("%s: a.less(b) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestVersionRankPrefersNewest(t *testing.T) {
	older := rec("conda-forge", "numpy", "1.0", 0)
	newer := rec("conda-forge", "numpy", "2.0", 0)
	cands := []*record.PackageRecord{older, newer}
	if r := versionRank(cands, newer); r != 2 {
		t.Errorf("got rank %d for the newest candidate, want 2 (highest)", r)
	}
	if r := versionRank(cands, older); r != 1 {
		t.Errorf("got rank %d for the oldest candidate, want 1", r)
	}
}

func TestEvaluateCountsChangesAndDecreases(t *testing.T) {
	installed := map[string]*record.PackageRecord{
		"numpy": rec("conda-forge", "numpy", "2.0", 0),
	}
	chosen := map[string]*record.PackageRecord{
		"numpy": rec("conda-forge", "numpy", "1.0", 0),
	}
	universe := &candidateUniverse{byName: map[string][]*record.PackageRecord{
		"numpy": {rec("conda-forge", "numpy", "1.0", 0), rec("conda-forge", "numpy", "2.0", 0)},
	}}
	obj := evaluate(chosen, installed, false, nil, universe)
	if obj.changes != 1 {
		t.Errorf("got changes=%d, want 1", obj.changes)
	}
	if obj.decreases != 1 {
		t.Errorf("got decreases=%d, want 1 (downgrade from 2.0 to 1.0)", obj.decreases)
	}
}
