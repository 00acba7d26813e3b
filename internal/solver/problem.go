package solver

import (
	"sort"

	"github.com/gonda-project/gonda/internal/record"
	"github.com/gonda-project/gonda/internal/version"
)

// Problem is one resolution request: the available package universe, the
// prefix's current installed state, and the specs that must hold in the
// result.
type Problem struct {
	Index     *record.Index
	Installed map[string]*record.PackageRecord // by name
	Requested []version.MatchSpec              // explicitly requested this run
	Pinned    []version.MatchSpec              // from pinned_packages, always enforced
	Options   Options
}

// candidateUniverse is the working subgraph: for every name reachable from
// a requested/pinned/installed spec by following depends edges, every
// matching PackageRecord in the index — the variable universe the clause
// encoding is built over.
type candidateUniverse struct {
	byName    map[string][]*record.PackageRecord
	mandatory map[string]bool // must be assigned some candidate, not left absent
	// order is the deterministic processing order: mandatory names first
	// in breadth-first discovery order (so a dependency is always
	// processed after the record that introduced it), then optional
	// (constrains-only) names sorted alphabetically.
	order []string
}

func depNames(cands []*record.PackageRecord, constrainsToo bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range cands {
		lists := [][]string{c.Depends}
		if constrainsToo {
			lists = append(lists, c.Constrains)
		}
		for _, list := range lists {
			for _, dep := range list {
				spec, err := version.ParseMatchSpec(dep)
				if err != nil || spec.Name == "" || seen[spec.Name] {
					continue
				}
				seen[spec.Name] = true
				out = append(out, spec.Name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func buildUniverse(p *Problem) *candidateUniverse {
	u := &candidateUniverse{
		byName:    make(map[string][]*record.PackageRecord),
		mandatory: make(map[string]bool),
	}
	discovered := make(map[string]bool)

	load := func(name string) []*record.PackageRecord {
		if cands, ok := u.byName[name]; ok {
			return cands
		}
		cands := p.Index.Query(name)
		u.byName[name] = cands
		return cands
	}

	var seedNames []string
	seedSeen := make(map[string]bool)
	addSeed := func(name string) {
		if name != "" && !seedSeen[name] {
			seedSeen[name] = true
			seedNames = append(seedNames, name)
		}
	}
	for _, s := range p.Requested {
		addSeed(s.Name)
	}
	if p.Options.DepsModifier != DepsModifierOnlyDeps && !p.Options.Prune {
		var installedNames []string
		for name := range p.Installed {
			installedNames = append(installedNames, name)
		}
		sort.Strings(installedNames)
		for _, n := range installedNames {
			addSeed(n)
		}
	}
	sort.Strings(seedNames)

	queue := append([]string(nil), seedNames...)
	for _, n := range queue {
		discovered[n] = true
		u.mandatory[n] = true
	}
	for i := 0; i < len(queue); i++ {
		cands := load(queue[i])
		for _, child := range depNames(cands, false) {
			if !discovered[child] {
				discovered[child] = true
				u.mandatory[child] = true
				queue = append(queue, child)
			}
		}
	}
	u.order = append(u.order, queue...)

	// pinned names and constrains-only names are loaded into the pool but
	// not made mandatory.
	var extra []string
	for _, s := range p.Pinned {
		if s.Name != "" && !discovered[s.Name] {
			extra = append(extra, s.Name)
		}
	}
	if p.Options.Prune {
		for name := range p.Installed {
			if !discovered[name] {
				extra = append(extra, name)
			}
		}
	}
	for i := 0; i < len(extra); i++ {
		if discovered[extra[i]] {
			continue
		}
		discovered[extra[i]] = true
		cands := load(extra[i])
		for _, child := range depNames(cands, true) {
			if !discovered[child] {
				extra = append(extra, child)
			}
		}
	}
	sort.Strings(extra)
	u.order = append(u.order, extra...)

	return u
}
