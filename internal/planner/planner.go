// Package planner computes an ordered link/unlink plan from a prefix's
// current PrefixRecords and a solver Solution, and topologically sorts it
// by dependency order so that links happen leaf-first and unlinks happen
// root-first. The diff is computed by primary key, the same
// diff-by-key shape used elsewhere in this module for computing state
// deltas, generalized here from project-diffing to package-diffing.
package planner

import (
	"sort"

	"github.com/gonda-project/gonda/internal/gondaerrors"
	"github.com/gonda-project/gonda/internal/prefixdata"
	"github.com/gonda-project/gonda/internal/record"
	"github.com/gonda-project/gonda/internal/version"
)

// Action is one step of a plan: either a link or unlink of a single
// package, in execution order.
type Action struct {
	Verb   string // "link" or "unlink"
	Name   string
	Record *record.PackageRecord // for "link"
	Prefix *prefixdata.PrefixRecord // for "unlink"
}

// Plan is the ordered action sequence produced by diffing a prefix's
// current state against a target package set.
type Plan struct {
	PreUnlinkOrder []Action // pre-unlink scripts run in this order
	UnlinkOrder    []Action
	LinkOrder      []Action
	PostLinkOrder  []Action // same order as LinkOrder
}

// Compute diffs current (by name) against target (by name), then
// topologically sorts to_link by dependency (leaves first) and to_unlink
// by reverse dependency (dependents first).
func Compute(current map[string]*prefixdata.PrefixRecord, target map[string]*record.PackageRecord) (*Plan, error) {
	var toLink []*record.PackageRecord
	var toUnlink []*prefixdata.PrefixRecord

	for name, cur := range current {
		tgt, ok := target[name]
		if !ok || tgt.PrimaryKey() != cur.PackageRecord.PrimaryKey() {
			toUnlink = append(toUnlink, cur)
		}
	}
	for name, tgt := range target {
		cur, ok := current[name]
		if !ok || cur.PackageRecord.PrimaryKey() != tgt.PrimaryKey() {
			toLink = append(toLink, tgt)
		}
	}

	linkOrder, err := topoSortLink(toLink, target)
	if err != nil {
		return nil, err
	}
	unlinkOrder, err := topoSortUnlink(toUnlink, current)
	if err != nil {
		return nil, err
	}

	p := &Plan{}
	for _, r := range unlinkOrder {
		p.PreUnlinkOrder = append(p.PreUnlinkOrder, Action{Verb: "unlink", Name: r.Name, Prefix: r})
		p.UnlinkOrder = append(p.UnlinkOrder, Action{Verb: "unlink", Name: r.Name, Prefix: r})
	}
	for _, r := range linkOrder {
		p.LinkOrder = append(p.LinkOrder, Action{Verb: "link", Name: r.Name, Record: r})
		p.PostLinkOrder = append(p.PostLinkOrder, Action{Verb: "link", Name: r.Name, Record: r})
	}
	return p, nil
}

// dependsOn extracts the package names a record's depends list names,
// ignoring anything that fails to parse as a MatchSpec.
func dependsOn(depends []string) []string {
	var out []string
	for _, d := range depends {
		if sp, err := version.ParseMatchSpec(d); err == nil && sp.Name != "" {
			out = append(out, sp.Name)
		}
	}
	return out
}

// topoSortLink orders toLink so that every record appears after its
// dependencies (leaves first), consulting the full target set to resolve
// edges even when a dependency is unchanged and absent from toLink.
func topoSortLink(toLink []*record.PackageRecord, target map[string]*record.PackageRecord) ([]*record.PackageRecord, error) {
	byName := make(map[string]*record.PackageRecord, len(toLink))
	for _, r := range toLink {
		byName[r.Name] = r
	}
	names := make([]string, 0, len(toLink))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(names))
	var out []*record.PackageRecord
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return &gondaerrors.PartialTransaction{
				Indeterminate: append(append([]string(nil), path...), name),
				Cause:         errCycle{names: path},
			}
		}
		color[name] = gray
		r, ok := byName[name]
		if ok {
			for _, dep := range dependsOn(r.Depends) {
				if _, inLink := byName[dep]; inLink {
					if err := visit(dep, append(path, name)); err != nil {
						return err
					}
				}
			}
			out = append(out, r)
		}
		color[name] = black
		return nil
	}
	for _, n := range names {
		if err := visit(n, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// topoSortUnlink orders toUnlink so every record appears after everything
// still being removed that depends on it (dependents first, i.e. reverse
// dependency order).
func topoSortUnlink(toUnlink []*prefixdata.PrefixRecord, current map[string]*prefixdata.PrefixRecord) ([]*prefixdata.PrefixRecord, error) {
	byName := make(map[string]*prefixdata.PrefixRecord, len(toUnlink))
	for _, r := range toUnlink {
		byName[r.Name] = r
	}
	// reverse edges: name -> set of names in toUnlink that depend on it
	dependents := make(map[string][]string)
	for _, r := range toUnlink {
		for _, dep := range dependsOn(r.Depends) {
			if _, ok := byName[dep]; ok {
				dependents[dep] = append(dependents[dep], r.Name)
			}
		}
	}
	for dep := range dependents {
		sort.Strings(dependents[dep])
	}

	names := make([]string, 0, len(toUnlink))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(names))
	var out []*prefixdata.PrefixRecord
	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return &gondaerrors.PartialTransaction{Indeterminate: []string{name}, Cause: errCycle{names: []string{name}}}
		}
		color[name] = gray
		for _, dependent := range dependents[name] {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		out = append(out, byName[name])
		color[name] = black
		return nil
	}
	for _, n := range names {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type errCycle struct{ names []string }

func (e errCycle) Error() string {
	return "dependency cycle detected among: " + join(e.names)
}

func join(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += " -> "
		}
		out += s
	}
	return out
}
