package solver

import (
	"sort"
	"time"

	"github.com/gonda-project/gonda/internal/gondaerrors"
	"github.com/gonda-project/gonda/internal/record"
	"github.com/gonda-project/gonda/internal/version"
)

// Solution is the result of a successful Solve: one chosen record per
// mandatory name, plus whichever optional names ended up selected.
type Solution struct {
	Records map[string]*record.PackageRecord
}

// search carries the mutable state of one backtracking run: the current
// partial assignment, the work remaining to process, and the best
// complete assignment found so far.
type search struct {
	p        *Problem
	u        *candidateUniverse
	requested map[string]version.MatchSpec
	pinned    map[string][]version.MatchSpec
	channelRank map[string]int
	strictChannelPriority bool
	deadline time.Time

	best    map[string]*record.PackageRecord
	bestObj objective
	haveBest bool
	explored int
	maxExplored int
}

const defaultMaxExplored = 200000

// Solve resolves p into a Solution, or fails with one of: a
// PackageNotFoundError, a NothingProvidesError, or an UnsatisfiableError
// carrying a conflict tree.
func Solve(p *Problem) (*Solution, error) {
	for _, s := range p.Requested {
		if len(p.Index.Query(s.Name)) == 0 {
			return nil, &gondaerrors.PackageNotFoundError{Name: s.Name}
		}
	}

	u := buildUniverse(p)
	for name := range u.mandatory {
		if len(u.byName[name]) == 0 {
			return nil, &gondaerrors.NothingProvidesError{Dependent: "<requested>", Spec: name}
		}
	}

	s := &search{
		p:           p,
		u:           u,
		requested:   make(map[string]version.MatchSpec),
		pinned:      make(map[string][]version.MatchSpec),
		channelRank: make(map[string]int),
		deadline:    time.Now().Add(p.Options.timeout()),
		maxExplored: defaultMaxExplored,
	}
	for _, r := range p.Requested {
		s.requested[r.Name] = r
	}
	for _, pin := range p.Pinned {
		s.pinned[pin.Name] = append(s.pinned[pin.Name], pin)
	}
	if p.Options.ChannelPriority {
		s.strictChannelPriority = true
		rank := 0
		seen := make(map[string]bool)
		assignRank := func(ch string) {
			if !seen[ch] {
				seen[ch] = true
				s.channelRank[ch] = rank
				rank++
			}
		}
		for _, name := range u.order {
			for _, c := range u.byName[name] {
				assignRank(c.Channel)
			}
		}
	}

	assign := make(map[string]*record.PackageRecord, len(u.order))
	s.backtrack(assign, 0)

	if !s.haveBest {
		tree := s.buildConflictTree()
		var requested []string
		for _, r := range p.Requested {
			requested = append(requested, r.String())
		}
		return nil, &gondaerrors.UnsatisfiableError{Requested: requested, Tree: tree}
	}

	return &Solution{Records: s.best}, nil
}

func (s *search) backtrack(assign map[string]*record.PackageRecord, idx int) {
	if time.Now().After(s.deadline) || s.explored > s.maxExplored {
		return
	}
	if idx == len(s.u.order) {
		s.consider(assign)
		return
	}
	s.explored++

	name := s.u.order[idx]
	constraints := s.constraintsFor(name, assign)

	if !s.u.mandatory[name] {
		// try "absent" first; it is always a valid choice for an optional
		// name unless something forces it present (handled via
		// constraints being empty in that case).
		s.backtrack(assign, idx+1)
	}

	if s.p.Options.UpdateModifier == UpdateModifierFreezeInstalled {
		if old, ok := s.p.Installed[name]; ok {
			if _, requested := s.requested[name]; !requested {
				if matchesAll(old, constraints) {
					assign[name] = old
					s.backtrack(assign, idx+1)
					delete(assign, name)
					return
				}
				return
			}
		}
	}

	for _, cand := range s.u.byName[name] {
		if !matchesAll(cand, constraints) {
			continue
		}
		assign[name] = cand
		s.backtrack(assign, idx+1)
	}
	delete(assign, name)
}

func matchesAll(rec *record.PackageRecord, specs []version.MatchSpec) bool {
	for _, sp := range specs {
		if !sp.Matches(rec) {
			return false
		}
	}
	return true
}

// constraintsFor gathers every MatchSpec currently bearing on name: the
// user's requested/pinned specs, plus depends/constrains entries from
// already-assigned parents. Parents are always earlier in s.u.order by
// construction (mandatory names are discovered breadth-first).
func (s *search) constraintsFor(name string, assign map[string]*record.PackageRecord) []version.MatchSpec {
	var out []version.MatchSpec
	if sp, ok := s.requested[name]; ok {
		out = append(out, sp)
	}
	out = append(out, s.pinned[name]...)
	for _, parent := range assign {
		if parent == nil {
			continue
		}
		for _, dep := range parent.Depends {
			if sp, err := version.ParseMatchSpec(dep); err == nil && sp.Name == name {
				out = append(out, sp)
			}
		}
		for _, dep := range parent.Constrains {
			if sp, err := version.ParseMatchSpec(dep); err == nil && sp.Name == name {
				out = append(out, sp)
			}
		}
	}
	return out
}

// consider independently re-verifies a complete assignment and, if valid,
// scores it against the running best.
func (s *search) consider(assign map[string]*record.PackageRecord) {
	if !s.verify(assign) {
		return
	}
	chosen := make(map[string]*record.PackageRecord, len(assign))
	for k, v := range assign {
		if v != nil {
			chosen[k] = v
		}
	}
	obj := evaluate(chosen, s.p.Installed, s.strictChannelPriority, s.channelRank, s.u)
	if !s.haveBest || obj.less(s.bestObj) || (!s.bestObj.less(obj) && lexTiebreak(chosen, s.best)) {
		s.best = chosen
		s.bestObj = obj
		s.haveBest = true
	}
}

// verify re-checks every depends/constrains edge and the one-name
// invariant against the fully assigned set, independent of how the
// backtracking search arrived there.
func (s *search) verify(assign map[string]*record.PackageRecord) bool {
	for name, rec := range assign {
		if rec == nil {
			continue
		}
		for _, dep := range rec.Depends {
			sp, err := version.ParseMatchSpec(dep)
			if err != nil {
				continue
			}
			target, ok := assign[sp.Name]
			if !ok || target == nil || !sp.Matches(target) {
				return false
			}
		}
		for _, dep := range rec.Constrains {
			sp, err := version.ParseMatchSpec(dep)
			if err != nil {
				continue
			}
			if target, ok := assign[sp.Name]; ok && target != nil && !sp.Matches(target) {
				return false
			}
		}
		_ = name
	}
	for _, sp := range s.p.Requested {
		target, ok := assign[sp.Name]
		if !ok || target == nil || !sp.Matches(target) {
			return false
		}
	}
	return true
}

// lexTiebreak reports whether a should be preferred over b under the
// deterministic fallback order: name ascending, version descending,
// build descending.
func lexTiebreak(a, b map[string]*record.PackageRecord) bool {
	if b == nil {
		return true
	}
	names := make(map[string]bool, len(a)+len(b))
	for n := range a {
		names[n] = true
	}
	for n := range b {
		names[n] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	for _, n := range sorted {
		ra, oka := a[n]
		rb, okb := b[n]
		if oka != okb {
			return oka
		}
		if !oka {
			continue
		}
		if c := ra.Version.Compare(rb.Version); c != 0 {
			return c > 0
		}
		if ra.BuildNumber != rb.BuildNumber {
			return ra.BuildNumber > rb.BuildNumber
		}
	}
	return false
}
