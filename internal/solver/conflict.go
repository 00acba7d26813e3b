package solver

import (
	"fmt"

	"github.com/gonda-project/gonda/internal/gondaerrors"
)

// buildConflictTree produces a best-effort "why" tree for an
// UnsatisfiableError: one node per requested spec, with children
// describing which dependency chain left no viable candidate. This is a
// summary over the mandatory name set rather than a full proof trace,
// since the backtracking search does not retain one.
func (s *search) buildConflictTree() []gondaerrors.ConflictNode {
	var tree []gondaerrors.ConflictNode
	for _, r := range s.p.Requested {
		node := gondaerrors.ConflictNode{Description: r.String()}
		cands := s.u.byName[r.Name]
		if len(cands) == 0 {
			node.Children = append(node.Children, gondaerrors.ConflictNode{
				Description: fmt.Sprintf("no candidates at all for %q", r.Name),
			})
		} else {
			matching := 0
			for _, c := range cands {
				if r.Matches(c) {
					matching++
				}
			}
			node.Children = append(node.Children, gondaerrors.ConflictNode{
				Description: fmt.Sprintf("%d/%d candidates for %q satisfy the requested spec; remainder excluded by other constraints", matching, len(cands), r.Name),
			})
		}
		tree = append(tree, node)
	}
	return tree
}
