package version

import (
	"strconv"
	"strings"

	"github.com/gonda-project/gonda/internal/gondaerrors"
)

// ParseVersionConstraint parses the version-constraint portion of a
// MatchSpec: comma-separated (AND) groups of pipe-separated (OR) clauses,
// each clause an operator (`=`, `==`, `!=`, `<`, `<=`, `>`, `>=`, `~=`) plus
// a version, a bare version (implicit `=`), or a glob containing `*`.
func ParseVersionConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return Any(), nil
	}

	var andTerms []Constraint
	for _, group := range strings.Split(s, ",") {
		group = strings.TrimSpace(group)
		if group == "" {
			return nil, &gondaerrors.BadSpec{Input: s, Cause: errEmptyGroup}
		}
		orParts := strings.Split(group, "|")
		var orTerms []Constraint
		for _, part := range orParts {
			c, err := parseClause(strings.TrimSpace(part))
			if err != nil {
				return nil, &gondaerrors.BadSpec{Input: s, Cause: err}
			}
			orTerms = append(orTerms, c)
		}
		if len(orTerms) == 1 {
			andTerms = append(andTerms, orTerms[0])
		} else {
			andTerms = append(andTerms, orConstraint{terms: orTerms})
		}
	}

	if len(andTerms) == 1 {
		return andTerms[0], nil
	}
	result := andTerms[0]
	for _, t := range andTerms[1:] {
		result = result.Intersect(t)
	}
	return result, nil
}

var operators = []struct {
	token string
	op    op
}{
	{"~=", opCompatible},
	{"==", opExactEq},
	{"!=", opNe},
	{">=", opGe},
	{"<=", opLe},
	{"<", opLt},
	{">", opGt},
	{"=", opEq},
}

func parseClause(s string) (Constraint, error) {
	if s == "" {
		return nil, errEmptyGroup
	}
	for _, o := range operators {
		if strings.HasPrefix(s, o.token) {
			body := strings.TrimSpace(s[len(o.token):])
			if body == "" {
				return nil, errMissingVersion
			}
			if strings.Contains(body, "*") {
				if o.op != opEq && o.op != opExactEq {
					return nil, errGlobWithOp
				}
				return exactConstraint{op: opGlob, glob: body}, nil
			}
			v, err := Parse(body)
			if err != nil {
				return nil, err
			}
			c := exactConstraint{op: o.op, v: v}
			if o.op == opCompatible {
				up, err := compatibleUpperBound(v)
				if err != nil {
					return nil, err
				}
				c.upper = up
			}
			return c, nil
		}
	}
	// No operator: either a bare version (implicit "=") or a glob.
	if strings.Contains(s, "*") {
		return exactConstraint{op: opGlob, glob: s}, nil
	}
	v, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return exactConstraint{op: opEq, v: v}, nil
}

// compatibleUpperBound implements `~=V`: `~=1.4.5` means `>=1.4.5,<1.5`,
// i.e. increment the next-to-last release component and truncate, the
// same rule PEP440's `~=` uses.
func compatibleUpperBound(v Version) (Version, error) {
	if len(v.release) < 2 {
		return Version{}, errCompatibleTooShort
	}
	release := make([][]atom, len(v.release)-1)
	copy(release, v.release[:len(v.release)-1])
	last := release[len(release)-1]
	if len(last) == 0 || !last[0].isNum {
		return Version{}, errCompatibleTooShort
	}
	bumped := make([]atom, len(last))
	copy(bumped, last)
	bumped[0] = atom{isNum: true, num: last[0].num + 1}
	release[len(release)-1] = bumped

	var sb strings.Builder
	for i, comp := range release {
		if i > 0 {
			sb.WriteByte('.')
		}
		for _, a := range comp {
			if a.isNum {
				sb.WriteString(strconv.FormatInt(a.num, 10))
			} else {
				sb.WriteString(a.str)
			}
		}
	}
	return Parse(sb.String())
}

var (
	errEmptyGroup         = simpleErr("empty constraint clause")
	errMissingVersion     = simpleErr("operator with no version")
	errGlobWithOp         = simpleErr("glob pattern cannot be combined with a comparison operator")
	errCompatibleTooShort = simpleErr("~= requires at least two release components")
)
