package query

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	sitter "github.com/smacker/go-tree-sitter"
)

// filter is a predicate go-tree-sitter does not evaluate itself.
type filter struct {
	op      string
	capture string
	values  []string
}

func (f filter) accepts(caps []Capture) bool {
	for _, c := range caps {
		if c.Name != f.capture {
			continue
		}
		text := c.Node.Content()
		switch f.op {
		case "glob?":
			if ok, _ := doublestar.Match(f.values[0], text); !ok {
				return false
			}
		case "any-of?":
			if !slices.Contains(f.values, text) {
				return false
			}
		}
	}
	return true
}

// compileFilters checks every predicate of the compiled query. #eq?,
// #not-eq?, #match? and #not-match? are left to FilterPredicates; #glob? and
// #any-of? become filters.
func compileFilters(q *Query, compiled *sitter.Query) ([][]filter, error) {
	filters := make([][]filter, compiled.PatternCount())
	for i := range compiled.PatternCount() {
		for _, steps := range compiled.PredicatesForPattern(i) {
			if n := len(steps); n > 0 && steps[n-1].Type == sitter.QueryPredicateStepTypeDone {
				steps = steps[:n-1]
			}
			if len(steps) == 0 {
				continue
			}
			op := compiled.StringValueForId(steps[0].ValueId)
			args := steps[1:]
			fail := func(format string, a ...any) error {
				return &InvalidQueryError{q.offsetOf("#" + op), fmt.Sprintf("#%s: %s", op, fmt.Sprintf(format, a...))}
			}

			switch op {
			case "eq?", "not-eq?":
			case "match?", "not-match?":
				if _, err := regexp.Compile(compiled.StringValueForId(args[1].ValueId)); err != nil {
					return nil, fail("bad regular expression: %v", err)
				}
			case "glob?", "any-of?":
				if len(args) < 2 || args[0].Type != sitter.QueryPredicateStepTypeCapture {
					return nil, fail("expected a capture and at least one string")
				}
				if op == "glob?" && len(args) != 2 {
					return nil, fail("expected a capture and one pattern")
				}
				f := filter{op: op, capture: compiled.CaptureNameForId(args[0].ValueId)}
				for _, a := range args[1:] {
					if a.Type != sitter.QueryPredicateStepTypeString {
						return nil, fail("arguments after the capture must be strings")
					}
					f.values = append(f.values, compiled.StringValueForId(a.ValueId))
				}
				if op == "glob?" && !doublestar.ValidatePattern(f.values[0]) {
					return nil, fail("bad glob %q", f.values[0])
				}
				filters[i] = append(filters[i], f)
			default:
				return nil, fail("unknown predicate")
			}
		}
	}
	return filters, nil
}
