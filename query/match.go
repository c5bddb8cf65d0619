package query

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"gitlab.com/tozd/go/errors"

	"github.com/termfx/refactory/syntax"
)

// Resolver maps construct aliases and raw node types to the node types a
// grammar defines. *providers.Grammar implements it.
type Resolver interface {
	Name() string
	Language() *sitter.Language
	NodeTypes(kind string) []string
}

// Capture is a named node bound by a pattern.
type Capture struct {
	Name string
	Node syntax.Node
}

// Match is one pattern occurrence rooted at Node.
type Match struct {
	Query    *Query
	Pattern  int
	Node     syntax.Node
	Captures []Capture
}

// Capture returns the node bound to name.
func (m Match) Capture(name string) (syntax.Node, bool) {
	for _, c := range m.Captures {
		if c.Name == name {
			return c.Node, true
		}
	}
	return syntax.Node{}, false
}

// Bound is a query compiled for one language. It holds no per-tree state
// and is safe for concurrent use.
type Bound struct {
	query    *Query
	language string
	compiled *sitter.Query
	names    []string
	root     uint32
	filters  [][]filter
}

// Bind rewrites construct aliases for r's grammar and compiles the query.
// Unknown node types, fields and captures and malformed predicates make the
// query unusable for that language.
func (q *Query) Bind(r Resolver) (*Bound, error) {
	lang := r.Language()
	if lang == nil {
		return nil, &InvalidQueryError{0, fmt.Sprintf("%s: grammar not available", r.Name())}
	}

	text := (&expander{q: q, r: r}).rewrite()
	compiled, err := sitter.NewQuery([]byte(text.String()), lang)
	if err != nil {
		var qerr *sitter.QueryError
		if errors.As(err, &qerr) {
			msg := qerr.Message
			if i := strings.Index(msg, " at line "); i >= 0 {
				msg = msg[:i]
			}
			return nil, &InvalidQueryError{text.sourceOffset(int(qerr.Offset)), fmt.Sprintf("%s: %s", r.Name(), msg)}
		}
		return nil, &InvalidQueryError{0, fmt.Sprintf("%s: %v", r.Name(), err)}
	}

	filters, err := compileFilters(q, compiled)
	if err != nil {
		return nil, err
	}
	b := &Bound{
		query:    q,
		language: r.Name(),
		compiled: compiled,
		names:    make([]string, compiled.CaptureCount()),
		filters:  filters,
	}
	for i := range compiled.CaptureCount() {
		b.names[i] = compiled.CaptureNameForId(i)
		if b.names[i] == rootCapture {
			b.root = i
		}
	}
	return b, nil
}

// Query returns the query the binding was made from.
func (b *Bound) Query() *Query {
	return b.query
}

// Language returns the language tag the query was bound to.
func (b *Bound) Language() string {
	return b.language
}

// Matches yields matches depth-first, left to right. For each node the first
// alternative that matches wins. Nodes in or containing error regions never
// match. Every iteration rescans the tree.
func (b *Bound) Matches(tree *syntax.Tree) iter.Seq[Match] {
	return func(yield func(Match) bool) {
		if tree.Language() != b.language {
			return
		}
		for _, m := range b.scan(tree) {
			if !yield(m) {
				return
			}
		}
	}
}

// Collect gathers every match in order.
func (b *Bound) Collect(tree *syntax.Tree) []Match {
	return slices.Collect(b.Matches(tree))
}

func (b *Bound) scan(tree *syntax.Tree) []Match {
	var found []Match
	src := tree.Source()
	tree.Inspect(func(root *sitter.Node) {
		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(b.compiled, root)
		for {
			raw, ok := cursor.NextMatch()
			if !ok {
				break
			}
			if m, ok := b.convert(tree, cursor.FilterPredicates(raw, src)); ok {
				found = append(found, m)
			}
		}
	})

	// Node ids are pre-order, so sorting by id is depth-first order.
	slices.SortStableFunc(found, func(x, y Match) int {
		return cmp.Or(cmp.Compare(x.Node.ID(), y.Node.ID()), cmp.Compare(x.Pattern, y.Pattern))
	})
	return slices.CompactFunc(found, func(x, y Match) bool {
		return x.Node.ID() == y.Node.ID()
	})
}

// convert maps a tree-sitter match onto the tree's node table. Matches
// rejected by FilterPredicates come back without captures and are dropped.
func (b *Bound) convert(tree *syntax.Tree, raw *sitter.QueryMatch) (Match, bool) {
	m := Match{Query: b.query, Pattern: int(raw.PatternIndex)}
	for _, c := range raw.Captures {
		n, ok := tree.NodeFor(c.Node)
		if !ok {
			continue
		}
		if c.Index == b.root {
			if !m.Node.Valid() {
				m.Node = n
			}
			continue
		}
		m.Captures = append(m.Captures, Capture{Name: b.names[c.Index], Node: n})
	}
	if !m.Node.Valid() || m.Node.InError() {
		return Match{}, false
	}
	for _, f := range b.filters[m.Pattern] {
		if !f.accepts(m.Captures) {
			return Match{}, false
		}
	}
	return m, true
}
