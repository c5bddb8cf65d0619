package query

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"gitlab.com/tozd/go/errors"
)

// emitter builds the text handed to tree-sitter and remembers, for every
// byte written, the offset in the original query it came from.
type emitter struct {
	buf    strings.Builder
	origin []int
}

func (e *emitter) write(s string, at int) {
	if e.buf.Len() > 0 {
		e.buf.WriteByte(' ')
		e.origin = append(e.origin, at)
	}
	e.buf.WriteString(s)
	for i := range len(s) {
		e.origin = append(e.origin, at+i)
	}
}

func (e *emitter) append(o *emitter) {
	if o.buf.Len() == 0 {
		return
	}
	if e.buf.Len() > 0 {
		e.buf.WriteByte(' ')
		e.origin = append(e.origin, o.origin[0])
	}
	e.buf.WriteString(o.buf.String())
	e.origin = append(e.origin, o.origin...)
}

func (e *emitter) String() string {
	return e.buf.String()
}

// sourceOffset maps an offset in the emitted text back to the query text.
func (e *emitter) sourceOffset(off int) int {
	if len(e.origin) == 0 {
		return 0
	}
	return e.origin[min(max(off, 0), len(e.origin)-1)]
}

// expander rewrites construct aliases for one grammar. An alias naming
// several node types becomes an alternation with one branch per type that
// can carry the node's children.
type expander struct {
	q *Query
	r Resolver
}

func (x *expander) rewrite() *emitter {
	e := &emitter{}
	x.emit(e, 0, len(x.q.tokens))
	return e
}

func (x *expander) emit(e *emitter, from, to int) {
	toks := x.q.tokens
	for i := from; i < to; i++ {
		if x.isNode(i) {
			end := x.q.partner[i]
			x.expand(e, i, end)
			i = end
		} else {
			e.write(toks[i].source(), toks[i].offset)
		}
		if x.q.roots[i] {
			e.write("@"+rootCapture, toks[i].offset)
		}
	}
}

// isNode reports whether i opens a named node pattern such as (kind ...).
func (x *expander) isNode(i int) bool {
	toks := x.q.tokens
	if toks[i].typ != tokOpen || i+1 >= len(toks) || toks[i+1].typ != tokWord {
		return false
	}
	kind := toks[i+1].text
	if kind == "_" {
		return false
	}
	for j := 0; j < len(kind); j++ {
		if !isIdentChar(kind[j]) {
			return false
		}
	}
	return true
}

func (x *expander) expand(e *emitter, open, close int) {
	toks := x.q.tokens
	kind := toks[open+1]

	body := &emitter{}
	x.emit(body, open+2, close)

	types := x.r.NodeTypes(kind.text)
	switch {
	case len(types) == 0:
		// unknown here; tree-sitter reports it when the query is compiled
		types = []string{kind.text}
	case len(types) > 1:
		types = x.viable(types, body.String())
	}

	if len(types) > 1 {
		e.write("[", toks[open].offset)
	}
	for _, typ := range types {
		e.write("(", toks[open].offset)
		e.write(typ, kind.offset)
		e.append(body)
		e.write(")", toks[close].offset)
	}
	if len(types) > 1 {
		e.write("]", toks[close].offset)
	}
}

// viable drops node types that cannot carry body, such as a type without
// the field body constrains. When none survive all are kept so compiling
// the query reports the problem.
func (x *expander) viable(types []string, body string) []string {
	var keep []string
	for _, typ := range types {
		q, err := sitter.NewQuery([]byte("("+typ+" "+body+")"), x.r.Language())
		if q != nil {
			q.Close()
		}
		var qerr *sitter.QueryError
		if errors.As(err, &qerr) {
			switch qerr.Type {
			case sitter.QueryErrorNodeType, sitter.QueryErrorField, sitter.QueryErrorStructure:
				continue
			}
		}
		keep = append(keep, typ)
	}
	if len(keep) == 0 {
		return types
	}
	return keep
}

func isIdentChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
