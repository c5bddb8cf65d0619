package query

import (
	"fmt"
	"strings"
)

// rootCapture marks the outermost node of every pattern, so a match knows
// the node it is rooted at even when the pattern captures nothing there.
const rootCapture = "__match"

type tokenType int

const (
	tokOpen tokenType = iota
	tokClose
	tokLBracket
	tokRBracket
	tokString
	tokCapture
	tokWord
)

// token is a lexical unit of tree-sitter's query syntax. Words cover node
// types, fields, negated fields, anchors, quantifiers and predicate names.
type token struct {
	typ    tokenType
	text   string
	offset int
}

func (t token) describe() string {
	switch t.typ {
	case tokString:
		return "string " + t.text
	case tokCapture:
		return "capture @" + t.text
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// source returns the token as it is written in a query.
func (t token) source() string {
	if t.typ == tokCapture {
		return "@" + t.text
	}
	return t.text
}

func scan(src string) ([]token, error) {
	var toks []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == ';':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '(':
			toks = append(toks, token{tokOpen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokClose, ")", i})
			i++
		case c == '[':
			toks = append(toks, token{tokLBracket, "[", i})
			i++
		case c == ']':
			toks = append(toks, token{tokRBracket, "]", i})
			i++
		case c == '"':
			end, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, src[i:end], i})
			i = end
		case c == '@':
			j := i + 1
			for j < len(src) && isWordChar(src[j]) {
				j++
			}
			name := src[i+1 : j]
			if name == "" {
				return nil, &InvalidQueryError{i, "capture without a name"}
			}
			if name == rootCapture {
				return nil, &InvalidQueryError{i, fmt.Sprintf("capture name @%s is reserved", rootCapture)}
			}
			toks = append(toks, token{tokCapture, name, i})
			i = j
		default:
			j := i
			for j < len(src) && isWordChar(src[j]) {
				j++
			}
			toks = append(toks, token{tokWord, src[i:j], i})
			i = j
		}
	}
	return toks, nil
}

func scanString(src string, start int) (int, error) {
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '"':
			return i + 1, nil
		}
	}
	return 0, &InvalidQueryError{start, "unterminated string"}
}

func isWordChar(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '[', ']', '"', '@', ';':
		return false
	}
	return true
}

// Parse checks the query's structure: balanced parentheses and brackets,
// terminated strings and well-formed top-level patterns. Node types, fields,
// captures and predicates are checked by Bind against each grammar.
func Parse(src string) (*Query, error) {
	toks, err := scan(src)
	if err != nil {
		return nil, err
	}
	partner, err := pair(toks)
	if err != nil {
		return nil, err
	}

	q := &Query{source: src, tokens: toks, partner: partner, roots: make(map[int]bool)}
	for i := 0; i < len(toks); {
		end, err := q.topLevel(i)
		if err != nil {
			return nil, err
		}
		q.roots[q.rootOf(i)] = true
		q.patterns++
		i = end
	}
	if q.patterns == 0 {
		return nil, &InvalidQueryError{0, "query has no patterns"}
	}
	q.captures = q.captureNames()
	return q, nil
}

// MustParse is Parse that panics on error, for queries known at compile time.
func MustParse(src string) *Query {
	q, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return q
}

// pair maps every bracket token to the index of its partner.
func pair(toks []token) ([]int, error) {
	partner := make([]int, len(toks))
	var stack []int
	for i, t := range toks {
		partner[i] = -1
		switch t.typ {
		case tokOpen, tokLBracket:
			stack = append(stack, i)
		case tokClose, tokRBracket:
			if len(stack) == 0 {
				return nil, &InvalidQueryError{t.offset, fmt.Sprintf("unexpected %q", t.text)}
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if (toks[open].typ == tokOpen) != (t.typ == tokClose) {
				return nil, &InvalidQueryError{t.offset, fmt.Sprintf("%q does not close %q", t.text, toks[open].text)}
			}
			partner[open], partner[i] = i, open
		}
	}
	if len(stack) > 0 {
		t := toks[stack[0]]
		return nil, &InvalidQueryError{t.offset, fmt.Sprintf("unclosed %q", t.text)}
	}
	return partner, nil
}

// topLevel validates the pattern starting at i and returns the index past
// it and its suffixes.
func (q *Query) topLevel(i int) (int, error) {
	t := q.tokens[i]
	switch {
	case t.typ == tokOpen && q.isPredicate(i):
		return 0, &InvalidQueryError{t.offset, "predicate outside a pattern"}
	case t.typ == tokOpen, t.typ == tokLBracket, t.typ == tokString:
	case t.typ == tokWord && t.text == "_":
	default:
		return 0, &InvalidQueryError{t.offset, fmt.Sprintf("unexpected %s at top level", t.describe())}
	}

	j := q.last(i) + 1
	for j < len(q.tokens) && isSuffix(q.tokens[j]) {
		j++
	}
	return j, nil
}

func isSuffix(t token) bool {
	return t.typ == tokCapture || t.typ == tokWord && (t.text == "*" || t.text == "+" || t.text == "?")
}

// last returns the index of the final token of the element starting at i.
func (q *Query) last(i int) int {
	switch q.tokens[i].typ {
	case tokOpen, tokLBracket:
		return q.partner[i]
	}
	return i
}

// rootOf descends into grouped sequences and returns the last token of the
// element a match is rooted at.
func (q *Query) rootOf(i int) int {
	for q.tokens[i].typ == tokOpen && i+1 < len(q.tokens) {
		switch q.tokens[i+1].typ {
		case tokOpen, tokLBracket, tokString:
			i++
			continue
		}
		break
	}
	return q.last(i)
}

func (q *Query) isPredicate(i int) bool {
	return i+1 < len(q.tokens) && q.tokens[i+1].typ == tokWord && strings.HasPrefix(q.tokens[i+1].text, "#")
}

func (q *Query) captureNames() []string {
	seen := map[string]bool{}
	var names []string
	for i := 0; i < len(q.tokens); i++ {
		t := q.tokens[i]
		if t.typ == tokOpen && q.isPredicate(i) {
			i = q.partner[i]
			continue
		}
		if t.typ == tokCapture && !seen[t.text] {
			seen[t.text] = true
			names = append(names, t.text)
		}
	}
	return names
}
