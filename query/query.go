// Package query runs tree-sitter queries against syntax trees.
//
// Patterns use tree-sitter's query syntax:
//
//	(function_definition name: (identifier) @name (#eq? @name "foo")) @item
//
// A Query is checked once and bound per language. Binding rewrites construct
// aliases such as "function" to the grammar's node types and compiles the
// result with tree-sitter.
package query

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// ErrInvalidQuery is wrapped by every query validation error.
var ErrInvalidQuery = errors.Base("invalid query")

// InvalidQueryError reports a malformed pattern and where it went wrong.
// Offset is a byte offset into the query text.
type InvalidQueryError struct {
	Offset  int
	Message string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query at offset %d: %s", e.Offset, e.Message)
}

func (e *InvalidQueryError) Unwrap() error {
	return ErrInvalidQuery
}

// Query is a checked, language-independent set of alternative patterns.
type Query struct {
	source   string
	tokens   []token
	partner  []int
	roots    map[int]bool
	patterns int
	captures []string
}

// Source returns the query text.
func (q *Query) Source() string {
	return q.source
}

// PatternCount returns the number of alternatives.
func (q *Query) PatternCount() int {
	return q.patterns
}

// CaptureNames lists capture names in order of first appearance.
func (q *Query) CaptureNames() []string {
	return q.captures
}

func (q *Query) String() string {
	return q.source
}

// offsetOf returns the offset of the first word token equal to text.
func (q *Query) offsetOf(text string) int {
	for _, t := range q.tokens {
		if t.typ == tokWord && t.text == text {
			return t.offset
		}
	}
	return 0
}
