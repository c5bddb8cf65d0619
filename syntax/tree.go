// Package syntax turns source bytes into immutable, error-tolerant syntax
// trees backed by tree-sitter.
//
// A Tree copies the tree-sitter node structure into a flat table indexed in
// pre-order, so parent and child relations are plain integer lookups and a
// Node is a small value that can be passed around freely.
package syntax

import (
	"fmt"
	"iter"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/termfx/refactory/providers"
)

// Point is a zero-based row and byte column.
type Point = sitter.Point

type record struct {
	kind       string
	field      string
	start      uint32
	end        uint32
	startPoint Point
	endPoint   Point
	parent     int32
	firstKid   int32
	kidCount   int32
	named      bool
	missing    bool
	isError    bool
	hasError   bool
	inError    bool
}

// ErrorRegion is a span the parser could not fit into the grammar.
type ErrorRegion struct {
	Start   int
	End     int
	Point   Point
	Missing bool
	// Kind is the expected node kind for a missing node, "ERROR" otherwise.
	Kind string
}

func (e ErrorRegion) String() string {
	if e.Missing {
		return fmt.Sprintf("missing %s at line %d, column %d", e.Kind, e.Point.Row+1, e.Point.Column+1)
	}
	return fmt.Sprintf("syntax error at line %d, column %d", e.Point.Row+1, e.Point.Column+1)
}

// Tree is an immutable syntax tree for one version of a file's content.
// It owns the underlying tree-sitter tree until Close is called.
type Tree struct {
	grammar *providers.Grammar
	src     []byte
	raw     *sitter.Tree
	nodes   []record
	kids    []int32
	errors  []ErrorRegion
	ids     map[uintptr]int32

	// go-tree-sitter caches node wrappers per tree in a plain map.
	mu sync.Mutex
}

func newTree(g *providers.Grammar, src []byte, raw *sitter.Tree) *Tree {
	t := &Tree{grammar: g, src: src, raw: raw, ids: make(map[uintptr]int32)}
	t.index(raw.RootNode())
	return t
}

// index flattens the tree in pre-order with an explicit cursor walk.
func (t *Tree) index(root *sitter.Node) {
	cursor := sitter.NewTreeCursor(root)
	defer cursor.Close()

	parent := int32(-1)
	var stack []int32
	for {
		id := t.add(cursor.CurrentNode(), cursor.CurrentFieldName(), parent)
		if cursor.GoToFirstChild() {
			stack = append(stack, parent)
			parent = id
			continue
		}
		for !cursor.GoToNextSibling() {
			if !cursor.GoToParent() {
				t.link()
				return
			}
			parent = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
	}
}

func (t *Tree) add(n *sitter.Node, field string, parent int32) int32 {
	r := record{
		kind:       n.Type(),
		field:      field,
		start:      n.StartByte(),
		end:        n.EndByte(),
		startPoint: n.StartPoint(),
		endPoint:   n.EndPoint(),
		parent:     parent,
		named:      n.IsNamed(),
		missing:    n.IsMissing(),
		hasError:   n.HasError(),
	}
	r.isError = r.kind == "ERROR"
	r.inError = r.isError || r.missing
	if parent >= 0 && t.nodes[parent].inError {
		r.inError = true
	}

	if r.isError || r.missing {
		t.errors = append(t.errors, ErrorRegion{
			Start:   int(r.start),
			End:     int(r.end),
			Point:   r.startPoint,
			Missing: r.missing,
			Kind:    r.kind,
		})
	}

	t.nodes = append(t.nodes, r)
	id := int32(len(t.nodes) - 1)
	t.ids[n.ID()] = id
	return id
}

// link fills the child index from parent pointers. Pre-order guarantees that
// visiting ids in ascending order yields children left to right.
func (t *Tree) link() {
	counts := make([]int32, len(t.nodes))
	for i := 1; i < len(t.nodes); i++ {
		counts[t.nodes[i].parent]++
	}
	offset := int32(0)
	for i := range t.nodes {
		t.nodes[i].firstKid = offset
		t.nodes[i].kidCount = 0
		offset += counts[i]
	}
	t.kids = make([]int32, offset)
	for i := 1; i < len(t.nodes); i++ {
		p := &t.nodes[t.nodes[i].parent]
		t.kids[p.firstKid+p.kidCount] = int32(i)
		p.kidCount++
	}
}

// Root returns the root node.
func (t *Tree) Root() Node {
	return Node{tree: t, id: 0}
}

// Len returns the number of nodes, named and anonymous.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the node with the given pre-order index.
func (t *Tree) Node(id int) Node {
	if id < 0 || id >= len(t.nodes) {
		return Node{}
	}
	return Node{tree: t, id: int32(id)}
}

// All yields every node depth-first, left to right.
func (t *Tree) All() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for i := range t.nodes {
			if !yield(Node{tree: t, id: int32(i)}) {
				return
			}
		}
	}
}

// Source returns the content the tree was parsed from. It must not be modified.
func (t *Tree) Source() []byte {
	return t.src
}

// Grammar returns the grammar the tree was parsed with.
func (t *Tree) Grammar() *providers.Grammar {
	return t.grammar
}

// Language returns the language tag.
func (t *Tree) Language() string {
	return t.grammar.Name()
}

// HasErrors reports whether the parser recovered from any syntax error.
func (t *Tree) HasErrors() bool {
	return len(t.errors) > 0
}

// Errors lists error and missing-node regions in source order.
func (t *Tree) Errors() []ErrorRegion {
	return t.errors
}

// Close releases the tree-sitter tree. The node table stays readable.
func (t *Tree) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.raw != nil {
		t.raw.Close()
		t.raw = nil
	}
}

// Inspect calls fn with the tree-sitter root node. Calls are serialized and
// fn is not called once the tree is closed. Nodes reached from root must not
// be retained after fn returns.
func (t *Tree) Inspect(fn func(root *sitter.Node)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.raw == nil {
		return
	}
	fn(t.raw.RootNode())
}

// NodeFor returns the table node for a tree-sitter node of this tree.
func (t *Tree) NodeFor(n *sitter.Node) (Node, bool) {
	if n == nil {
		return Node{}, false
	}
	id, ok := t.ids[n.ID()]
	if !ok {
		return Node{}, false
	}
	return Node{tree: t, id: id}, true
}

// Node is a reference into a Tree's node table. The zero value is invalid.
type Node struct {
	tree *Tree
	id   int32
}

func (n Node) rec() *record {
	return &n.tree.nodes[n.id]
}

// Valid reports whether n refers to a node.
func (n Node) Valid() bool {
	return n.tree != nil
}

// ID returns the pre-order index of the node within its tree.
func (n Node) ID() int { return int(n.id) }

// Tree returns the owning tree.
func (n Node) Tree() *Tree { return n.tree }

// Kind returns the grammar node type, e.g. "function_definition".
func (n Node) Kind() string { return n.rec().kind }

// Field returns the field name under which the node hangs off its parent.
func (n Node) Field() string { return n.rec().field }

// StartByte returns the byte offset where this node begins.
func (n Node) StartByte() int { return int(n.rec().start) }

// EndByte returns the byte offset where this node ends (exclusive).
func (n Node) EndByte() int { return int(n.rec().end) }

// StartPoint returns the row/column position where this node begins.
func (n Node) StartPoint() Point { return n.rec().startPoint }

// EndPoint returns the row/column position where this node ends.
func (n Node) EndPoint() Point { return n.rec().endPoint }

// IsNamed reports whether this is a named node (as opposed to anonymous syntax like punctuation).
func (n Node) IsNamed() bool { return n.rec().named }

// IsMissing reports whether this node was inserted by error recovery.
func (n Node) IsMissing() bool { return n.rec().missing }

// IsError reports whether this is an ERROR node.
func (n Node) IsError() bool { return n.rec().isError }

// HasError reports whether this node or any descendant contains a parse error.
func (n Node) HasError() bool { return n.rec().hasError }

// InError reports whether the node lies in or contains an error region.
func (n Node) InError() bool {
	r := n.rec()
	return r.inError || r.hasError
}

// Text returns the source bytes covered by the node.
func (n Node) Text() []byte {
	r := n.rec()
	return n.tree.src[r.start:r.end]
}

// Content returns the source text covered by the node.
func (n Node) Content() string {
	return string(n.Text())
}

// Parent returns the parent node; ok is false at the root.
func (n Node) Parent() (Node, bool) {
	p := n.rec().parent
	if p < 0 {
		return Node{}, false
	}
	return Node{tree: n.tree, id: p}, true
}

// ChildCount returns the number of children (both named and anonymous).
func (n Node) ChildCount() int {
	return int(n.rec().kidCount)
}

// Child returns the i-th child, or an invalid node if i is out of range.
func (n Node) Child(i int) Node {
	r := n.rec()
	if i < 0 || i >= int(r.kidCount) {
		return Node{}
	}
	return Node{tree: n.tree, id: n.tree.kids[int(r.firstKid)+i]}
}

// Children returns all children in source order.
func (n Node) Children() []Node {
	r := n.rec()
	out := make([]Node, r.kidCount)
	for i := range out {
		out[i] = Node{tree: n.tree, id: n.tree.kids[int(r.firstKid)+i]}
	}
	return out
}

// NamedChildren returns the named children in source order.
func (n Node) NamedChildren() []Node {
	var out []Node
	for _, c := range n.Children() {
		if c.IsNamed() {
			out = append(out, c)
		}
	}
	return out
}

// ChildByField returns the first child under the given field name.
func (n Node) ChildByField(name string) (Node, bool) {
	for _, c := range n.Children() {
		if c.Field() == name {
			return c, true
		}
	}
	return Node{}, false
}

// ChildrenByField returns every child under the given field name.
func (n Node) ChildrenByField(name string) []Node {
	var out []Node
	for _, c := range n.Children() {
		if c.Field() == name {
			out = append(out, c)
		}
	}
	return out
}

// Descendants yields the node's strict descendants in pre-order. They occupy
// the contiguous id range after the node.
func (n Node) Descendants() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		end := n.subtreeEnd()
		for i := n.id + 1; i < end; i++ {
			if !yield(Node{tree: n.tree, id: i}) {
				return
			}
		}
	}
}

func (n Node) subtreeEnd() int32 {
	cur := n
	for {
		r := cur.rec()
		if r.kidCount == 0 {
			return cur.id + 1
		}
		cur = Node{tree: n.tree, id: n.tree.kids[int(r.firstKid)+int(r.kidCount)-1]}
	}
}

// Indentation returns the leading whitespace of the line the node starts on.
func (n Node) Indentation() string {
	src := n.tree.src
	start := n.StartByte()
	lineStart := start
	for lineStart > 0 && src[lineStart-1] != '\n' {
		lineStart--
	}
	end := lineStart
	for end < len(src) && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	return string(src[lineStart:end])
}

func (n Node) String() string {
	if !n.Valid() {
		return "<invalid>"
	}
	p := n.StartPoint()
	return fmt.Sprintf("%s@%d:%d[%d,%d)", n.Kind(), p.Row+1, p.Column+1, n.StartByte(), n.EndByte())
}
