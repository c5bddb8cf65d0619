package query

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termfx/refactory/providers"
	"github.com/termfx/refactory/providers/builtin"
	"github.com/termfx/refactory/syntax"
)

func grammar(t *testing.T, lang string) *providers.Grammar {
	t.Helper()
	g, ok := builtin.Default().Get(lang)
	require.True(t, ok)
	return g
}

func parseSource(t *testing.T, lang, src string) *syntax.Tree {
	t.Helper()
	b := syntax.NewBuilder(0)
	t.Cleanup(b.Close)
	tree, err := b.Parse(context.Background(), grammar(t, lang), []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return tree
}

func run(t *testing.T, lang, q, src string) []Match {
	t.Helper()
	parsed, err := Parse(q)
	require.NoError(t, err)
	bound, err := parsed.Bind(grammar(t, lang))
	require.NoError(t, err)
	return bound.Collect(parseSource(t, lang, src))
}

func captured(t *testing.T, m Match, name string) string {
	t.Helper()
	n, ok := m.Capture(name)
	require.True(t, ok, "capture @%s not bound", name)
	return n.Content()
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		offset int
	}{
		{"empty", "   ; only a comment\n", 0},
		{"unclosed", "(function_definition", 0},
		{"unclosed inner", "(a (b)", 0},
		{"stray close", "(call))", 6},
		{"mismatched bracket", "[(call) (name)", 0},
		{"wrong closer", "(call]", 5},
		{"bare kind", "identifier", 0},
		{"stray character", "(call) $", 7},
		{"predicate alone", `(#eq? @x "a")`, 0},
		{"unterminated string", `(call "foo`, 6},
		{"capture without name", "(call) @", 7},
		{"reserved capture", "(call) @__match", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidQuery)
			var qerr *InvalidQueryError
			require.ErrorAs(t, err, &qerr)
			assert.Equal(t, tt.offset, qerr.Offset)
		})
	}
}

func TestBindErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"unknown node kind", "(no_such_kind) @x"},
		{"unknown field", "(function_definition bogus: (_)) @x"},
		{"undefined capture", `((identifier) @x (#eq? @y "a"))`},
		{"bad regex", `((identifier) @x (#match? @x "["))`},
		{"bad glob", `((identifier) @x (#glob? @x "[a"))`},
		{"glob arity", `((identifier) @x (#glob? @x "a" "b"))`},
		{"any-of without values", `((identifier) @x (#any-of? @x))`},
		{"unknown predicate", `((identifier) @x (#frobnicate? @x))`},
		{"eq arity", `((identifier) @x (#eq? @x))`},
		{"literal first", `((identifier) @x (#eq? "a" @x))`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.query)
			require.NoError(t, err)
			_, err = q.Bind(grammar(t, "python"))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidQuery)
			var qerr *InvalidQueryError
			assert.ErrorAs(t, err, &qerr)
		})
	}
}

func TestBindErrorOffsetPointsIntoQuery(t *testing.T) {
	src := "(function name: (_) @n) @f\n(no_such_kind) @g"
	_, err := MustParse(src).Bind(grammar(t, "python"))

	var qerr *InvalidQueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, strings.Index(src, "no_such_kind"), qerr.Offset)
	assert.Contains(t, qerr.Message, "python")
	assert.Contains(t, qerr.Message, "no_such_kind")

	_, err = MustParse(`((identifier) @x (#frobnicate? @x))`).Bind(grammar(t, "python"))
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, 18, qerr.Offset)
}

func TestCaptureNames(t *testing.T) {
	q, err := Parse(`
		; functions named foo
		(function_definition name: (identifier) @name (#eq? @name "foo")) @item
		(class name: (_) @name) @cls
	`)
	require.NoError(t, err)
	assert.Equal(t, 2, q.PatternCount())
	assert.Equal(t, []string{"name", "item", "cls"}, q.CaptureNames())
}

func TestUncapturedPatternReportsRootNode(t *testing.T) {
	matches := run(t, "python", `(call function: (identifier) @fn)`, "print(x)\n")
	require.Len(t, matches, 1)
	assert.Equal(t, "call", matches[0].Node.Kind())
	assert.Equal(t, "print(x)", matches[0].Node.Content())
	require.Len(t, matches[0].Captures, 1, "the root marker is not a user capture")
	assert.Equal(t, "fn", matches[0].Captures[0].Name)

	grouped := run(t, "python", `((call arguments: (_) @args) (#eq? @args "(x)"))`, "f(x)\ng(y)\n")
	require.Len(t, grouped, 1)
	assert.Equal(t, "call", grouped[0].Node.Kind())
}

func TestBindUnknownKind(t *testing.T) {
	q := MustParse("(function_declaration) @f")
	_, err := q.Bind(grammar(t, "python"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = q.Bind(grammar(t, "go"))
	assert.NoError(t, err)
}

func TestMatchFunctionByName(t *testing.T) {
	src := "def foo():\n    return 1\n\ndef bar():\n    return 2\n"
	matches := run(t, "python",
		`(function_definition name: (identifier) @name (#eq? @name "foo")) @item`, src)

	require.Len(t, matches, 1)
	assert.Equal(t, "foo", captured(t, matches[0], "name"))
	assert.Equal(t, 0, matches[0].Node.StartByte())
	assert.True(t, strings.HasPrefix(captured(t, matches[0], "item"), "def foo():\n    return 1"))
}

func TestAliasResolvesPerLanguage(t *testing.T) {
	q := MustParse(`(function name: (_) @name) @item`)

	py, err := q.Bind(grammar(t, "python"))
	require.NoError(t, err)
	js, err := q.Bind(grammar(t, "javascript"))
	require.NoError(t, err)

	pyMatches := py.Collect(parseSource(t, "python", "def foo():\n    pass\n"))
	jsMatches := js.Collect(parseSource(t, "javascript", "function foo() { return 1; }\n"))

	require.Len(t, pyMatches, 1)
	require.Len(t, jsMatches, 1)
	assert.Equal(t, "function_definition", pyMatches[0].Node.Kind())
	assert.Equal(t, "function_declaration", jsMatches[0].Node.Kind())

	// a binding only applies to trees of its own language
	assert.Empty(t, py.Collect(parseSource(t, "javascript", "function foo() {}\n")))
}

func TestDepthFirstOrderIncludesNested(t *testing.T) {
	src := "def outer():\n    def inner():\n        pass\n    return inner\n\ndef last():\n    pass\n"
	matches := run(t, "python", `(function name: (_) @name)`, src)

	var names []string
	for _, m := range matches {
		names = append(names, captured(t, m, "name"))
	}
	assert.Equal(t, []string{"outer", "inner", "last"}, names)
}

func TestFirstAlternativeWins(t *testing.T) {
	src := "def a():\n    pass\n\ndef b():\n    pass\n"
	matches := run(t, "python", `
		(function_definition name: (identifier) @n (#eq? @n "b")) @special
		(function_definition) @any
	`, src)

	require.Len(t, matches, 2)
	assert.Equal(t, 1, matches[0].Pattern)
	assert.Equal(t, 0, matches[1].Pattern)
	_, ok := matches[1].Capture("special")
	assert.True(t, ok)
}

func TestPositionalChildrenBacktrack(t *testing.T) {
	src := "class A:\n    def a(self):\n        pass\n\n    def b(self):\n        pass\n"
	matches := run(t, "python",
		`(class body: (_ (function name: (_) @m (#eq? @m "b")))) @cls`, src)

	require.Len(t, matches, 1)
	assert.Equal(t, "class_definition", matches[0].Node.Kind())
	assert.Equal(t, "b", captured(t, matches[0], "m"))
}

func TestPositionalOrder(t *testing.T) {
	src := "f(a, b)\n"
	inOrder := run(t, "python", `(argument_list (identifier) @x (identifier) @y)`, src)
	require.Len(t, inOrder, 1)
	assert.Equal(t, "a", captured(t, inOrder[0], "x"))
	assert.Equal(t, "b", captured(t, inOrder[0], "y"))

	reversed := run(t, "python",
		`((argument_list (identifier) @x (identifier) @y) (#eq? @x "b"))`, src)
	assert.Empty(t, reversed)
}

func TestNegatedField(t *testing.T) {
	src := "package main\n\ntype T struct{}\n\nfunc (t T) Method() {}\n\nfunc Plain() {}\n"
	matches := run(t, "go", `(function !receiver name: (_) @name)`, src)

	require.Len(t, matches, 1)
	assert.Equal(t, "Plain", captured(t, matches[0], "name"))
}

func TestPredicates(t *testing.T) {
	src := "function testA() {}\nfunction helper() {}\nfunction testB() {}\n"

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"match", `((function_declaration name: (_) @n) (#match? @n "^test"))`, []string{"testA", "testB"}},
		{"not-match", `((function_declaration name: (_) @n) (#not-match? @n "^test"))`, []string{"helper"}},
		{"glob", `((function_declaration name: (_) @n) (#glob? @n "test*"))`, []string{"testA", "testB"}},
		{"any-of", `((function_declaration name: (_) @n) (#any-of? @n "helper" "testB"))`, []string{"helper", "testB"}},
		{"not-eq", `((function_declaration name: (_) @n) (#not-eq? @n "helper"))`, []string{"testA", "testB"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, m := range run(t, "javascript", tt.query, src) {
				got = append(got, captured(t, m, "n"))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEqBetweenCaptures(t *testing.T) {
	src := "x = x;\ny = z;\n"
	matches := run(t, "javascript",
		`(assignment_expression left: (identifier) @a right: (identifier) @b (#eq? @a @b)) @self`, src)

	require.Len(t, matches, 1)
	assert.Equal(t, "x = x", captured(t, matches[0], "self"))
}

func TestTokenPattern(t *testing.T) {
	matches := run(t, "javascript", `(binary_expression operator: "+") @e`, "a + b;\nc - d;\n")
	require.Len(t, matches, 1)
	assert.Equal(t, "a + b", matches[0].Node.Content())
}

func TestErrorRegionsNeverMatch(t *testing.T) {
	src := "def ok():\n    pass\n\ndef broken(:\n    pass\n"
	matches := run(t, "python", `(function name: (_) @name)`, src)

	require.Len(t, matches, 1)
	assert.Equal(t, "ok", captured(t, matches[0], "name"))
}

func TestMatchesIsRestartable(t *testing.T) {
	q := MustParse(`(function_declaration) @f`)
	bound, err := q.Bind(grammar(t, "javascript"))
	require.NoError(t, err)
	tree := parseSource(t, "javascript", "function a() {}\nfunction b() {}\nfunction c() {}\n")

	first := bound.Collect(tree)
	second := bound.Collect(tree)
	require.Len(t, first, 3)
	assert.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Node.ID(), second[i].Node.ID())
	}

	// early exit
	count := 0
	for range bound.Matches(tree) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestBoundIsSafeForConcurrentUse(t *testing.T) {
	bound, err := MustParse(`(function name: (_) @name)`).Bind(grammar(t, "go"))
	require.NoError(t, err)
	tree := parseSource(t, "go", "package main\n\nfunc a() {}\n\nfunc b() {}\n")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, bound.Collect(tree), 2)
		}()
	}
	wg.Wait()
}

func TestForConstruct(t *testing.T) {
	src := "def foo():\n    pass\n\ndef foo_bar():\n    pass\n\ndef test_x():\n    pass\n\nclass foo_cls:\n    pass\n"

	q, err := ForConstruct("function", "foo*")
	require.NoError(t, err)
	bound, err := q.Bind(grammar(t, "python"))
	require.NoError(t, err)

	var names []string
	for m := range bound.Matches(parseSource(t, "python", src)) {
		names = append(names, captured(t, m, NameCapture))
		_, ok := m.Capture(ItemCapture)
		assert.True(t, ok)
	}
	assert.Equal(t, []string{"foo", "foo_bar"}, names)

	all, err := ForConstruct("class", "")
	require.NoError(t, err)
	bound, err = all.Bind(grammar(t, "python"))
	require.NoError(t, err)
	assert.Len(t, bound.Collect(parseSource(t, "python", src)), 1)

	_, err = ForConstruct("not a kind", "x")
	assert.ErrorIs(t, err, ErrInvalidQuery)

	quoted, err := ForConstruct("function", `we"ird`)
	require.NoError(t, err)
	assert.Contains(t, quoted.Source(), `we\"ird`)
}

func TestAliasDropsTypesWithoutTheField(t *testing.T) {
	src := "const f = () => 1;\nfunction g() {}\nclass A { m() {} }\n"

	named := run(t, "javascript", `(function name: (_) @name) @item`, src)
	var names []string
	for _, m := range named {
		names = append(names, captured(t, m, "name"))
	}
	assert.Equal(t, []string{"g", "m"}, names)

	var kinds []string
	for _, m := range run(t, "javascript", `(function) @item`, src) {
		kinds = append(kinds, m.Node.Kind())
	}
	assert.Equal(t, []string{"arrow_function", "function_declaration", "method_definition"}, kinds)
}
