package syntax

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	sitter "github.com/smacker/go-tree-sitter"
	"gitlab.com/tozd/go/errors"

	"github.com/termfx/refactory/providers"
)

// ErrParse is returned when tree-sitter produces no tree at all, which only
// happens on cancellation or when the parser gives up. Malformed source still
// parses; its problems show up as error regions.
var ErrParse = errors.Base("parse failed")

// DefaultPoolSize bounds the idle parsers kept per language.
const DefaultPoolSize = 8

// PoolStats reports parser pool usage
type PoolStats struct {
	Created  int64
	Borrowed int64
	Returned int64
	Active   int64
}

// Builder parses sources into Trees. Parsers are not safe for concurrent use,
// so each parse borrows one from a per-language pool.
type Builder struct {
	mu    sync.Mutex
	pools map[string]chan *sitter.Parser
	size  int

	created  atomic.Int64
	borrowed atomic.Int64
	returned atomic.Int64
}

// NewBuilder creates a builder keeping up to poolSize idle parsers per
// language. A non-positive size uses DefaultPoolSize.
func NewBuilder(poolSize int) *Builder {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	return &Builder{
		pools: make(map[string]chan *sitter.Parser),
		size:  poolSize,
	}
}

func (b *Builder) pool(g *providers.Grammar) chan *sitter.Parser {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pools[g.Name()]
	if !ok {
		p = make(chan *sitter.Parser, b.size)
		b.pools[g.Name()] = p
	}
	return p
}

func (b *Builder) borrow(g *providers.Grammar) *sitter.Parser {
	b.borrowed.Add(1)
	select {
	case parser := <-b.pool(g):
		return parser
	default:
	}
	b.created.Add(1)
	parser := sitter.NewParser()
	parser.SetLanguage(g.Language())
	return parser
}

func (b *Builder) giveBack(g *providers.Grammar, parser *sitter.Parser) {
	b.returned.Add(1)
	parser.Reset()
	select {
	case b.pool(g) <- parser:
	default:
		parser.Close()
	}
}

// Stats returns a snapshot of parser pool usage.
func (b *Builder) Stats() PoolStats {
	borrowed := b.borrowed.Load()
	returned := b.returned.Load()
	return PoolStats{
		Created:  b.created.Load(),
		Borrowed: borrowed,
		Returned: returned,
		Active:   borrowed - returned,
	}
}

// Close releases idle parsers. Parsers still borrowed are closed on return.
func (b *Builder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, p := range b.pools {
	drain:
		for {
			select {
			case parser := <-p:
				parser.Close()
			default:
				break drain
			}
		}
		delete(b.pools, name)
	}
}

// Parse builds a syntax tree for src. It never fails because of malformed
// input; the returned tree records error regions instead.
func (b *Builder) Parse(ctx context.Context, g *providers.Grammar, src []byte) (*Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Errorf("%w: %w", ErrParse, err)
	}
	if g.Language() == nil {
		return nil, errors.Errorf("%w: grammar %s failed to load", ErrParse, g.Name())
	}

	parser := b.borrow(g)
	defer b.giveBack(g, parser)

	raw, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, errors.Errorf("%w: %s: %w", ErrParse, g.Name(), err)
	}
	if raw == nil {
		return nil, errors.Errorf("%w: %s: no tree produced", ErrParse, g.Name())
	}

	t := newTree(g, src, raw)
	if t.HasErrors() {
		zerolog.Ctx(ctx).Debug().
			Str("language", g.Name()).
			Int("errors", len(t.errors)).
			Msg("parsed with syntax errors")
	}
	return t, nil
}

// Change describes one replaced byte range of the source a tree was parsed
// from, in that source's coordinates.
type Change struct {
	Start int
	End   int
	Text  []byte
}

// Reparse builds the tree for newSrc, reusing old through incremental
// parsing. changes must be sorted ascending and non-overlapping and must
// transform old's source into newSrc. When the incremental parse fails the
// source is parsed from scratch. old stays valid and owned by the caller.
func (b *Builder) Reparse(ctx context.Context, old *Tree, newSrc []byte, changes []Change) (*Tree, error) {
	old.mu.Lock()
	if old.raw == nil {
		old.mu.Unlock()
		return b.Parse(ctx, old.grammar, newSrc)
	}
	edited := old.raw.Copy()
	old.mu.Unlock()
	defer edited.Close()

	// Applying from the end keeps every earlier offset valid.
	for i := len(changes) - 1; i >= 0; i-- {
		edited.Edit(EditInput(old.src, changes[i]))
	}

	parser := b.borrow(old.grammar)
	raw, err := parser.ParseCtx(ctx, edited, newSrc)
	b.giveBack(old.grammar, parser)
	if err != nil || raw == nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("language", old.Language()).Msg("incremental parse failed, parsing from scratch")
		return b.Parse(ctx, old.grammar, newSrc)
	}
	return newTree(old.grammar, newSrc, raw), nil
}

// EditInput converts a change against src into tree-sitter edit coordinates.
func EditInput(src []byte, c Change) sitter.EditInput {
	start := PointAt(src, c.Start)
	return sitter.EditInput{
		StartIndex:  uint32(c.Start),
		OldEndIndex: uint32(c.End),
		NewEndIndex: uint32(c.Start + len(c.Text)),
		StartPoint:  start,
		OldEndPoint: PointAt(src, c.End),
		NewEndPoint: advance(start, c.Text),
	}
}

// PointAt returns the row and byte column of offset within src.
func PointAt(src []byte, offset int) Point {
	if offset > len(src) {
		offset = len(src)
	}
	var p Point
	for _, ch := range src[:offset] {
		if ch == '\n' {
			p.Row++
			p.Column = 0
		} else {
			p.Column++
		}
	}
	return p
}

func advance(p Point, text []byte) Point {
	for _, ch := range text {
		if ch == '\n' {
			p.Row++
			p.Column = 0
		} else {
			p.Column++
		}
	}
	return p
}
