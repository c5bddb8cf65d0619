package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/termfx/refactory/query"
	"github.com/termfx/refactory/syntax"
)

// DefaultBuildConcurrency bounds replacement lookups per file.
const DefaultBuildConcurrency = 4

// ReplacementRequest describes the construct a replacement is produced for.
// Content is the whole file and [Start, End) the construct's byte range in
// it; Content must not be modified.
type ReplacementRequest struct {
	File     string
	Language string
	Rule     string
	Kind     string
	Text     string
	Indent   string
	Captures map[string]string
	Content  []byte
	Start    int
	End      int
}

// ReplacementSource produces the new text for one selected node.
type ReplacementSource interface {
	Replacement(ctx context.Context, req ReplacementRequest) (string, error)
}

// Literal replaces every selection with the same text.
type Literal string

func (l Literal) Replacement(context.Context, ReplacementRequest) (string, error) {
	return string(l), nil
}

// ReplacementFunc adapts a function to ReplacementSource.
type ReplacementFunc func(ctx context.Context, req ReplacementRequest) (string, error)

func (f ReplacementFunc) Replacement(ctx context.Context, req ReplacementRequest) (string, error) {
	return f(ctx, req)
}

// Selection marks a match for replacement. Capture names the captured node
// to replace; empty means the whole matched node.
type Selection struct {
	Match    query.Match
	Rule     string
	Capture  string
	Source   ReplacementSource
	Reindent bool
}

// Proposal is a resolved edit awaiting approval.
type Proposal struct {
	File  string
	Rule  string
	Match query.Match
	Node  syntax.Node
	Edit  Edit
}

// Approver accepts or declines proposals before they become edits.
type Approver interface {
	Approve(ctx context.Context, p Proposal) (bool, error)
}

// BuildResult is the outcome of Build. Warnings name dropped selections.
type BuildResult struct {
	Set      *EditSet
	Declined int
	Warnings []string
}

// Builder turns selections into a normalized EditSet.
type Builder struct {
	concurrency int
	approver    Approver
	resolver    ConflictResolver
}

// NewBuilder creates a builder that resolves up to concurrency replacements
// at once. approver and resolver may be nil.
func NewBuilder(concurrency int, approver Approver, resolver ConflictResolver) *Builder {
	if concurrency <= 0 {
		concurrency = DefaultBuildConcurrency
	}
	return &Builder{concurrency: concurrency, approver: approver, resolver: resolver}
}

type resolved struct {
	proposal Proposal
	err      error
	ok       bool
}

// Build resolves every selection's replacement. A failing source drops only
// its selection with a warning. Cancellation and conflicts are errors.
func (b *Builder) Build(ctx context.Context, file *SourceFile, selections []Selection) (*BuildResult, error) {
	results := make([]resolved, len(selections))

	g := new(errgroup.Group)
	g.SetLimit(b.concurrency)
	for i, sel := range selections {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			results[i] = b.resolve(ctx, file, sel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := zerolog.Ctx(ctx)
	out := &BuildResult{}
	var edits []Edit
	for _, r := range results {
		if r.err != nil {
			out.Warnings = append(out.Warnings, r.err.Error())
			log.Warn().Err(r.err).Str("file", file.Path).Msg("dropped match")
			continue
		}
		if !r.ok {
			continue
		}
		if b.approver != nil {
			accept, err := b.approver.Approve(ctx, r.proposal)
			if err != nil {
				return nil, errors.Errorf("approval failed: %w", err)
			}
			if !accept {
				out.Declined++
				continue
			}
		}
		edits = append(edits, r.proposal.Edit)
	}

	set, err := ResolveEditSet(ctx, file.Path, edits, b.resolver)
	if err != nil {
		return out, err
	}
	out.Set = set
	return out, nil
}

func (b *Builder) resolve(ctx context.Context, file *SourceFile, sel Selection) resolved {
	node := sel.Match.Node
	if sel.Capture != "" {
		captured, ok := sel.Match.Capture(sel.Capture)
		if !ok {
			return resolved{}
		}
		node = captured
	}

	captures := make(map[string]string, len(sel.Match.Captures))
	for _, c := range sel.Match.Captures {
		if _, dup := captures[c.Name]; !dup {
			captures[c.Name] = c.Node.Content()
		}
	}

	req := ReplacementRequest{
		File:     file.Path,
		Language: file.Language,
		Rule:     sel.Rule,
		Kind:     node.Kind(),
		Text:     node.Content(),
		Indent:   node.Indentation(),
		Captures: captures,
		Content:  file.Content(),
		Start:    node.StartByte(),
		End:      node.EndByte(),
	}
	text, err := sel.Source.Replacement(ctx, req)
	if err != nil {
		point := node.StartPoint()
		return resolved{err: errors.Errorf("%s:%d:%d: %s: %w", file.Path, point.Row+1, point.Column+1, sel.Rule, err)}
	}
	if sel.Reindent && strings.Contains(text, "\n") {
		text = Reindent(text, req.Indent)
	}

	return resolved{
		ok: true,
		proposal: Proposal{
			File:  file.Path,
			Rule:  sel.Rule,
			Match: sel.Match,
			Node:  node,
			Edit: Edit{
				File:        file.Path,
				Start:       node.StartByte(),
				End:         node.EndByte(),
				Replacement: text,
				Origin:      fmt.Sprintf("rule %s", sel.Rule),
			},
		},
	}
}
