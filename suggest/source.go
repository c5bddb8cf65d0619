package suggest

import (
	"context"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/semaphore"

	"github.com/termfx/refactory/core"
	"github.com/termfx/refactory/providers"
	"github.com/termfx/refactory/syntax"
)

// ErrInvalidSuggestion is returned when suggested code does not parse.
var ErrInvalidSuggestion = errors.Base("suggested code does not parse")

// DefaultConcurrency bounds in-flight suggestion calls.
const DefaultConcurrency = 4

// Source is a core.ReplacementSource backed by a Suggester. Calls share one
// semaphore across all files of a batch.
type Source struct {
	suggester Suggester
	intent    string
	sem       *semaphore.Weighted

	registry *providers.Registry
	parsers  *syntax.Builder
}

var _ core.ReplacementSource = (*Source)(nil)

// NewSource creates a source asking suggester to apply intent, with at most
// concurrency calls in flight.
func NewSource(suggester Suggester, intent string, concurrency int) *Source {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Source{
		suggester: suggester,
		intent:    intent,
		sem:       semaphore.NewWeighted(int64(concurrency)),
	}
}

// WithIntent returns a source asking for intent that shares s's call limit
// and validation settings.
func (s *Source) WithIntent(intent string) *Source {
	clone := *s
	clone.intent = intent
	return &clone
}

// Validate makes the source parse every suggestion in the construct's
// language. A suggestion is spliced into the file it replaces and rejected
// when the file then has more error regions than before; without the file
// the suggestion is parsed on its own.
func (s *Source) Validate(registry *providers.Registry, parsers *syntax.Builder) *Source {
	s.registry = registry
	s.parsers = parsers
	return s
}

func (s *Source) Replacement(ctx context.Context, req core.ReplacementRequest) (string, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.sem.Release(1)

	text, err := s.suggester.Suggest(ctx, Request{
		Kind:     req.Kind,
		Text:     req.Text,
		Intent:   s.intent,
		Language: req.Language,
	})
	if err != nil {
		return "", err
	}
	if err := s.check(ctx, req, text); err != nil {
		return "", err
	}
	return text, nil
}

func (s *Source) check(ctx context.Context, req core.ReplacementRequest, text string) error {
	if s.parsers == nil || s.registry == nil {
		return nil
	}
	grammar, ok := s.registry.Get(req.Language)
	if !ok {
		return nil
	}

	baseline := 0
	spliced := []byte(text)
	if req.Content != nil && 0 <= req.Start && req.Start <= req.End && req.End <= len(req.Content) {
		before, err := s.errorRegions(ctx, grammar, req.Content)
		if err != nil {
			return err
		}
		baseline = len(before)
		spliced = make([]byte, 0, len(req.Content)-(req.End-req.Start)+len(text))
		spliced = append(spliced, req.Content[:req.Start]...)
		spliced = append(spliced, text...)
		spliced = append(spliced, req.Content[req.End:]...)
	}

	regions, err := s.errorRegions(ctx, grammar, spliced)
	if err != nil {
		return err
	}
	if len(regions) > baseline {
		return errors.Errorf("%w: %d new error region(s), first at line %d", ErrInvalidSuggestion, len(regions)-baseline, regions[0].Point.Row+1)
	}
	return nil
}

func (s *Source) errorRegions(ctx context.Context, grammar *providers.Grammar, content []byte) ([]syntax.ErrorRegion, error) {
	tree, err := s.parsers.Parse(ctx, grammar, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return tree.Errors(), nil
}
