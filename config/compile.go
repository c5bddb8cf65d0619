package config

import (
	"gitlab.com/tozd/go/errors"

	"github.com/termfx/refactory/core"
	"github.com/termfx/refactory/providers"
	"github.com/termfx/refactory/query"
	"github.com/termfx/refactory/script"
	"github.com/termfx/refactory/suggest"
	"github.com/termfx/refactory/syntax"
)

// Services are the collaborators some rules need. Suggester is required
// only by suggest rules; Registry and Parsers only for validation.
type Services struct {
	Suggester suggest.Suggester
	Registry  *providers.Registry
	Parsers   *syntax.Builder
}

// Compile turns the recipe's rule specs into batch rules. All suggest rules
// share one call limit.
func (r *Recipe) Compile(svc Services) ([]core.Rule, error) {
	var shared *suggest.Source
	if r.UsesSuggest() {
		if svc.Suggester == nil {
			return nil, errors.Errorf("%w: suggest rules need a suggestion service", ErrInvalidRecipe)
		}
		settings := SuggestConfig{}
		if r.Suggest != nil {
			settings = *r.Suggest
		}
		shared = suggest.NewSource(svc.Suggester, "", settings.Concurrency)
		if settings.Validate && svc.Registry != nil && svc.Parsers != nil {
			shared.Validate(svc.Registry, svc.Parsers)
		}
	}

	rules := make([]core.Rule, 0, len(r.Rules))
	for _, spec := range r.Rules {
		rule, err := compileRule(spec, shared)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func compileRule(spec RuleSpec, shared *suggest.Source) (core.Rule, error) {
	var (
		q   *query.Query
		err error
	)
	if spec.Query != "" {
		q, err = query.Parse(spec.Query)
	} else {
		q, err = query.ForConstruct(spec.Kind, spec.Match)
	}
	if err != nil {
		return core.Rule{}, errors.Errorf("rule %s: %w", spec.Name, err)
	}

	rule := core.Rule{
		Name:     spec.Name,
		Query:    q,
		Capture:  spec.Capture,
		Reindent: spec.Reindent,
	}
	switch {
	case spec.Delete:
		rule.Source = core.Literal("")
	case spec.Replace != "":
		rule.Source = core.Literal(spec.Replace)
	case spec.Script != "":
		rule.Source = script.New(spec.Script)
	case spec.ScriptFile != "":
		source, err := script.Load(spec.ScriptFile)
		if err != nil {
			return core.Rule{}, errors.Errorf("%w: rule %s: %w", ErrInvalidRecipe, spec.Name, err)
		}
		rule.Source = source
	case spec.Suggest != "":
		rule.Source = shared.WithIntent(spec.Suggest)
		rule.Reindent = true
	default:
		return core.Rule{}, errors.Errorf("%w: rule %s: no replacement", ErrInvalidRecipe, spec.Name)
	}
	return rule, nil
}
