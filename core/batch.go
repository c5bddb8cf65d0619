package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/termfx/refactory/providers"
	"github.com/termfx/refactory/query"
	"github.com/termfx/refactory/syntax"
)

// ErrSyntaxCheck rejects an edit set that introduces new syntax errors.
var ErrSyntaxCheck = errors.Base("edits introduce syntax errors")

// Rule pairs a query with what to do with its matches. A rule without a
// Source only reports matches.
type Rule struct {
	Name     string
	Query    *query.Query
	Capture  string
	Source   ReplacementSource
	Reindent bool
}

// BatchConfig configures a batch run. Zero values are usable: dry run,
// NumCPU workers, no journal.
type BatchConfig struct {
	Registry         *providers.Registry
	Parsers          *syntax.Builder
	Workers          int
	BuildConcurrency int
	// Write applies edits to disk; otherwise the run is a dry run.
	Write       bool
	Diff        bool
	CheckSyntax bool
	// RecordMatches keeps every match in the file reports.
	RecordMatches bool
	Approver      Approver
	Resolver      ConflictResolver
	Writer        *AtomicWriter
	Journal       *Journal
	Description   string
}

// MatchInfo is a reported match location.
type MatchInfo struct {
	Rule   string `json:"rule"`
	Kind   string `json:"kind"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Text   string `json:"text"`
}

type boundRule struct {
	rule  Rule
	bound *query.Bound
}

// Batch applies rules across a project.
type Batch struct {
	cfg     BatchConfig
	rules   []Rule
	byLang  map[string][]boundRule
	walker  *FileWalker
	builder *Builder
}

// NewBatch binds every rule against every registered language. A rule that
// binds to no language fails the whole batch before any file is touched.
func NewBatch(cfg BatchConfig, rules []Rule) (*Batch, error) {
	if cfg.Registry == nil {
		return nil, errors.New("batch needs a grammar registry")
	}
	if len(rules) == 0 {
		return nil, errors.Errorf("%w: no rules", query.ErrInvalidQuery)
	}
	if cfg.Parsers == nil {
		cfg.Parsers = syntax.NewBuilder(syntax.DefaultPoolSize)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Write && cfg.Writer == nil {
		cfg.Writer = NewAtomicWriter(DefaultAtomicConfig())
	}

	rules = slices.Clone(rules)
	b := &Batch{
		cfg:     cfg,
		rules:   rules,
		byLang:  make(map[string][]boundRule),
		walker:  NewFileWalker(cfg.Registry),
		builder: NewBuilder(cfg.BuildConcurrency, cfg.Approver, cfg.Resolver),
	}

	for i, rule := range rules {
		if rule.Query == nil {
			return nil, errors.Errorf("%w: rule %q has no query", query.ErrInvalidQuery, rule.Name)
		}
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("rule-%d", i+1)
			rules[i] = rule
		}
		if rule.Capture != "" && !hasCapture(rule.Query, rule.Capture) {
			return nil, errors.Errorf("%w: rule %q replaces unknown capture @%s", query.ErrInvalidQuery, rule.Name, rule.Capture)
		}

		var bindErrs []string
		for _, g := range cfg.Registry.List() {
			bound, err := rule.Query.Bind(g)
			if err != nil {
				bindErrs = append(bindErrs, err.Error())
				continue
			}
			b.byLang[g.Name()] = append(b.byLang[g.Name()], boundRule{rule: rule, bound: bound})
		}
		if len(bindErrs) == len(cfg.Registry.List()) {
			return nil, errors.Errorf("%w: rule %q binds to no language: %s",
				query.ErrInvalidQuery, rule.Name, strings.Join(bindErrs, "; "))
		}
	}
	return b, nil
}

func hasCapture(q *query.Query, name string) bool {
	return slices.Contains(q.CaptureNames(), name)
}

// Languages returns the languages at least one rule applies to.
func (b *Batch) Languages() []string {
	var langs []string
	for _, g := range b.cfg.Registry.List() {
		if len(b.byLang[g.Name()]) > 0 {
			langs = append(langs, g.Name())
		}
	}
	return langs
}

// Run processes every file under scope. Files are reported in discovery
// order. Cancelling ctx stops new files from starting; a write already in
// progress completes atomically.
func (b *Batch) Run(ctx context.Context, scope FileScope) (*Report, error) {
	start := time.Now()
	log := zerolog.Ctx(ctx)

	if len(scope.Languages) == 0 {
		scope.Languages = b.Languages()
	}
	root, err := filepath.Abs(scope.Path)
	if err != nil {
		return nil, errors.Errorf("%w: %w", ErrInvalidScope, err)
	}

	walkCtx, stopWalk := context.WithCancel(ctx)
	defer stopWalk()
	results, err := b.walker.Walk(walkCtx, scope)
	if err != nil {
		return nil, errors.Errorf("failed to walk files: %w", err)
	}

	report := &Report{DryRun: !b.cfg.Write}
	if b.cfg.Write && b.cfg.Journal != nil {
		id, err := b.cfg.Journal.Begin(ctx, b.cfg.Description, root)
		if err != nil {
			return nil, err
		}
		report.JournalID = id
	}

	var files []*FileReport
	g := new(errgroup.Group)
	g.SetLimit(b.cfg.Workers)
	for result := range results {
		if result.IsWarning() {
			report.Warnings = append(report.Warnings, result.Warning)
			log.Warn().Msg(result.Warning)
			continue
		}

		file := &FileReport{Path: result.Path, Language: result.Language, State: StateDiscovered}
		if result.Info != nil {
			file.OriginalSize = result.Info.Size()
		}
		files = append(files, file)

		if ctx.Err() != nil {
			file.skip(SkipCancelled, nil)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				file.skip(SkipCancelled, nil)
				return nil
			}
			b.processFile(ctx, file, root)
			return nil
		})
	}
	report.ScanDuration = time.Since(start)
	_ = g.Wait()

	if report.JournalID != "" {
		if err := b.cfg.Journal.Commit(context.WithoutCancel(ctx)); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("failed to commit journal: %v", err))
		}
	}

	report.Files = make([]FileReport, len(files))
	for i, f := range files {
		report.Files[i] = *f
	}
	report.Cancelled = ctx.Err() != nil
	report.TotalDuration = time.Since(start)

	applied, rejected, skipped := report.Counts()
	log.Info().
		Int("files", len(files)).
		Int("applied", applied).
		Int("rejected", rejected).
		Int("skipped", skipped).
		Int("modified", report.Modified()).
		Bool("dry_run", report.DryRun).
		Dur("duration", report.TotalDuration).
		Msg("batch finished")
	return report, nil
}

// processFile moves one file through its states. It never returns an error;
// the outcome is recorded in the report.
func (b *Batch) processFile(ctx context.Context, report *FileReport, root string) {
	log := zerolog.Ctx(ctx).With().Str("file", report.Path).Logger()

	grammar, ok := b.cfg.Registry.Get(report.Language)
	if !ok {
		report.skip(SkipUnsupported, errors.WithDetails(providers.ErrUnsupportedLanguage, "path", report.Path))
		report.warn("unsupported language")
		log.Warn().Msg("skipping file with unsupported language")
		return
	}

	content, err := os.ReadFile(report.Path)
	if err != nil {
		report.skip(SkipUnreadable, err)
		log.Warn().Err(err).Msg("skipping unreadable file")
		return
	}
	report.OriginalSize = int64(len(content))

	tree, err := b.cfg.Parsers.Parse(ctx, grammar, content)
	if err != nil {
		if ctx.Err() != nil {
			report.skip(SkipCancelled, nil)
		} else {
			report.skip(SkipParseError, err)
		}
		return
	}
	defer tree.Close()
	report.State = StateParsed

	for _, region := range tree.Errors() {
		report.warn("syntax error %s", region)
	}

	source := NewSourceFile(report.Path, grammar.Name(), content)
	var selections []Selection
	for _, br := range b.byLang[grammar.Name()] {
		for m := range br.bound.Matches(tree) {
			report.Matches++
			if b.cfg.RecordMatches {
				report.Found = append(report.Found, matchInfo(br.rule.Name, m))
			}
			if br.rule.Source != nil {
				selections = append(selections, Selection{
					Match:    m,
					Rule:     br.rule.Name,
					Capture:  br.rule.Capture,
					Source:   br.rule.Source,
					Reindent: br.rule.Reindent,
				})
			}
		}
	}
	report.State = StateQueried

	built, err := b.builder.Build(ctx, source, selections)
	if built != nil {
		report.Warnings = append(report.Warnings, built.Warnings...)
		report.Declined = built.Declined
	}
	if err != nil {
		var conflict *ConflictError
		switch {
		case ctx.Err() != nil:
			report.skip(SkipCancelled, nil)
		case errors.As(err, &conflict):
			report.Conflicts = []Edit{conflict.A, conflict.B}
			report.reject(err)
			log.Warn().Err(err).Msg("rejected conflicting edits")
		default:
			report.reject(err)
		}
		return
	}
	set := built.Set
	report.State = StateEditSetBuilt
	report.Edits = set.Edits()

	if set.Empty() {
		if tree.HasErrors() {
			report.skip(SkipParseError, nil)
			log.Warn().Int("errors", len(tree.Errors())).Msg("skipping file with syntax errors")
			return
		}
		report.State = StateApplied
		report.ModifiedSize = report.OriginalSize
		return
	}

	modified, err := Apply(content, set)
	if err != nil {
		report.reject(err)
		return
	}
	report.ModifiedSize = int64(len(modified))

	if b.cfg.CheckSyntax {
		if err := b.checkSyntax(ctx, tree, modified, set); err != nil {
			if ctx.Err() != nil {
				report.skip(SkipCancelled, nil)
				return
			}
			report.reject(err)
			log.Warn().Err(err).Msg("rejected edits")
			return
		}
	}

	if b.cfg.Diff || !b.cfg.Write {
		report.Diff = unifiedDiff(relPath(root, report.Path), content, modified)
	}
	report.Modified = string(modified) != string(content)

	if b.cfg.Write && report.Modified {
		if ctx.Err() != nil {
			report.Modified = false
			report.skip(SkipCancelled, nil)
			return
		}
		if b.cfg.Journal != nil {
			err = b.cfg.Journal.Write(context.WithoutCancel(ctx), report.Path, grammar.Name(), content, modified, report.Edits)
		} else {
			err = b.cfg.Writer.WriteFile(report.Path, modified)
		}
		if err != nil {
			report.Modified = false
			report.reject(errors.Errorf("failed to write file: %w", err))
			log.Error().Err(err).Msg("write failed")
			return
		}
		log.Debug().Int("edits", set.Len()).Msg("file written")
	}
	report.State = StateApplied
}

// checkSyntax re-parses the edited content and fails when it has more error
// regions than the original.
func (b *Batch) checkSyntax(ctx context.Context, tree *syntax.Tree, modified []byte, set *EditSet) error {
	after, err := b.cfg.Parsers.Reparse(ctx, tree, modified, set.Changes())
	if err != nil {
		return err
	}
	defer after.Close()

	if len(after.Errors()) > len(tree.Errors()) {
		regions := after.Errors()
		return errors.Errorf("%w: %d new, first %s", ErrSyntaxCheck, len(regions)-len(tree.Errors()), regions[0])
	}
	return nil
}

func matchInfo(rule string, m query.Match) MatchInfo {
	point := m.Node.StartPoint()
	return MatchInfo{
		Rule:   rule,
		Kind:   m.Node.Kind(),
		Line:   int(point.Row) + 1,
		Column: int(point.Column) + 1,
		Start:  m.Node.StartByte(),
		End:    m.Node.EndByte(),
		Text:   m.Node.Content(),
	}
}

func relPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

// unifiedDiff renders a git-style diff of one file.
func unifiedDiff(name string, original, modified []byte) string {
	if string(original) == string(modified) {
		return ""
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(original)),
		B:        difflib.SplitLines(string(modified)),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	}

	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("--- %s\n+++ %s\n@@ changes @@\n%d bytes -> %d bytes\n",
			diff.FromFile, diff.ToFile, len(original), len(modified))
	}
	return text
}
