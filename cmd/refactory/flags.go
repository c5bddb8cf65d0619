package main

import (
	"github.com/spf13/pflag"
	"gitlab.com/tozd/go/errors"

	"github.com/termfx/refactory/config"
	"github.com/termfx/refactory/core"
)

type scopeFlags struct {
	include        []string
	exclude        []string
	languages      []string
	maxDepth       int
	maxFiles       int
	maxFileSize    int64
	followSymlinks bool
	hidden         bool
	noGitignore    bool
	gitScope       bool
	requireGit     bool
}

func (s *scopeFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&s.include, "include", "i", nil, "Only files matching these globs (e.g. '**/*.py')")
	fs.StringSliceVarP(&s.exclude, "exclude", "x", nil, "Skip files and directories matching these globs")
	fs.StringSliceVarP(&s.languages, "lang", "l", nil, "Restrict to these languages")
	fs.IntVar(&s.maxDepth, "max-depth", 0, "Max directory depth below the root (0 = unlimited)")
	fs.IntVar(&s.maxFiles, "max-files", 0, "Stop after this many files (0 = unlimited)")
	fs.Int64Var(&s.maxFileSize, "max-file-size", 0, "Skip files larger than this many bytes (0 = unlimited)")
	fs.BoolVar(&s.followSymlinks, "follow-symlinks", false, "Follow symbolic links")
	fs.BoolVar(&s.hidden, "hidden", false, "Descend into hidden directories")
	fs.BoolVar(&s.noGitignore, "no-gitignore", false, "Do not apply .gitignore rules")
	fs.BoolVar(&s.gitScope, "git-scope", false, "Run over the whole git repository containing the path")
	fs.BoolVar(&s.requireGit, "require-git", false, "Refuse to run outside a git repository")
}

// apply overrides scope with every flag that was set.
func (s *scopeFlags) apply(scope *core.FileScope) error {
	if len(s.include) > 0 {
		scope.Include = s.include
	}
	if len(s.exclude) > 0 {
		scope.Exclude = s.exclude
	}
	if len(s.languages) > 0 {
		scope.Languages = s.languages
	}
	if s.maxFileSize > 0 {
		scope.MaxFileSize = s.maxFileSize
	}
	scope.MaxDepth = s.maxDepth
	scope.MaxFiles = s.maxFiles
	scope.FollowSymlinks = s.followSymlinks
	scope.IncludeHidden = s.hidden
	scope.IgnoreGitignore = s.noGitignore

	if !s.gitScope && !s.requireGit {
		return nil
	}
	repo, err := core.FindRepoRoot(scope.Path)
	if err != nil {
		return err
	}
	if s.gitScope {
		scope.Path = repo
	}
	return nil
}

type ruleFlags struct {
	recipe   string
	spec     config.RuleSpec
	validate bool
}

func (r *ruleFlags) registerSelector(fs *pflag.FlagSet) {
	fs.StringVarP(&r.spec.Query, "query", "q", "", "Construct query, e.g. '((identifier) @id (#eq? @id \"foo\"))'")
	fs.StringVarP(&r.spec.Kind, "kind", "k", "", "Construct kind shorthand: function, class, method, struct, enum, ... or a node type")
	fs.StringVarP(&r.spec.Match, "name", "n", "", "Name glob for --kind")
	fs.StringVarP(&r.spec.Capture, "capture", "c", "", "Capture to act on instead of the whole match")
}

func (r *ruleFlags) registerReplacement(fs *pflag.FlagSet) {
	fs.StringVarP(&r.recipe, "recipe", "r", "", "Recipe file (.hcl, .yaml, .yml, .json)")
	fs.StringVar(&r.spec.Replace, "replace", "", "Replacement text")
	fs.BoolVar(&r.spec.Delete, "delete", false, "Delete the selected constructs")
	fs.StringVar(&r.spec.Script, "script", "", "Risor expression computing the replacement")
	fs.StringVar(&r.spec.ScriptFile, "script-file", "", "Risor script file computing the replacement")
	fs.StringVar(&r.spec.Suggest, "suggest", "", "Ask the suggestion service to do this to each construct")
	fs.BoolVar(&r.spec.Reindent, "reindent", false, "Indent multi-line replacements like the construct they replace")
	fs.BoolVar(&r.validate, "validate", false, "Reject suggestions that do not parse")
}

func (r *ruleFlags) selectorSet() bool {
	return r.spec.Query != "" || r.spec.Kind != "" || r.spec.Match != "" || r.spec.Capture != ""
}

// load returns the recipe file, or a one-rule recipe built from flags.
func (r *ruleFlags) load() (*config.Recipe, error) {
	if r.recipe != "" {
		if r.selectorSet() || r.spec.Replace != "" || r.spec.Delete || r.spec.Script != "" || r.spec.ScriptFile != "" || r.spec.Suggest != "" {
			return nil, errors.New("--recipe cannot be combined with rule flags")
		}
		return config.LoadRecipe(r.recipe)
	}

	spec := r.spec
	if spec.Name == "" {
		spec.Name = "cli"
	}
	recipe := &config.Recipe{Rules: []config.RuleSpec{spec}}
	if spec.Suggest != "" {
		recipe.Suggest = &config.SuggestConfig{Validate: r.validate}
	}
	if err := recipe.Validate(); err != nil {
		return nil, err
	}
	return recipe, nil
}
