package main

import (
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/termfx/refactory/config"
	"github.com/termfx/refactory/core"
	"github.com/termfx/refactory/providers/builtin"
	"github.com/termfx/refactory/suggest"
	"github.com/termfx/refactory/syntax"
)

type runOptions struct {
	scope       scopeFlags
	rules       ruleFlags
	apply       bool
	interactive bool
	checkSyntax bool
	showDiff    bool
	jsonOut     bool
	workers     int
	description string
}

func newRunCommand(a *app) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "Apply rules to every matching construct (dry run unless --apply)",
		Example: `  refactory run ./src -q '((identifier) @id (#eq? @id "foo"))' -c id --replace bar
  refactory run . --kind function --name 'handle_*' --suggest 'add type hints' --apply
  refactory run -r recipe.hcl --apply --journal .refactory`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return a.run(cmd, path, opts)
		},
	}

	flags := cmd.Flags()
	opts.scope.register(flags)
	opts.rules.registerSelector(flags)
	opts.rules.registerReplacement(flags)
	flags.BoolVar(&opts.apply, "apply", false, "Write changes to disk")
	flags.BoolVar(&opts.interactive, "interactive", false, "Confirm each edit and conflict on the terminal")
	flags.BoolVar(&opts.checkSyntax, "check-syntax", true, "Reject files whose edits introduce syntax errors")
	flags.BoolVar(&opts.showDiff, "diff", false, "Print unified diffs (always on for dry runs)")
	flags.BoolVar(&opts.jsonOut, "json", false, "Print the report as JSON")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Files processed in parallel (default NumCPU)")
	flags.StringVar(&opts.description, "description", "", "Description stored in the journal")
	return cmd
}

func (a *app) run(cmd *cobra.Command, path string, opts *runOptions) error {
	ctx := cmd.Context()
	log := zerolog.Ctx(ctx)

	recipe, err := opts.rules.load()
	if err != nil {
		return err
	}
	if path == "" {
		path = "."
	}
	scope := recipe.Scope(path)
	if err := opts.scope.apply(&scope); err != nil {
		return err
	}

	registry := builtin.Default()
	parsers := syntax.NewBuilder(0)
	defer parsers.Close()

	suggester, err := a.suggester(recipe)
	if err != nil {
		return err
	}
	rules, err := recipe.Compile(config.Services{Suggester: suggester, Registry: registry, Parsers: parsers})
	if err != nil {
		return err
	}

	writer := core.NewAtomicWriter(core.DefaultAtomicConfig())
	defer writer.Cleanup()

	var journal *core.Journal
	if opts.apply {
		var closeJournal func()
		journal, closeJournal, err = a.openJournal(writer)
		defer closeJournal()
		if err != nil {
			return err
		}
	}

	workers := recipe.Workers
	if opts.workers > 0 {
		workers = opts.workers
	}
	description := opts.description
	if description == "" {
		description = recipe.Description
	}
	if description == "" && recipe.Location() != "" {
		description = "recipe " + filepath.Base(recipe.Location())
	}

	cfg := core.BatchConfig{
		Registry:    registry,
		Parsers:     parsers,
		Workers:     workers,
		Write:       opts.apply,
		Diff:        opts.showDiff,
		CheckSyntax: opts.checkSyntax,
		Writer:      writer,
		Journal:     journal,
		Description: description,
	}
	if opts.interactive {
		p := newPrompter(a.in, a.out)
		cfg.Approver = p
		cfg.Resolver = p
		cfg.Workers = 1
	}

	batch, err := core.NewBatch(cfg, rules)
	if err != nil {
		return err
	}
	log.Debug().Str("root", scope.Path).Strs("languages", batch.Languages()).Bool("apply", opts.apply).Msg("starting run")

	report, err := batch.Run(ctx, scope)
	if err != nil {
		return err
	}

	if opts.jsonOut {
		if err := printJSON(a.out, report); err != nil {
			return err
		}
	} else {
		root, _ := filepath.Abs(scope.Path)
		printReport(a.out, report, root, opts.showDiff || !opts.apply)
	}
	a.exitCode = report.ExitCode()
	return nil
}

// suggester builds the suggestion client for recipes that need one.
func (a *app) suggester(recipe *config.Recipe) (suggest.Suggester, error) {
	if !recipe.UsesSuggest() {
		return nil, nil
	}
	settings := config.SuggestConfig{}
	if recipe.Suggest != nil {
		settings = *recipe.Suggest
	}

	baseURL := firstNonEmpty(settings.BaseURL, a.env.BaseURL)
	if a.env.APIKey == "" && baseURL == "" {
		return nil, errors.Errorf("suggest rules need %s or %s", config.EnvAPIKey, config.EnvOpenAIAPIKey)
	}

	client := suggest.NewOpenAIClient(suggest.Config{
		BaseURL: baseURL,
		APIKey:  a.env.APIKey,
		Model:   firstNonEmpty(settings.Model, a.env.Model),
	})
	retries := settings.Retries
	if retries <= 0 {
		retries = 3
	}
	return suggest.WithRetry(client, retries, 500*time.Millisecond), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
