package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/termfx/refactory/core"
	"github.com/termfx/refactory/providers/builtin"
	"github.com/termfx/refactory/query"
)

type queryOptions struct {
	scope   scopeFlags
	rules   ruleFlags
	jsonOut bool
	workers int
}

func newQueryCommand(a *app) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query [path]",
		Short: "List constructs matching a query without editing anything",
		Example: `  refactory query ./src --kind function --name 'test_*'
  refactory query . -q '(call_expression function: (identifier) @fn (#eq? @fn "eval"))'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return a.query(cmd, path, opts)
		},
	}

	flags := cmd.Flags()
	opts.scope.register(flags)
	opts.rules.registerSelector(flags)
	flags.BoolVar(&opts.jsonOut, "json", false, "Print matches as JSON")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Files processed in parallel (default NumCPU)")
	return cmd
}

func (a *app) query(cmd *cobra.Command, path string, opts *queryOptions) error {
	spec := opts.rules.spec
	var (
		q   *query.Query
		err error
	)
	switch {
	case spec.Query != "" && spec.Kind != "":
		return errors.New("--query and --kind are exclusive")
	case spec.Query != "":
		q, err = query.Parse(spec.Query)
	case spec.Kind != "":
		q, err = query.ForConstruct(spec.Kind, spec.Match)
	default:
		return errors.New("pass --query or --kind")
	}
	if err != nil {
		return err
	}

	scope := core.FileScope{Path: path}
	if err := opts.scope.apply(&scope); err != nil {
		return err
	}

	batch, err := core.NewBatch(core.BatchConfig{
		Registry:      builtin.Default(),
		Workers:       opts.workers,
		RecordMatches: true,
	}, []core.Rule{{Name: "query", Query: q, Capture: spec.Capture}})
	if err != nil {
		return err
	}

	report, err := batch.Run(cmd.Context(), scope)
	if err != nil {
		return err
	}
	if opts.jsonOut {
		return printJSON(a.out, report)
	}

	root, _ := filepath.Abs(scope.Path)
	matches, files := 0, 0
	for _, f := range report.Files {
		if len(f.Found) == 0 {
			continue
		}
		files++
		rel := displayPath(root, f.Path)
		for _, m := range f.Found {
			matches++
			fmt.Fprintf(a.out, "%s:%d:%d: %s %s\n", cyan(rel), m.Line, m.Column, faint(m.Kind), firstLine(m.Text))
		}
	}
	for _, w := range report.Warnings {
		fmt.Fprintf(a.out, "%s %s\n", yellow("warning:"), w)
	}
	fmt.Fprintf(a.out, "%s\n", bold(fmt.Sprintf("%d matches in %d files", matches, files)))
	if report.Cancelled {
		a.exitCode = exitRejected
	}
	return nil
}
