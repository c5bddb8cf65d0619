package main

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/termfx/refactory/core"
	"github.com/termfx/refactory/providers/builtin"
)

type langsOptions struct {
	scope scopeFlags
	files bool
}

func newLangsCommand(a *app) *cobra.Command {
	opts := &langsOptions{}
	cmd := &cobra.Command{
		Use:   "langs [path]",
		Short: "List supported languages, or count the files a run over path would visit",
		Example: `  refactory langs
  refactory langs ./src --exclude 'vendor/**'
  refactory langs . --files --lang python`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if opts.files {
					return errors.New("--files needs a path")
				}
				return a.listLanguages()
			}
			return a.scanLanguages(cmd, args[0], opts)
		},
	}

	flags := cmd.Flags()
	opts.scope.register(flags)
	flags.BoolVar(&opts.files, "files", false, "Print every file the walk discovers instead of counts")
	return cmd
}

func (a *app) listLanguages() error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tEXTENSIONS\tKINDS")
	for _, g := range builtin.Default().List() {
		cfg := g.Config()
		fmt.Fprintf(tw, "%s\t%s\t%s\n", g.Name(), strings.Join(cfg.Extensions(), " "), strings.Join(cfg.SupportedQueryTypes(), " "))
	}
	return tw.Flush()
}

func (a *app) scanLanguages(cmd *cobra.Command, path string, opts *langsOptions) error {
	scope := core.FileScope{Path: path}
	if err := opts.scope.apply(&scope); err != nil {
		return err
	}
	walker := core.NewFileWalker(builtin.Default())

	if opts.files {
		files, err := walker.FastScan(cmd.Context(), scope)
		if err != nil {
			return err
		}
		root, _ := filepath.Abs(scope.Path)
		for _, f := range files {
			fmt.Fprintln(a.out, displayPath(root, f))
		}
		return nil
	}

	stats, err := walker.GetLanguageStats(cmd.Context(), scope)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tFILES")
	total := 0
	for _, lang := range slices.Sorted(maps.Keys(stats)) {
		name := lang
		if name == "" {
			name = "(unsupported)"
		}
		fmt.Fprintf(tw, "%s\t%d\n", name, stats[lang])
		total += stats[lang]
	}
	fmt.Fprintf(tw, "%s\t%d\n", "total", total)
	return tw.Flush()
}
