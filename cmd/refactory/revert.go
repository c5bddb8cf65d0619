package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/termfx/refactory/core"
)

func newRevertCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revert <run-id>",
		Short: "Restore the files a journaled run changed, unless edited since",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			writer := core.NewAtomicWriter(core.DefaultAtomicConfig())
			defer writer.Cleanup()
			journal, closeJournal, err := a.requireJournal(writer)
			defer closeJournal()
			if err != nil {
				return err
			}

			result, err := journal.Revert(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			for _, path := range result.Restored {
				fmt.Fprintf(a.out, "%s %s\n", green("restored "), path)
			}
			for _, path := range result.Unchanged {
				fmt.Fprintf(a.out, "%s %s\n", faint("unchanged"), path)
			}
			skipped := make([]string, 0, len(result.Skipped))
			for path := range result.Skipped {
				skipped = append(skipped, path)
			}
			slices.Sort(skipped)
			for _, path := range skipped {
				fmt.Fprintf(a.out, "%s %s: %v\n", red("skipped  "), path, result.Skipped[path])
			}

			if len(skipped) > 0 {
				a.exitCode = exitRejected
			}
			return nil
		},
	}
}
