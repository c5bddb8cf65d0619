package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/termfx/refactory/core"
)

func newHistoryCommand(a *app) *cobra.Command {
	var (
		prune   time.Duration
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			journal, closeJournal, err := a.requireJournal(core.NewAtomicWriter(core.DefaultAtomicConfig()))
			defer closeJournal()
			if err != nil {
				return err
			}

			if prune > 0 {
				removed, err := journal.Prune(ctx, prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "pruned %d run(s)\n", removed)
			}

			records, err := journal.History(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(a.out, records)
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tSTARTED\tFILES\tDESCRIPTION")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, statusColor(r.Status), r.Started.Local().Format(time.DateTime), len(r.Entries), r.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().DurationVar(&prune, "prune", 0, "First remove finished runs older than this (e.g. 720h)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print runs as JSON")
	return cmd
}

func statusColor(status core.JournalStatus) string {
	switch status {
	case core.JournalCommitted:
		return green(string(status))
	case core.JournalReverted:
		return faint(string(status))
	default:
		return yellow(string(status))
	}
}
