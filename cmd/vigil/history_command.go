package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"vigil/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled submissions and their outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withJournal(func(store *history.Store) error {
				records, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(out, "No submissions journaled yet")
					return nil
				}

				rows := make([][]string, 0, len(records))
				for _, record := range records {
					rows = append(rows, []string{
						record.CreatedAt.Local().Format(time.DateTime),
						record.Kind,
						record.Reference,
						orDash(record.TaskID),
						formatMediaID(record.MediaID),
						record.Status,
						strconv.Itoa(record.UpdatedCount),
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"Submitted", "Kind", "Reference", "Task", "Media", "Status", "Verified"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	return cmd
}
