package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newProtestsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "protests",
		Short: "List protests submissions can be attached to",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.backendClient()
			if err != nil {
				return err
			}
			protests, err := client.Protests(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(protests) == 0 {
				fmt.Fprintln(out, "No protests recorded")
				return nil
			}
			rows := make([][]string, 0, len(protests))
			for _, protest := range protests {
				rows = append(rows, []string{
					strconv.FormatInt(protest.ID, 10),
					protest.Name,
					orDash(protest.Location),
					orDash(protest.Date),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"ID", "Name", "Location", "Date"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
