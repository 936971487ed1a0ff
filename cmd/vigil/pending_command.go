package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vigil/internal/mediapath"
	"vigil/internal/review"
)

func newPendingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pending <media-id>",
		Short: "List unverified appearances for a media record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("media id must be a number: %q", args[0])
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.backendClient()
			if err != nil {
				return err
			}

			pending, err := client.PendingOfficers(cmd.Context(), mediaID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintf(out, "No pending appearances for media %d\n", mediaID)
				return nil
			}

			rows := make([][]string, 0, len(pending))
			for _, officer := range pending {
				candidate := officer.Candidate()
				crop := "-"
				if resolved, ok := mediapath.Resolve(cfg.Backend.CDNBaseURL, candidate.Crops.Best()); ok {
					crop = resolved
				}
				rows = append(rows, []string{
					strconv.FormatInt(officer.AppearanceID, 10),
					review.DisplayName(candidate),
					orDash(officer.Badge),
					orDash(officer.Force),
					formatConfidence(officer.Confidence),
					crop,
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Appearance", "Officer", "Badge", "Force", "Confidence", "Crop"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}
