package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"vigil/internal/appearance"
	"vigil/internal/commit"
	"vigil/internal/history"
	"vigil/internal/intake"
	"vigil/internal/progress"
	"vigil/internal/review"
	"vigil/internal/workflow"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var protestID int64
	var answerFlags []string
	var threshold float64

	cmd := &cobra.Command{
		Use:   "process <url>",
		Short: "Submit a URL and run analysis, review, and commit in one pass",
		Long: `Process dispatches a URL submission, follows the analysis stream, accepts
every candidate at or above the confidence threshold, and commits the
verified set. Candidates below the threshold are left unreviewed and are
not committed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if threshold <= 0 {
				threshold = cfg.Review.AutoAcceptThreshold
			}
			token, err := ctx.captchaToken()
			if err != nil {
				return err
			}
			client, err := ctx.backendClient()
			if err != nil {
				return err
			}
			channel, err := ctx.progressChannel()
			if err != nil {
				return err
			}
			in := intake.New(client, intake.WithLogger(ctx.ensureLogger()))

			out := cmd.OutOrStdout()
			controller := workflow.New(
				workflow.ChannelSubscriber(channel),
				client,
				commit.New(client, commit.WithLogger(ctx.ensureLogger())),
				workflow.WithLogger(ctx.ensureLogger()),
				workflow.WithObserver(func(event progress.Event) { printEvent(out, event) }),
			)

			if err := controller.BeginIntake(); err != nil {
				return err
			}
			answers, err := parseAnswerFlags(answerFlags)
			if err != nil {
				return err
			}
			dispatch, err := in.DispatchURL(cmd.Context(), intake.URLSubmission{
				URL:          args[0],
				ProtestID:    protestIDFlag(protestID),
				Answers:      answers,
				CaptchaToken: token,
			})
			if err != nil {
				_ = controller.DispatchFailed(err.Error())
				return err
			}
			fmt.Fprintf(out, "Dispatched task %s\n", dispatch.TaskID)

			journalID := ""
			_ = ctx.withJournal(func(store *history.Store) error {
				record, err := store.Add(cmd.Context(), history.KindURL, args[0], dispatch.TaskID, nil)
				if err == nil {
					journalID = record.ID
				}
				return err
			})

			if err := controller.Dispatched(cmd.Context(), dispatch.TaskID, 0); err != nil {
				return err
			}
			stage, err := controller.AwaitReview(cmd.Context())
			if err != nil {
				return err
			}
			if stage == workflow.StageAnalysisError {
				reason := controller.FailureReason()
				if journalID != "" {
					_ = ctx.withJournal(func(store *history.Store) error {
						return store.UpdateStatus(cmd.Context(), journalID, history.StatusFailed, reason)
					})
				}
				return fmt.Errorf("analysis failed: %s", reason)
			}

			if outcome := controller.ReconcileOutcome(); outcome.Degraded {
				fmt.Fprintf(out, "warning: %s\n", outcome.Warning)
			}

			accepted := autoReview(controller, threshold)
			printReviewTable(out, controller.View())
			fmt.Fprintf(out, "Accepted %d candidates at threshold %s\n", accepted, formatConfidence(threshold))

			if accepted == 0 {
				if err := controller.ConfirmEmpty(); err != nil {
					return err
				}
			} else if err := controller.ConfirmReview(); err != nil {
				return err
			}
			if err := controller.ConfirmDetails(); err != nil {
				return err
			}

			outcome, err := controller.Commit(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Committed %d verified appearances", outcome.UpdatedCount)
			if outcome.DroppedProvisional > 0 {
				fmt.Fprintf(out, " (%d unpersisted candidates skipped)", outcome.DroppedProvisional)
			}
			fmt.Fprintln(out)
			for _, item := range outcome.ItemErrors {
				fmt.Fprintf(out, "appearance %d not updated: %s\n", item.AppearanceID, item.Error)
			}

			if journalID != "" {
				mediaID, _ := controller.MediaID()
				_ = ctx.withJournal(func(store *history.Store) error {
					if mediaID > 0 {
						if err := store.AttachMedia(cmd.Context(), journalID, mediaID); err != nil {
							return err
						}
					}
					return store.RecordCommit(cmd.Context(), journalID, outcome.UpdatedCount)
				})
			}
			return nil
		},
	}

	cmd.Flags().Int64VarP(&protestID, "protest", "p", 0, "Protest to attach the media to")
	cmd.Flags().StringArrayVarP(&answerFlags, "answer", "a", nil, "Questionnaire answer as key=value (repeatable)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Auto-accept confidence threshold (defaults to review.auto_accept_threshold)")
	return cmd
}

// autoReview accepts every candidate at or above the threshold and returns
// how many were accepted.
func autoReview(controller *workflow.Controller, threshold float64) int {
	accepted := 0
	for _, candidate := range controller.Snapshot() {
		if candidate.Confidence >= threshold {
			if controller.SetDecision(candidate.ID, appearance.DecisionAccepted) == nil {
				accepted++
			}
		}
	}
	return accepted
}

func printReviewTable(out io.Writer, view review.View) {
	rows := make([][]string, 0, len(view.Entries))
	for _, entry := range view.Entries {
		candidate := entry.Candidate
		fields := candidate.Resolved()
		label := review.DisplayName(candidate)
		if entry.IsPrimary {
			label = fmt.Sprintf("%s (+%d merged)", label, len(entry.Members))
		}
		rows = append(rows, []string{
			candidate.ID.String(),
			label,
			orDash(fields.Badge),
			orDash(fields.Force),
			formatConfidence(candidate.Confidence),
			string(candidate.Decision),
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Appearance", "Officer", "Badge", "Force", "Confidence", "Decision"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "accepted %d, rejected %d, deferred %d, merged %d\n",
		view.Counts.Accepted, view.Counts.Rejected, view.Counts.Deferred, view.Counts.Merged)
}
