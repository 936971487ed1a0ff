package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"vigil/internal/progress"
	"vigil/internal/review"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <task-id>",
		Short: "Follow an analysis task's event stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, err := ctx.progressChannel()
			if err != nil {
				return err
			}

			sub := channel.Subscribe(cmd.Context(), args[0])
			defer sub.Close()

			out := cmd.OutOrStdout()
			for event := range sub.Events() {
				printEvent(out, event)
				if event.Kind == progress.KindFailed {
					return fmt.Errorf("analysis failed: %s", event.Reason)
				}
			}
			return nil
		},
	}
}

func printEvent(out io.Writer, event progress.Event) {
	switch event.Kind {
	case progress.KindProgress:
		if event.HasPercent {
			fmt.Fprintf(out, "[%3.0f%%] %s", event.Percent, event.Stage)
		} else {
			fmt.Fprintf(out, "[ ...] %s", event.Stage)
		}
		if event.Message != "" {
			fmt.Fprintf(out, ": %s", event.Message)
		}
		fmt.Fprintln(out)
	case progress.KindCandidate:
		if event.Candidate != nil {
			fmt.Fprintf(out, "candidate %s (%s) at %s, confidence %s\n",
				event.Candidate.ID,
				review.DisplayName(*event.Candidate),
				orDash(event.Candidate.Timestamp),
				formatConfidence(event.Candidate.Confidence))
		}
	case progress.KindWarning:
		fmt.Fprintf(out, "warning: %s\n", event.Message)
	case progress.KindCompleted:
		fmt.Fprintf(out, "completed: media %d with %d candidates\n", event.MediaID, len(event.Final))
		fmt.Fprintf(out, "Inspect them with `vigil pending %d`\n", event.MediaID)
	case progress.KindFailed:
		fmt.Fprintf(out, "failed: %s\n", event.Reason)
	}
}
