package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vigil/internal/history"
	"vigil/internal/intake"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Dispatch media for analysis",
	}
	submitCmd.AddCommand(newSubmitFileCommand(ctx))
	submitCmd.AddCommand(newSubmitURLCommand(ctx))
	submitCmd.AddCommand(newSubmitBulkCommand(ctx))
	return submitCmd
}

func newSubmitFileCommand(ctx *commandContext) *cobra.Command {
	var declaredType string
	var protestID int64

	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Upload a local image or video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := ctx.captchaToken()
			if err != nil {
				return err
			}
			in, err := ctx.newIntake()
			if err != nil {
				return err
			}

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open media file: %w", err)
			}
			defer file.Close()

			if declaredType == "" {
				declaredType = guessDeclaredType(args[0])
			}
			dispatch, err := in.DispatchFile(cmd.Context(), intake.FileSubmission{
				Filename:     filepath.Base(args[0]),
				Data:         file,
				DeclaredType: declaredType,
				ProtestID:    protestIDFlag(protestID),
				CaptchaToken: token,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Uploaded %s as media %d, analysis task %s\n",
				filepath.Base(args[0]), dispatch.MediaID, dispatch.TaskID)
			fmt.Fprintf(out, "Follow it with `vigil watch %s`\n", dispatch.TaskID)

			return ctx.withJournal(func(store *history.Store) error {
				mediaID := dispatch.MediaID
				_, err := store.Add(cmd.Context(), history.KindFile, filepath.Base(args[0]), dispatch.TaskID, &mediaID)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&declaredType, "type", "t", "", "Declared media type (image or video; inferred from the extension when omitted)")
	cmd.Flags().Int64VarP(&protestID, "protest", "p", 0, "Protest to attach the media to")
	return cmd
}

func newSubmitURLCommand(ctx *commandContext) *cobra.Command {
	var protestID int64
	var answerFlags []string

	cmd := &cobra.Command{
		Use:   "url <url>",
		Short: "Submit an externally hosted media URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := ctx.captchaToken()
			if err != nil {
				return err
			}
			in, err := ctx.newIntake()
			if err != nil {
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
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Queued analysis task %s\n", dispatch.TaskID)
			if dispatch.Message != "" {
				fmt.Fprintln(out, dispatch.Message)
			}
			fmt.Fprintf(out, "Follow it with `vigil watch %s`\n", dispatch.TaskID)

			return ctx.withJournal(func(store *history.Store) error {
				_, err := store.Add(cmd.Context(), history.KindURL, args[0], dispatch.TaskID, nil)
				return err
			})
		},
	}

	cmd.Flags().Int64VarP(&protestID, "protest", "p", 0, "Protest to attach the media to")
	cmd.Flags().StringArrayVarP(&answerFlags, "answer", "a", nil, "Questionnaire answer as key=value (repeatable)")
	return cmd
}

func newSubmitBulkCommand(ctx *commandContext) *cobra.Command {
	var protestID int64

	cmd := &cobra.Command{
		Use:   "bulk <url>...",
		Short: fmt.Sprintf("Submit up to %d media URLs in one request", intake.MaxBulkURLs),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := ctx.captchaToken()
			if err != nil {
				return err
			}
			in, err := ctx.newIntake()
			if err != nil {
				return err
			}

			result, err := in.DispatchBulk(cmd.Context(), intake.BulkSubmission{
				URLs:         args,
				ProtestID:    protestIDFlag(protestID),
				CaptchaToken: token,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Tasks) > 0 {
				rows := make([][]string, 0, len(result.Tasks))
				for _, task := range result.Tasks {
					rows = append(rows, []string{task.TaskID, task.URL})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Task", "URL"}, rows, nil))
			}
			for _, rejection := range result.Rejected {
				fmt.Fprintf(out, "Skipped %s: %s\n", rejection.URL, rejection.Reason)
			}
			fmt.Fprintf(out, "Queued %d of %d URLs\n", len(result.Tasks), len(args))

			return ctx.withJournal(func(store *history.Store) error {
				reference := fmt.Sprintf("%d URLs", len(args))
				_, err := store.Add(cmd.Context(), history.KindBulk, reference, joinTaskIDs(result.Tasks), nil)
				return err
			})
		},
	}

	cmd.Flags().Int64VarP(&protestID, "protest", "p", 0, "Protest to attach the media to")
	return cmd
}

func guessDeclaredType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic":
		return "image"
	default:
		return "video"
	}
}
