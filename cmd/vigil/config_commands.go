package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vigil/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			token, _ := cfg.CaptchaToken()
			tokenState := "not set"
			if token != "" {
				tokenState = "set"
			}

			out := cmd.OutOrStdout()
			rows := [][]string{
				{"backend.base_url", cfg.Backend.BaseURL},
				{"backend.environment", cfg.Backend.Environment},
				{"backend.request_timeout", fmt.Sprintf("%ds", cfg.Backend.RequestTimeout)},
				{"backend.cdn_base_url", orDash(cfg.Backend.CDNBaseURL)},
				{"captcha.token", tokenState},
				{"ingest.progress_idle_timeout", fmt.Sprintf("%ds", cfg.Ingest.ProgressIdleTimeout)},
				{"ingest.reconnect_base_delay", fmt.Sprintf("%ds", cfg.Ingest.ReconnectBaseDelay)},
				{"ingest.reconnect_max_delay", fmt.Sprintf("%ds", cfg.Ingest.ReconnectMaxDelay)},
				{"review.auto_accept_threshold", fmt.Sprintf("%.2f", cfg.Review.AutoAcceptThreshold)},
				{"paths.data_dir", cfg.Paths.DataDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"logging.format", cfg.Logging.Format},
				{"logging.level", cfg.Logging.Level},
			}
			fmt.Fprintln(out, renderTable(out, []string{"Key", "Value"}, rows, nil))
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}
			if err := config.WriteSample(target); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set backend.base_url and a captcha token before submitting media.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}
