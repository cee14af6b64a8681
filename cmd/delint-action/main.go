package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rancher/delint-action/internal/app"
)

var (
	flagEventPath string
	flagDryRun    bool
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "delint-action",
	Short: "Lint a pushed branch and commit any automatic fixes",
	Long: `delint-action reacts to a GitHub push event: it clones the pushed branch, runs the
configured TypeScript linter, pushes any autofixes back, notifies the author over chat
and posts a commit status with the result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := app.LoadConfig(ctx)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("event-path") {
			cfg.Action.EventPath = flagEventPath
		}
		if cmd.Flags().Changed("dry-run") {
			cfg.DryRun = flagDryRun
		}
		if flagVerbose {
			cfg.LogLevel = "debug"
		}

		runner, err := app.NewRunner(cfg)
		if err != nil {
			return fmt.Errorf("failed to create runner: %w", err)
		}

		if _, err := runner.Run(ctx); err != nil {
			return fmt.Errorf("delint action failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagEventPath, "event-path", "", "path to the push event payload (overrides GITHUB_EVENT_PATH)")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "lint without pushing commits, posting statuses or sending chat messages")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Print(err)
		stop()
		os.Exit(1)
	}
}
