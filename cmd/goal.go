// File: cmd/goal.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voidmaw/wayfarer/internal/observability"
)

// newGoalCmd creates the `goal` command: the full pipeline for one web goal.
func newGoalCmd() *cobra.Command {
	var headless bool

	goalCmd := &cobra.Command{
		Use:   "goal \"<text>\"",
		Short: "Run a web goal end to end and print the summary",
		Long: "Plans the goal against the current browsing state, drives the browser\n" +
			"through the plan while capturing and learning the API traffic behind it,\n" +
			"then prints a summary of what was accomplished and discovered. The\n" +
			"browser session is closed before the command returns, success or not.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = headless
			}

			logger := observability.GetLogger()
			goal := args[0]
			logger.Info("Starting web goal.", zap.String("goal", goal), zap.Bool("headless", cfg.Browser.Headless))

			engine, err := newEngine(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize engine: %w", err)
			}
			defer engine.Close()

			summary, err := engine.PerformWebGoal(ctx, goal)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Goal aborted gracefully.", zap.String("goal", goal))
					return errors.New("goal aborted by user signal")
				}
				return err
			}

			cmd.Println("\n===[ Summary ]===")
			cmd.Println(summary)
			return nil
		},
	}

	goalCmd.Flags().BoolVar(&headless, "headless", false, "Run the browser headless (overrides config)")
	return goalCmd
}
