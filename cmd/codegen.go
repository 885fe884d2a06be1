// File: cmd/codegen.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voidmaw/wayfarer/internal/observability"
)

// newCodegenCmd creates the `codegen` command: one-shot automation code
// generation without touching the browser.
func newCodegenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codegen \"<task>\"",
		Short: "Generate web automation code for a task description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(cmd)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			engine, err := newEngine(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize engine: %w", err)
			}
			defer engine.Close()

			code, err := engine.GenerateCodeForTask(ctx, args[0])
			if err != nil {
				return err
			}
			cmd.Println(code)
			return nil
		},
	}
}
