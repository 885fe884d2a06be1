// File: cmd/root.go

// Package cmd wires the wayfarer CLI: configuration loading, logger setup and
// the goal/recall/codegen command surface over the orchestration engine.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/voidmaw/wayfarer/internal/config"
	"github.com/voidmaw/wayfarer/internal/observability"
)

type ctxKey int

// configKey carries the validated *config.Config from the root command's
// PersistentPreRunE to the subcommands.
const configKey ctxKey = iota

// osExit is swapped out in tests.
var osExit = os.Exit

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:     "wayfarer",
		Short:   "Wayfarer is a goal-driven web automation agent.",
		Long: "Wayfarer accepts a natural-language goal, plans a sequence of browser\n" +
			"actions, executes them in a real browser while capturing the API traffic\n" +
			"behind the pages, and distills what it saw into searchable knowledge.",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, cfgFile); err != nil {
				return err
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				// Fall back to a plain console logger so the failure is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "wayfarer"})
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Configuration loaded.", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default searches . and ~/.wayfarer)")
	cmd.SetVersionTemplate(`{{printf "wayfarer %s\n" .Version}}`)

	cmd.AddCommand(newGoalCmd())
	cmd.AddCommand(newRecallCmd())
	cmd.AddCommand(newCodegenCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// initializeConfig points viper at the config file and the WAYFARER_*
// environment. A missing config file is fine; defaults and env carry the run.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if dir, err := config.DefaultConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("WAYFARER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// configFromContext retrieves the config stashed by the root PersistentPreRunE.
func configFromContext(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration missing from command context")
	}
	return cfg, nil
}

// Execute runs the CLI under a signal-aware context. An interrupt cancels the
// in-flight goal at the next collaborator boundary; cleanup still runs.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command failed.", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		observability.Sync()
		osExit(1)
	}
	observability.Sync()
}
