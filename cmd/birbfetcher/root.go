package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"BirbFetcher/internal/app"
	"BirbFetcher/internal/config"
	"BirbFetcher/internal/logging"
)

type commandContext struct {
	configFlag *string
}

func (c *commandContext) loadConfig() (config.Config, error) {
	var path string
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	return config.LoadFile(path)
}

// withApp opens the application for the duration of fn.
func (c *commandContext) withApp(ctx context.Context, fn func(*app.Application, *slog.Logger) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	return fn(application, logger)
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "birbfetcher",
		Short:         "Harvest, deduplicate and moderate birb pictures",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, ctx)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (defaults to $BIRBFETCHER_CONFIG)")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newOverrideCommands(ctx)...)
	rootCmd.AddCommand(newInfoCommand(ctx))
	rootCmd.AddCommand(newStatsCommand(ctx))

	return rootCmd
}
