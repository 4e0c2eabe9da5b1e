package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"BirbFetcher/internal/app"
	"BirbFetcher/internal/domain"
	"BirbFetcher/internal/infrastructure/httpapi"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Migrate the schema, then ingest and moderate until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, ctx)
		},
	}
}

func runDaemon(cmd *cobra.Command, ctx *commandContext) error {
	return ctx.withApp(cmd.Context(), func(application *app.Application, logger *slog.Logger) error {
		logger.Info("birbfetcher starting")
		if err := application.Run(cmd.Context()); err != nil {
			return err
		}
		logger.Info("birbfetcher stopped")
		return nil
	})
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.Application, _ *slog.Logger) error {
				result, err := application.Migrate(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (applied %d, was %d)\n", result.To, result.Applied, result.From)
				return nil
			})
		},
	}
}

func newOverrideCommands(ctx *commandContext) []*cobra.Command {
	override := func(use, short string, state domain.State) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseItemID(args[0])
				if err != nil {
					return err
				}
				return ctx.withApp(cmd.Context(), func(application *app.Application, _ *slog.Logger) error {
					if err := application.Override(cmd.Context(), id, state); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "item %d is now %s\n", id, state)
					return nil
				})
			},
		}
	}

	return []*cobra.Command{
		override("ban", "Mark an item banned so it is never served", domain.StateBanned),
		override("verify", "Mark an item verified", domain.StateVerified),
	}
}

func newInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info <id>",
		Short: "Print an item's metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(application *app.Application, _ *slog.Logger) error {
				item, err := application.Repository().Info(cmd.Context(), id)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(httpapi.NewItemInfo(item))
			})
		},
	}
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show item counts per moderation state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.Application, _ *slog.Logger) error {
				version, err := application.SchemaVersion(cmd.Context())
				if err != nil {
					return err
				}
				counts, err := application.Repository().CountByState(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "schema version: %d\n", version)
				for _, state := range domain.States {
					fmt.Fprintf(out, "%-9s %d\n", state+":", counts[state])
				}
				return nil
			})
		},
	}
}

func parseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid item id %q", raw)
	}
	return id, nil
}
