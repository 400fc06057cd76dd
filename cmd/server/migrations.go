package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/phrazzld/tasker-api/internal/platform/postgres/migrations"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <" + strings.Join(migrations.Commands, "|") + ">",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrations.Commands,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			log = log.With("component", "migrations", "command", args[0])

			ctx := cmd.Context()
			db, err := setupAppDatabase(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Error("Error closing database connection", "error", err)
				}
			}()

			start := time.Now()
			log.Info("Starting migration operation")
			if err := migrations.Run(ctx, db, args[0], log); err != nil {
				return fmt.Errorf("migrate %s: %w", args[0], err)
			}
			log.Info("Migration operation completed", "duration_ms", time.Since(start).Milliseconds())
			return nil
		},
	}
}
