package main

import (
	"context"
	"time"

	"epub-reader/internal/config"
	"epub-reader/internal/repository"
	"epub-reader/pkg/logger"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the local database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewConfig()
			appLogger := logger.NewLogger(cfg.GetLogLevel())

			db, err := repository.OpenDatabase(cfg, appLogger)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := repository.Ping(ctx, db); err != nil {
				return err
			}
			if err := repository.Migrate(db); err != nil {
				return err
			}
			appLogger.Info("Database schema is up to date", "driver", cfg.GetDatabaseDriver())
			return nil
		},
	}
}
