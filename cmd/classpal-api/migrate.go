package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/classpal-api/internal/repository"
	"github.com/noah-isme/classpal-api/pkg/config"
	"github.com/noah-isme/classpal-api/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded PostgreSQL schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Storage.Driver != config.StoragePostgres {
			return fmt.Errorf("migrate requires STORAGE_DRIVER=%s (got %q)", config.StoragePostgres, cfg.Storage.Driver)
		}
		db, err := database.NewPostgres(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := repository.Migrate(cmd.Context(), db)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			logr.Info("schema up to date")
			return nil
		}
		logr.Info("migrations applied", zap.Strings("versions", applied))
		return nil
	},
}
