package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terra-clan/staffing-engine/internal/config"
	"github.com/terra-clan/staffing-engine/internal/storage"
)

var dryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQL migrations to the postgres database",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending migrations without applying them")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Storage.Driver != config.DriverPostgres {
		return fmt.Errorf("migrations apply to the %s driver only, configured driver is %s", config.DriverPostgres, cfg.Storage.Driver)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	if dryRun {
		repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{DSN: cfg.Database.DSN})
		if err != nil {
			return err
		}
		defer repo.Close()

		pending, err := storage.NewMigrator(repo.Pool(), cfg.Migrations.Dir, log).Pending(ctx)
		if err != nil {
			return err
		}
		for _, name := range pending {
			fmt.Println(name)
		}
		log.Info("pending migrations", zap.Int("count", len(pending)))
		return nil
	}

	applied, err := storage.MigrateFromDSN(ctx, cfg.Database.DSN, cfg.Migrations.Dir, log)
	if err != nil {
		return err
	}
	log.Info("migrations applied", zap.Strings("files", applied))
	return nil
}
