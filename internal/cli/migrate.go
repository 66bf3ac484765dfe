package cli

import (
	"context"
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"survey-flow-service/internal/config"
	pgmigrations "survey-flow-service/internal/infra/postgres/migrations"
)

type migrateOptions struct {
	rollback bool
	status   bool
}

// NewMigrateCmd applies, rolls back or lists the survey schema migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var opts migrateOptions
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply survey and answer table migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runMigrationsWithConfig(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.rollback, "rollback", false, "roll back the last applied migration group")
	cmd.Flags().BoolVar(&opts.status, "status", false, "list applied and pending migrations without changing anything")
	return cmd
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, opts migrateOptions) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	db := bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL))), pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init migration tables: %w", err)
	}

	switch {
	case opts.status:
		ms, err := migrator.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}
		for _, m := range ms {
			log.WithFields(log.Fields{
				"migration": m.Name,
				"applied":   m.IsApplied(),
				"group":     m.GroupID,
			}).Info("migration status")
		}
		return nil
	case opts.rollback:
		group, err := migrator.Rollback(ctx)
		if err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
		if group.IsZero() {
			log.Info("nothing to roll back")
			return nil
		}
		log.WithField("group", group.String()).Info("migrations rolled back")
		return nil
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if group.IsZero() {
		log.Info("schema is up to date")
		return nil
	}
	log.WithField("group", group.String()).Info("migrations applied")
	return nil
}
