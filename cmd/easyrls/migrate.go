package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/easyrls"
	"github.com/pthm/easyrls/internal/cli"
	"github.com/pthm/easyrls/pkg/migrator"
	"github.com/pthm/easyrls/pkg/store"
	"github.com/pthm/easyrls/sql"
)

var (
	migrateDB         string
	migrateSchema     string
	migrateConditions string
	migrateDryRun     bool
	migrateForce      bool
	migrateNoPreamble bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply policies to the database",
	Long: `Apply the runtime preamble, drafted conditions and generated policies to
PostgreSQL in one transaction. Policies that a previous migration created but
that are no longer generated are dropped.`,
	Example: `  # Apply policies to database
  easyrls migrate --db postgres://localhost/mydb

  # Preview migration without applying
  easyrls migrate --db postgres://localhost/mydb --dry-run

  # Force re-apply even if nothing changed
  easyrls migrate --db postgres://localhost/mydb --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun := resolveBool(migrateDryRun, cfg.Migrate.DryRun)
		force := resolveBool(migrateForce, cfg.Migrate.Force)

		ctx := context.Background()
		var in migrator.Input
		if err := withStore(ctx, func(st store.Store) error {
			s, err := loadSchema(ctx, st, migrateSchema)
			if err != nil {
				return err
			}
			conditions, err := loadConditions(ctx, st, migrateConditions)
			if err != nil {
				return err
			}
			in = migrator.Input{Schema: s, Conditions: conditions}
			return nil
		}); err != nil {
			return err
		}
		if cfg.Preamble && !migrateNoPreamble {
			in.Preamble = sql.PreambleSQL
		}

		// A dry run without a database still prints the script
		dsn, err := resolveDSN(migrateDB)
		if err != nil && !dryRun {
			return err
		}
		return runMigrate(ctx, dsn, in, dryRun, force)
	},
}

func init() {
	f := migrateCmd.Flags()
	f.StringVar(&migrateDB, "db", "", "database URL")
	f.StringVar(&migrateSchema, "schema", "", "path to schema JSON file (default: config or remembered schema)")
	f.StringVar(&migrateConditions, "conditions", "", "path to drafted conditions SQL")
	f.BoolVar(&migrateDryRun, "dry-run", false, "output migration SQL without applying")
	f.BoolVar(&migrateForce, "force", false, "force migration even if nothing changed")
	f.BoolVar(&migrateNoPreamble, "no-preamble", false, "do not apply the runtime preamble")
}

func runMigrate(ctx context.Context, dsn string, in migrator.Input, dryRun, force bool) error {
	opts := migrator.MigrateOptions{Force: force}

	var m *migrator.Migrator
	if dsn != "" {
		db, err := openDB(ctx, dsn)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		m = migrator.NewMigrator(db)
	} else {
		m = migrator.NewMigrator(nil)
	}

	if dryRun {
		opts.DryRun = os.Stdout
		logf("-- Dry-run mode: SQL will be output but not applied\n")
	} else {
		logf("Applying row level security policies...")
	}

	skipped, err := m.Migrate(ctx, in, opts)
	if err != nil {
		if errors.Is(err, easyrls.ErrInvalidSchema) {
			return cli.SchemaParseError("schema error", err)
		}
		return cli.GeneralError("migration failed", err)
	}

	if dryRun {
		return nil
	}

	if skipped {
		logf("Policies unchanged, migration skipped.")
		logf("Use --force to re-apply.")
	} else {
		logf("Policies applied successfully.")
	}

	status, err := m.GetStatus(ctx)
	if err == nil && !status.AuthorizeExists {
		logf("")
		logf("WARNING: authorize() does not exist.")
		logf("         Every policy denies access until the preamble is applied.")
	}
	if err == nil && status.LastMigration != nil {
		debugf("%d policies tracked", len(status.LastMigration.PolicyNames))
	}
	return nil
}
