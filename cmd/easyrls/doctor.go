package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/easyrls/internal/cli"
	"github.com/pthm/easyrls/internal/doctor"
	"github.com/pthm/easyrls/pkg/store"
	embedded "github.com/pthm/easyrls/sql"
)

var (
	doctorDB      string
	doctorSchema  string
	doctorRoles   string
	doctorOffline bool
	doctorVerbose bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long:  `Run health checks on the schema, the roles document and the installed policies.`,
	Example: `  # Run health checks
  easyrls doctor --db postgres://localhost/mydb

  # Check documents only
  easyrls doctor --offline

  # Run with verbose output
  easyrls doctor --db postgres://localhost/mydb --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verboseFlag := resolveBool(doctorVerbose, cfg.Doctor.Verbose, verbose > 0)

		ctx := context.Background()
		var in doctor.Input
		if err := withStore(ctx, func(st store.Store) error {
			// The doctor reports an invalid schema instead of failing on it
			text, _, _, err := readDocument(ctx, st, store.KeySchema, doctorSchema, cfg.Schema)
			if err != nil {
				return cli.SchemaParseError("loading schema", err)
			}
			in.Schema = text

			doc, err := loadRoles(ctx, st, doctorRoles)
			if err != nil {
				return err
			}
			if len(doc) > 0 {
				data, err := doc.Marshal()
				if err != nil {
					return cli.GeneralError("encoding roles", err)
				}
				in.Roles = string(data)
			}

			in.Conditions, err = loadConditions(ctx, st, "")
			return err
		}); err != nil {
			return err
		}
		if cfg.Preamble {
			in.Preamble = embedded.PreambleSQL
		}

		var db *sql.DB
		if !doctorOffline {
			dsn, err := resolveDSN(doctorDB)
			if err != nil {
				return err
			}
			db, err = openDB(ctx, dsn)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
		}

		return runDoctor(ctx, db, in, verboseFlag)
	},
}

func init() {
	f := doctorCmd.Flags()
	f.StringVar(&doctorDB, "db", "", "database URL")
	f.StringVar(&doctorSchema, "schema", "", "path to schema JSON file (default: config or remembered schema)")
	f.StringVar(&doctorRoles, "roles", "", "path to roles JSON file (default: config or remembered roles)")
	f.BoolVar(&doctorOffline, "offline", false, "skip database checks")
	f.BoolVar(&doctorVerbose, "details", false, "show detailed output")
}

func runDoctor(ctx context.Context, db *sql.DB, in doctor.Input, verboseFlag bool) error {
	if !quiet {
		fmt.Println("easyrls doctor - Health Check")
	}

	report, err := doctor.New(db, in).Run(ctx)
	if err != nil {
		return cli.GeneralError("running doctor", err)
	}

	report.Print(os.Stdout, verboseFlag)

	if report.HasErrors() {
		return cli.GeneralError("health checks failed", nil)
	}
	return nil
}
