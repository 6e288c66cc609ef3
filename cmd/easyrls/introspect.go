package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/easyrls/internal/cli"
	"github.com/pthm/easyrls/pkg/introspect"
	"github.com/pthm/easyrls/pkg/schema"
	"github.com/pthm/easyrls/pkg/store"
)

var (
	introspectDB         string
	introspectSchemaName string
	introspectOutput     string
	introspectNoSave     bool
)

var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Read the schema document from a database",
	Long: `Read primary keys and single-column foreign keys of one namespace from the
PostgreSQL catalog and print them as a schema document.

The result is validated and remembered so later commands can use it.`,
	Example: `  # Introspect the public schema
  easyrls introspect --db postgres://localhost/mydb

  # Introspect another namespace into a file
  easyrls introspect --schema-name app -o easyrls.schema.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(introspectDB)
		if err != nil {
			return err
		}
		schemaName := resolveString(introspectSchemaName, cfg.Introspect.SchemaName, introspect.DefaultSchemaName)
		ctx := context.Background()

		conn, err := introspect.Connect(ctx, dsn)
		if err != nil {
			return cli.DBConnectError("connecting to database", err)
		}
		defer func() { _ = conn.Close(ctx) }()

		s, err := introspect.Introspect(ctx, conn, schemaName)
		if err != nil {
			return cli.GeneralError("introspecting database", err)
		}
		debugf("Found %d primary keys and %d relations in %s", len(s.PrimaryKeys), len(s.Relations), schemaName)

		data, err := s.Marshal()
		if err != nil {
			return cli.GeneralError("encoding schema", err)
		}
		if introspectOutput == "" || introspectOutput == "-" {
			fmt.Println(string(data))
		} else {
			if err := os.WriteFile(introspectOutput, append(data, '\n'), 0o644); err != nil {
				return cli.GeneralError("writing output", err)
			}
			logf("Wrote %s", introspectOutput)
		}

		if introspectNoSave {
			return nil
		}
		if err := schema.CheckSchema(s); err != nil {
			return cli.SchemaParseError(fmt.Sprintf("introspected schema %s was not saved", schemaName), err)
		}
		return withStore(ctx, func(st store.Store) error {
			return saveSchema(ctx, st, s)
		})
	},
}

func init() {
	f := introspectCmd.Flags()
	f.StringVar(&introspectDB, "db", "", "database URL")
	f.StringVar(&introspectSchemaName, "schema-name", "", "namespace to introspect (default: public)")
	f.StringVarP(&introspectOutput, "output", "o", "", "write to file instead of stdout")
	f.BoolVar(&introspectNoSave, "no-save", false, "do not remember the schema")
}
