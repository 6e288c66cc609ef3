package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pthm/easyrls/internal/cli"
	"github.com/pthm/easyrls/pkg/schema"
	"github.com/pthm/easyrls/pkg/store"
)

// newTable returns a borderless table writer.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetColumnSeparator(" ")
	table.SetAutoWrapText(false)
	return table
}

var tablesSchema string

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables that receive policies",
	Example: `  # List tables of the remembered schema
  easyrls tables`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		return withStore(ctx, func(st store.Store) error {
			s, err := loadSchema(ctx, st, tablesSchema)
			if err != nil {
				return err
			}
			pks, err := schema.ParsePrimaryKeys(s.PrimaryKeys)
			if err != nil {
				return cli.SchemaParseError("parsing primary keys", err)
			}
			rels, err := schema.ParseRelations(s.Relations)
			if err != nil {
				return cli.SchemaParseError("parsing relations", err)
			}

			if len(pks) == 0 {
				fmt.Println("No tables found.")
				return nil
			}

			table := newTable(os.Stdout, "Table", "Primary Key", "Foreign Keys")
			for _, pk := range pks {
				var fks []string
				for _, r := range schema.RelationsFrom(rels, pk.Table) {
					fks = append(fks, fmt.Sprintf("%s -> %s.%s", r.Column, r.RefTable, r.RefColumn))
				}
				table.Append([]string{pk.QualifiedName(), strings.Join(pk.Columns, ", "), strings.Join(fks, ", ")})
			}
			table.Render()

			if dups := schema.DuplicateTables(s); len(dups) > 0 {
				logf("\nWarning: declared more than once: %s", strings.Join(dups, ", "))
			}
			return nil
		})
	},
}

var (
	deleteTableSchema string
	deleteTableDryRun bool
)

var deleteTableCmd = &cobra.Command{
	Use:   "delete-table <table>",
	Short: "Remove a table from the schema and roles",
	Long: `Remove every primary key of a table from the remembered schema so it no
longer receives policies, and drop its permissions from the roles document.
Relations are left untouched.`,
	Example: `  # Stop generating policies for audit_logs
  easyrls delete-table audit_logs`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table := args[0]
		ctx := context.Background()
		return withStore(ctx, func(st store.Store) error {
			s, err := loadSchema(ctx, st, deleteTableSchema)
			if err != nil {
				return err
			}
			next, err := deleteTable(s, table)
			if err != nil {
				return err
			}
			if deleteTableDryRun {
				data, err := next.Marshal()
				if err != nil {
					return cli.GeneralError("encoding schema", err)
				}
				fmt.Println(string(data))
				return nil
			}
			if err := saveSchema(ctx, st, next); err != nil {
				return err
			}
			if path := schemaSourcePath(deleteTableSchema); path != "" && path != "-" {
				data, err := next.Marshal()
				if err != nil {
					return cli.GeneralError("encoding schema", err)
				}
				if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
					return cli.GeneralError("writing schema", err)
				}
				debugf("Updated %s", path)
			}

			doc, err := loadRoles(ctx, st, "")
			if err != nil {
				return err
			}
			doc.DropResource(table)
			if err := saveRoles(ctx, doc, st, ""); err != nil {
				return err
			}

			logf("Removed %s (%d tables remain)", table, schema.TableNames(next).Len())
			return nil
		})
	},
}

// deleteTable removes table from s. A schema must keep at least one primary
// key, so removing the last table is refused.
func deleteTable(s schema.Schema, table string) (schema.Schema, error) {
	if !schema.TableNames(s).Has(table) {
		return schema.Schema{}, cli.GeneralError(fmt.Sprintf("table %q has no primary key in the schema", table), nil)
	}
	next := schema.DeleteTable(s, table)
	if len(next.PrimaryKeys) == 0 {
		return schema.Schema{}, cli.GeneralError(fmt.Sprintf("cannot delete %q: it is the last table in the schema", table), nil)
	}
	return next, nil
}

func init() {
	tablesCmd.Flags().StringVar(&tablesSchema, "schema", "", "path to schema JSON file (default: config or remembered schema)")

	f := deleteTableCmd.Flags()
	f.StringVar(&deleteTableSchema, "schema", "", "path to schema JSON file (default: config or remembered schema)")
	f.BoolVar(&deleteTableDryRun, "dry-run", false, "print the resulting schema without saving")
}
