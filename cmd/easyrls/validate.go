package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/easyrls/internal/cli"
	"github.com/pthm/easyrls/pkg/schema"
	"github.com/pthm/easyrls/pkg/store"
)

var (
	validateSchema string
	validateNoSave bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a schema document",
	Long: `Validate a schema document against the primary key and relation grammar.

A valid schema is remembered so later commands can run without --schema.`,
	Example: `  # Validate a specific schema file
  easyrls validate --schema easyrls.schema.json

  # Validate from stdin
  cat schema.json | easyrls validate --schema -

  # Validate using config file settings
  easyrls validate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaPath := resolveString(validateSchema, cfg.Schema)

		text, err := readInput(schemaPath)
		if err != nil {
			if isNotExist(err) {
				return cli.SchemaParseError(fmt.Sprintf("schema not found: %s", schemaPath), nil)
			}
			return cli.SchemaParseError("reading schema", err)
		}

		s, err := schema.ValidateSchema(text)
		if err != nil {
			return cli.SchemaParseError("invalid schema", err)
		}

		if !validateNoSave {
			ctx := context.Background()
			if err := withStore(ctx, func(st store.Store) error {
				return saveSchema(ctx, st, s)
			}); err != nil {
				return err
			}
			debugf("Schema saved to %s store at %s", cfg.Store.Driver, cfg.Store.Path)
		}

		if !quiet {
			tables := schema.TableNames(s)
			fmt.Printf("Schema is valid. Found %d tables and %d relations:\n", tables.Len(), len(s.Relations))
			for _, t := range tables.Names() {
				fmt.Printf("  - %s\n", t)
			}
		}
		return nil
	},
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateSchema, "schema", "", "path to schema JSON file (- for stdin)")
	f.BoolVar(&validateNoSave, "no-save", false, "do not remember the schema")
}
