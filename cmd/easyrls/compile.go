package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/easyrls/internal/cli"
	"github.com/pthm/easyrls/pkg/compiler"
	"github.com/pthm/easyrls/pkg/store"
	"github.com/pthm/easyrls/sql"
)

var (
	compileSchema     string
	compileConditions string
	compileOutput     string
	compileScript     bool
	compileNoPreamble bool
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile the schema to row level security policies",
	Long: `Compile the schema to CREATE POLICY statements: SELECT, INSERT, UPDATE and
DELETE for every table with a primary key.

With --script the output is the full installation script: the runtime
preamble, the drafted conditions, then the policies.`,
	Example: `  # Print policies for the remembered schema
  easyrls compile

  # Write the full script with drafted conditions
  easyrls compile --script --conditions conditions.sql -o rls.sql`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		return withStore(ctx, func(st store.Store) error {
			s, err := loadSchema(ctx, st, compileSchema)
			if err != nil {
				return err
			}

			var out string
			if compileScript {
				conditions, err := loadConditions(ctx, st, compileConditions)
				if err != nil {
					return err
				}
				opts := compiler.ScriptOptions{Schema: s, Conditions: conditions}
				if cfg.Preamble && !compileNoPreamble {
					opts.Preamble = sql.PreambleSQL
				}
				out, err = compiler.Script(opts)
				if err != nil {
					return cli.SchemaParseError("compiling schema", err)
				}
			} else {
				out, err = compiler.Compile(s)
				if err != nil {
					return cli.SchemaParseError("compiling schema", err)
				}
			}

			if compileOutput == "" || compileOutput == "-" {
				fmt.Print(out)
				return nil
			}
			if err := os.WriteFile(compileOutput, []byte(out), 0o644); err != nil {
				return cli.GeneralError("writing output", err)
			}
			logf("Wrote %s", compileOutput)
			return nil
		})
	},
}

func init() {
	f := compileCmd.Flags()
	f.StringVar(&compileSchema, "schema", "", "path to schema JSON file (default: config or remembered schema)")
	f.StringVar(&compileConditions, "conditions", "", "path to drafted conditions SQL (used with --script)")
	f.StringVarP(&compileOutput, "output", "o", "", "write to file instead of stdout")
	f.BoolVar(&compileScript, "script", false, "emit the full script: preamble, conditions and policies")
	f.BoolVar(&compileNoPreamble, "no-preamble", false, "omit the runtime preamble from --script output")
}
