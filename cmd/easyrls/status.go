package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/easyrls/internal/cli"
	"github.com/pthm/easyrls/pkg/migrator"
)

var statusDB string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current migration status",
	Long:  `Show whether the runtime preamble is installed and what the last migration applied.`,
	Example: `  # Check status
  easyrls status --db postgres://localhost/mydb`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(statusDB)
		if err != nil {
			return err
		}
		return runStatus(dsn)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusDB, "db", "", "database URL")
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "missing"
}

func runStatus(dsn string) error {
	ctx := context.Background()
	db, err := openDB(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	s, err := migrator.NewMigrator(db).GetStatus(ctx)
	if err != nil {
		return cli.GeneralError("getting status", err)
	}

	table := newTable(os.Stdout, "Component", "State")
	table.Append([]string{"role_permissions", presence(s.RolePermissionsExists)})
	table.Append([]string{"authorize()", presence(s.AuthorizeExists)})
	if s.LastMigration != nil {
		table.Append([]string{"last migration", s.LastMigration.SchemaChecksum[:min(16, len(s.LastMigration.SchemaChecksum))]})
		table.Append([]string{"codegen version", s.LastMigration.CodegenVersion})
		table.Append([]string{"policies", fmt.Sprintf("%d", len(s.LastMigration.PolicyNames))})
	} else {
		table.Append([]string{"last migration", "none"})
	}
	table.Render()

	switch {
	case !s.RolePermissionsExists || !s.AuthorizeExists:
		fmt.Println("\nRuntime preamble not installed.")
		fmt.Println("Run 'easyrls migrate' to install it.")
	case s.LastMigration == nil:
		fmt.Println("\nNo policies applied yet.")
	case s.LastMigration.CodegenVersion != migrator.CodegenVersion:
		fmt.Printf("\nPolicies were generated by codegen version %s (current %s).\n", s.LastMigration.CodegenVersion, migrator.CodegenVersion)
		fmt.Println("Run 'easyrls migrate' to regenerate them.")
	}
	return nil
}
