package migrator

import (
	"context"
	"fmt"
	"os"

	"github.com/pthm/easyrls/pkg/schema"
	"github.com/pthm/easyrls/sql"
)

// Migrate validates the schema file at schemaPath and applies it to the
// database together with the standard preamble. This is the recommended
// high-level API for most applications.
//
// The function is idempotent - safe to call on every application startup. It
// compiles one policy per table and action, and applies everything atomically
// within a transaction (when db supports BeginTx).
//
// Example usage on application startup:
//
//	if err := migrator.Migrate(ctx, db, "easyrls.schema.json"); err != nil {
//	    log.Fatalf("migration failed: %v", err)
//	}
//
// For embedded schemas (no file I/O), use MigrateFromString.
// For fine-grained control (dry-run, conditions, force), use MigrateWithOptions.
func Migrate(ctx context.Context, db Execer, schemaPath string) error {
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("reading schema file: %w", err)
	}
	return MigrateFromString(ctx, db, string(content))
}

// MigrateFromString validates schema JSON and applies it to the database.
// Useful for testing or when the schema is embedded in the application binary:
//
//	//go:embed easyrls.schema.json
//	var embeddedSchema string
//
//	err := migrator.MigrateFromString(ctx, db, embeddedSchema)
func MigrateFromString(ctx context.Context, db Execer, content string) error {
	s, err := schema.ValidateSchema(content)
	if err != nil {
		return fmt.Errorf("validating schema: %w", err)
	}
	_, err = MigrateWithOptions(ctx, db, Input{Schema: s, Preamble: sql.PreambleSQL}, MigrateOptions{})
	return err
}

// MigrateWithOptions performs migration with control over dry-run and skip behavior.
//
// The skip-if-unchanged optimization compares the script hash and codegen
// version against the last successful migration. If both match and Force is
// false, the migration is skipped (skipped=true).
//
// Example: Generate migration script without applying
//
//	var buf bytes.Buffer
//	_, err := migrator.MigrateWithOptions(ctx, nil, in, migrator.MigrateOptions{
//	    DryRun: &buf,
//	})
//	os.WriteFile("migrations/001_rls.sql", buf.Bytes(), 0644)
func MigrateWithOptions(ctx context.Context, db Execer, in Input, opts MigrateOptions) (skipped bool, err error) {
	return NewMigrator(db).Migrate(ctx, in, opts)
}
