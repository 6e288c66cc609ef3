package migrator

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/pthm/easyrls/internal/sqlgen/sqldsl"
	"github.com/pthm/easyrls/internal/strset"
	"github.com/pthm/easyrls/pkg/compiler"
	"github.com/pthm/easyrls/pkg/schema"
)

// CodegenVersion is incremented when policy templates or the preamble change.
// This ensures migrations re-run even if the script checksum matches.
const CodegenVersion = "1"

// MigrateOptions controls migration behavior.
type MigrateOptions struct {
	// DryRun outputs SQL to the provided writer without applying changes to the database.
	// If nil, migration proceeds normally.
	DryRun io.Writer

	// Force re-runs migration even if the script and codegen version are unchanged.
	Force bool
}

// Input is everything a migration applies.
type Input struct {
	Schema schema.Schema
	// Preamble is applied first when non-empty. Usually sql.PreambleSQL.
	Preamble string
	// Conditions holds drafted role_permissions inserts. Markdown fences are
	// stripped.
	Conditions string
}

// MigrationRecord represents a row in the easyrls_migrations table.
type MigrationRecord struct {
	SchemaChecksum string
	CodegenVersion string
	PolicyNames    []string
}

// Migrator applies generated row-level security policies to PostgreSQL.
// The migrator is idempotent - safe to run on every deploy.
//
// The migration process:
//  1. Applies the preamble (role_permissions, user_roles, authorize)
//  2. Applies drafted conditions
//  3. Enables row level security on every table with a primary key
//  4. Drops and recreates each generated policy
//  5. Drops policies recorded by the previous migration that are gone
//  6. Records the migration
type Migrator struct {
	db Execer
}

// NewMigrator creates a new migrator.
// The Execer is typically *sql.DB but can be *sql.Tx for testing. A nil
// Execer is accepted for dry runs.
func NewMigrator(db Execer) *Migrator {
	return &Migrator{db: db}
}

// plan is the compiled form of an Input.
type plan struct {
	checksum   string
	preamble   string
	conditions string
	tables     []string
	policies   []compiler.Policy
	names      []string
}

func buildPlan(in Input) (*plan, error) {
	policies, err := compiler.CompilePolicies(in.Schema)
	if err != nil {
		return nil, fmt.Errorf("compiling policies: %w", err)
	}
	script, err := compiler.Script(compiler.ScriptOptions{
		Schema:     in.Schema,
		Preamble:   in.Preamble,
		Conditions: in.Conditions,
	})
	if err != nil {
		return nil, fmt.Errorf("assembling script: %w", err)
	}

	refs := make([]string, len(policies))
	for i, p := range policies {
		refs[i] = PolicyRef(p.Table, p.Name)
	}
	return &plan{
		checksum:   ComputeSchemaChecksum(script),
		preamble:   strings.TrimSpace(in.Preamble),
		conditions: strings.TrimSpace(compiler.StripFences(in.Conditions)),
		tables:     compiler.PolicyTables(policies),
		policies:   policies,
		names:      strset.New(refs...).Items(),
	}, nil
}

// Checksum returns the checksum a migration of in would record.
func Checksum(in Input) (string, error) {
	p, err := buildPlan(in)
	if err != nil {
		return "", err
	}
	return p.checksum, nil
}

// PolicyRef is how a policy is recorded in easyrls_migrations: <table>.<policy>.
func PolicyRef(table, policy string) string {
	return table + "." + policy
}

// SplitPolicyRef reverses PolicyRef.
func SplitPolicyRef(ref string) (table, policy string, ok bool) {
	return strings.Cut(ref, ".")
}

// orphans returns the refs in previous that are not in expected, sorted.
func orphans(previous, expected []string) []string {
	keep := strset.New(expected...)
	var out []string
	for _, ref := range previous {
		if !keep.Has(ref) {
			out = append(out, ref)
		}
	}
	sort.Strings(out)
	return out
}

// Migrate applies in, skipping when the last migration recorded the same
// checksum and codegen version (unless forced or dry-running).
//
// Uses a transaction if the db supports it (*sql.DB). This ensures
// policies are updated atomically or not at all.
func (m *Migrator) Migrate(ctx context.Context, in Input, opts MigrateOptions) (skipped bool, err error) {
	p, err := buildPlan(in)
	if err != nil {
		return false, err
	}

	if opts.DryRun != nil {
		var previous *MigrationRecord
		if m.db != nil {
			if previous, err = m.getLastMigration(ctx, m.db); err != nil {
				return false, fmt.Errorf("checking last migration: %w", err)
			}
		}
		m.outputDryRun(opts.DryRun, p, previous)
		return false, nil
	}
	if m.db == nil {
		return false, errors.New("migrator: no database")
	}

	if !opts.Force {
		lastMigration, err := m.getLastMigration(ctx, m.db)
		if err != nil {
			return false, fmt.Errorf("checking last migration: %w", err)
		}
		if shouldSkipMigration(lastMigration, p.checksum) {
			return true, nil
		}
	}

	if txer, ok := m.db.(interface {
		BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	}); ok {
		tx, err := txer.BeginTx(ctx, nil)
		if err != nil {
			return false, fmt.Errorf("starting transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := m.apply(ctx, tx, p); err != nil {
			return false, err
		}
		return false, tx.Commit()
	}

	// Fall back to non-transactional (for *sql.Conn)
	return false, m.apply(ctx, m.db, p)
}

func (m *Migrator) apply(ctx context.Context, db Execer, p *plan) error {
	if err := m.applyMigrationsDDL(ctx, db); err != nil {
		return err
	}

	// Read the previous record before writing a new one
	previous, err := m.getLastMigration(ctx, db)
	if err != nil {
		return fmt.Errorf("checking last migration: %w", err)
	}

	if p.preamble != "" {
		if _, err := db.ExecContext(ctx, p.preamble); err != nil {
			return fmt.Errorf("applying preamble: %w", err)
		}
	}
	if p.conditions != "" {
		if _, err := db.ExecContext(ctx, p.conditions); err != nil {
			return fmt.Errorf("applying conditions: %w", err)
		}
	}
	if err := m.applyPolicies(ctx, db, p); err != nil {
		return err
	}

	if previous != nil {
		if err := m.dropOrphanedPolicies(ctx, db, orphans(previous.PolicyNames, p.names)); err != nil {
			return err
		}
	}
	return m.insertMigrationRecord(ctx, db, p.checksum, p.names)
}

// applyPolicies enables row level security and recreates every policy.
func (m *Migrator) applyPolicies(ctx context.Context, db Execer, p *plan) error {
	for _, table := range p.tables {
		if _, err := db.ExecContext(ctx, sqldsl.EnableRLS{Table: table}.SQL()); err != nil {
			return fmt.Errorf("enabling row level security on %s: %w", table, err)
		}
	}
	for _, pol := range p.policies {
		drop := sqldsl.DropPolicy{Name: pol.Name, Table: pol.Table}.SQL()
		if _, err := db.ExecContext(ctx, drop); err != nil {
			return fmt.Errorf("dropping policy %s: %w", pol.Name, err)
		}
		if _, err := db.ExecContext(ctx, pol.SQL); err != nil {
			return fmt.Errorf("creating policy %s: %w", pol.Name, err)
		}
	}
	return nil
}

// dropOrphanedPolicies drops recorded policies that are no longer generated.
func (m *Migrator) dropOrphanedPolicies(ctx context.Context, db Execer, refs []string) error {
	for _, ref := range refs {
		table, name, ok := SplitPolicyRef(ref)
		if !ok {
			continue
		}
		// The table may have been dropped along with its policies
		var exists bool
		if err := db.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists); err != nil {
			return fmt.Errorf("checking table %s: %w", table, err)
		}
		if !exists {
			continue
		}
		if _, err := db.ExecContext(ctx, sqldsl.DropPolicy{Name: name, Table: table}.SQL()); err != nil {
			return fmt.Errorf("dropping orphaned policy %s: %w", name, err)
		}
	}
	return nil
}

// Status represents the current migration state.
// Use GetStatus to check if the authorization runtime is installed.
type Status struct {
	// RolePermissionsExists indicates if the role_permissions table exists.
	RolePermissionsExists bool

	// AuthorizeExists indicates if the authorize() function exists.
	AuthorizeExists bool

	// LastMigration is the most recent migration record, or nil.
	LastMigration *MigrationRecord
}

// GetStatus returns the current migration status.
// Useful for health checks or migration diagnostics.
func (m *Migrator) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{}

	err := m.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_class c
			JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE c.relname = 'role_permissions'
			AND n.nspname = current_schema()
			AND c.relkind IN ('r', 'p')
		)
	`).Scan(&status.RolePermissionsExists)
	if err != nil {
		return nil, fmt.Errorf("checking role_permissions: %w", err)
	}

	err = m.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_proc p
			JOIN pg_namespace n ON p.pronamespace = n.oid
			WHERE p.proname = 'authorize'
			AND n.nspname = current_schema()
		)
	`).Scan(&status.AuthorizeExists)
	if err != nil {
		return nil, fmt.Errorf("checking authorize: %w", err)
	}

	status.LastMigration, err = m.getLastMigration(ctx, m.db)
	if err != nil {
		return nil, err
	}
	return status, nil
}

// ComputeSchemaChecksum returns a SHA256 hash of the script content.
// Used to detect changes for skip-if-unchanged optimization.
func ComputeSchemaChecksum(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// GetLastMigration returns the most recent migration record, or nil if none exists.
func (m *Migrator) GetLastMigration(ctx context.Context) (*MigrationRecord, error) {
	return m.getLastMigration(ctx, m.db)
}

func (m *Migrator) getLastMigration(ctx context.Context, db Execer) (*MigrationRecord, error) {
	// First check if the migrations table exists
	var tableExists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_class c
			JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE c.relname = 'easyrls_migrations'
			AND n.nspname = current_schema()
		)
	`).Scan(&tableExists)
	if err != nil {
		return nil, fmt.Errorf("checking easyrls_migrations table: %w", err)
	}
	if !tableExists {
		return nil, nil
	}

	var rec MigrationRecord
	err = db.QueryRowContext(ctx, `
		SELECT schema_checksum, codegen_version, policy_names
		FROM easyrls_migrations
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&rec.SchemaChecksum, &rec.CodegenVersion, pq.Array(&rec.PolicyNames))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last migration: %w", err)
	}
	return &rec, nil
}

// shouldSkipMigration returns true if the checksum and codegen version are unchanged.
func shouldSkipMigration(lastMigration *MigrationRecord, checksum string) bool {
	if lastMigration == nil {
		return false
	}
	return lastMigration.SchemaChecksum == checksum &&
		lastMigration.CodegenVersion == CodegenVersion
}

func (m *Migrator) applyMigrationsDDL(ctx context.Context, db Execer) error {
	if _, err := db.ExecContext(ctx, migrationsDDL); err != nil {
		return fmt.Errorf("applying migrations DDL: %w", err)
	}
	return nil
}

func (m *Migrator) insertMigrationRecord(ctx context.Context, db Execer, checksum string, policyNames []string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO easyrls_migrations (schema_checksum, codegen_version, policy_names)
		VALUES ($1, $2, $3)
	`, checksum, CodegenVersion, pq.Array(policyNames))
	if err != nil {
		return fmt.Errorf("inserting migration record: %w", err)
	}
	return nil
}

// outputDryRun writes the migration SQL to w. Orphans are only listed when a
// previous record is known.
func (m *Migrator) outputDryRun(w io.Writer, p *plan, previous *MigrationRecord) {
	_, _ = fmt.Fprintf(w, "-- easyrls Migration (dry-run)\n")
	_, _ = fmt.Fprintf(w, "-- Schema checksum: %s\n", p.checksum)
	_, _ = fmt.Fprintf(w, "-- Codegen version: %s\n", CodegenVersion)
	_, _ = fmt.Fprintf(w, "\n")

	_, _ = fmt.Fprintf(w, "%s\n\n", sqldsl.Banner("DDL: Migration Tracking Table"))
	_, _ = fmt.Fprintf(w, "%s\n\n", migrationsDDL)

	if p.preamble != "" {
		_, _ = fmt.Fprintf(w, "%s\n\n", sqldsl.Banner("Preamble"))
		_, _ = fmt.Fprintf(w, "%s\n\n", p.preamble)
	}
	if p.conditions != "" {
		_, _ = fmt.Fprintf(w, "%s\n\n", sqldsl.Banner("Conditions"))
		_, _ = fmt.Fprintf(w, "%s\n\n", p.conditions)
	}

	_, _ = fmt.Fprintf(w, "%s\n\n", sqldsl.Banner(fmt.Sprintf("Row Level Security (%d tables)", len(p.tables))))
	for _, table := range p.tables {
		_, _ = fmt.Fprintf(w, "%s\n", sqldsl.EnableRLS{Table: table}.SQL())
	}
	_, _ = fmt.Fprintf(w, "\n")

	_, _ = fmt.Fprintf(w, "%s\n\n", sqldsl.Banner(fmt.Sprintf("Policies (%d policies)", len(p.policies))))
	for _, pol := range p.policies {
		_, _ = fmt.Fprintf(w, "%s\n", sqldsl.DropPolicy{Name: pol.Name, Table: pol.Table}.SQL())
		_, _ = fmt.Fprintf(w, "%s\n\n", pol.SQL)
	}

	if previous != nil {
		dropped := orphans(previous.PolicyNames, p.names)
		_, _ = fmt.Fprintf(w, "%s\n\n", sqldsl.Banner(fmt.Sprintf("Orphaned Policies (%d policies)", len(dropped))))
		for _, ref := range dropped {
			if table, name, ok := SplitPolicyRef(ref); ok {
				_, _ = fmt.Fprintf(w, "%s\n", sqldsl.DropPolicy{Name: name, Table: table}.SQL())
			}
		}
		_, _ = fmt.Fprintf(w, "\n")
	}

	_, _ = fmt.Fprintf(w, "%s\n\n", sqldsl.Banner("Migration Record"))

	sorted := make([]string, len(p.names))
	copy(sorted, p.names)
	sort.Strings(sorted)

	quoted := make([]string, len(sorted))
	for i, ref := range sorted {
		quoted[i] = sqldsl.Lit(ref).SQL()
	}
	_, _ = fmt.Fprintf(w, "INSERT INTO easyrls_migrations (schema_checksum, codegen_version, policy_names)\n")
	_, _ = fmt.Fprintf(w, "VALUES ('%s', '%s', ARRAY[%s]::text[]);\n", p.checksum, CodegenVersion, strings.Join(quoted, ", "))
}
