// Package doctor provides health checks for easyrls row level security.
//
// The doctor command validates that policies can be generated and are
// installed by checking the schema document, the roles document, the runtime
// preamble objects, and the policies present in the database.
//
// Example usage:
//
//	d := doctor.New(db, doctor.Input{Schema: schemaJSON, Roles: rolesJSON})
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pthm/easyrls/internal/sqlgen/sqldsl"
	"github.com/pthm/easyrls/internal/strset"
	"github.com/pthm/easyrls/pkg/compiler"
	"github.com/pthm/easyrls/pkg/migrator"
	"github.com/pthm/easyrls/pkg/roles"
	"github.com/pthm/easyrls/pkg/schema"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// Check categories, in report order.
const (
	CategorySchema    = "Schema"
	CategoryRoles     = "Roles"
	CategoryRuntime   = "Runtime"
	CategoryMigration = "Migration State"
	CategoryRLS       = "Row Level Security"
	CategoryPolicies  = "Policies"
)

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Schema", "Policies").
	Category string

	// Name is a short identifier for the check.
	Name string

	// Status is the check outcome.
	Status Status

	// Message is a human-readable description of the result.
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	// Summary counts.
	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Find returns the first check with category and name.
func (r *Report) Find(category, name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Category == category && c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Print writes the report to the given writer.
func (r *Report) Print(w io.Writer, verbose bool) {
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Input holds the documents under inspection.
type Input struct {
	// Schema is the schema JSON text.
	Schema string
	// Roles is the roles JSON text. Empty skips the roles checks.
	Roles string
	// Preamble and Conditions are what a migration would apply; they feed
	// the checksum comparison.
	Preamble   string
	Conditions string
}

// Doctor performs health checks on easyrls row level security.
type Doctor struct {
	db    *sql.DB
	input Input

	// Cached data from checks (populated during Run)
	schema   *schema.Schema
	policies []compiler.Policy
}

// New creates a new Doctor instance. A nil db runs the document checks only.
func New(db *sql.DB, input Input) *Doctor {
	return &Doctor{db: db, input: input}
}

// Run executes all health checks and returns a report.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	d.checkSchema(report)
	d.checkRoles(report)

	if d.db == nil {
		return report, nil
	}
	if err := d.checkRuntime(ctx, report); err != nil {
		return nil, fmt.Errorf("checking runtime: %w", err)
	}
	if err := d.checkMigrationState(ctx, report); err != nil {
		return nil, fmt.Errorf("checking migration state: %w", err)
	}
	if err := d.checkRowLevelSecurity(ctx, report); err != nil {
		return nil, fmt.Errorf("checking row level security: %w", err)
	}
	if err := d.checkPolicies(ctx, report); err != nil {
		return nil, fmt.Errorf("checking policies: %w", err)
	}
	return report, nil
}

// checkSchema validates and compiles the schema document.
func (d *Doctor) checkSchema(report *Report) {
	s, err := schema.ValidateSchema(d.input.Schema)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: CategorySchema,
			Name:     "valid",
			Status:   StatusFail,
			Message:  "Schema document is invalid",
			Details:  err.Error(),
			FixHint:  "Run 'easyrls validate' to see the failing entry",
		})
		return
	}
	report.AddCheck(CheckResult{
		Category: CategorySchema,
		Name:     "valid",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Schema is valid (%d primary keys, %d relations)", len(s.PrimaryKeys), len(s.Relations)),
	})

	policies, err := compiler.CompilePolicies(s)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: CategorySchema,
			Name:     "compiles",
			Status:   StatusFail,
			Message:  "Schema does not compile",
			Details:  err.Error(),
			FixHint:  "Every primary key column needs a ::type annotation",
		})
		return
	}
	d.schema = &s
	d.policies = policies
	report.AddCheck(CheckResult{
		Category: CategorySchema,
		Name:     "compiles",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Schema compiles to %d policies", len(policies)),
	})

	if dups := schema.DuplicateTables(s); len(dups) > 0 {
		report.AddCheck(CheckResult{
			Category: CategorySchema,
			Name:     "duplicates",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%d tables declare more than one primary key", len(dups)),
			Details:  strings.Join(dups, "\n"),
			FixHint:  "Remove the extra entries; each one generates a second set of policies",
		})
	} else {
		report.AddCheck(CheckResult{
			Category: CategorySchema,
			Name:     "duplicates",
			Status:   StatusPass,
			Message:  "Each table declares one primary key",
		})
	}

	dangling, err := schema.DanglingRelations(s)
	switch {
	case err != nil:
		report.AddCheck(CheckResult{
			Category: CategorySchema,
			Name:     "dangling",
			Status:   StatusFail,
			Message:  "Relations could not be parsed",
			Details:  err.Error(),
		})
	case len(dangling) > 0:
		details := make([]string, len(dangling))
		for i, r := range dangling {
			details[i] = r.String()
		}
		report.AddCheck(CheckResult{
			Category: CategorySchema,
			Name:     "dangling",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%d relations belong to tables without a primary key", len(dangling)),
			Details:  strings.Join(details, "\n"),
			FixHint:  "Add primary keys for these tables or they receive no policies",
		})
	default:
		report.AddCheck(CheckResult{
			Category: CategorySchema,
			Name:     "dangling",
			Status:   StatusPass,
			Message:  "Every relation belongs to a table with a primary key",
		})
	}
}

// checkRoles validates the roles document against the schema tables.
func (d *Doctor) checkRoles(report *Report) {
	if strings.TrimSpace(d.input.Roles) == "" {
		report.AddCheck(CheckResult{
			Category: CategoryRoles,
			Name:     "present",
			Status:   StatusWarn,
			Message:  "No roles document",
			FixHint:  "Run 'easyrls roles add <name>' to define roles",
		})
		return
	}

	doc, err := roles.Parse(d.input.Roles)
	if err == nil {
		err = doc.Validate()
	}
	if err != nil {
		report.AddCheck(CheckResult{
			Category: CategoryRoles,
			Name:     "valid",
			Status:   StatusFail,
			Message:  "Roles document is invalid",
			Details:  err.Error(),
		})
		return
	}
	report.AddCheck(CheckResult{
		Category: CategoryRoles,
		Name:     "valid",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Roles document is valid (%d roles)", len(doc.Roles())),
	})

	if d.schema == nil {
		return
	}
	if unknown := doc.UnknownResources(schema.TableNames(*d.schema)); len(unknown) > 0 {
		report.AddCheck(CheckResult{
			Category: CategoryRoles,
			Name:     "resources",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%d resources are not tables in the schema", len(unknown)),
			Details:  strings.Join(unknown, "\n"),
			FixHint:  "Run 'easyrls delete-table' so roles follow the schema",
		})
		return
	}
	report.AddCheck(CheckResult{
		Category: CategoryRoles,
		Name:     "resources",
		Status:   StatusPass,
		Message:  "Every role resource is a schema table",
	})
}

// checkRuntime validates that the preamble objects exist.
func (d *Doctor) checkRuntime(ctx context.Context, report *Report) error {
	status, err := migrator.NewMigrator(d.db).GetStatus(ctx)
	if err != nil {
		return err
	}

	if status.RolePermissionsExists {
		report.AddCheck(CheckResult{
			Category: CategoryRuntime,
			Name:     "role_permissions",
			Status:   StatusPass,
			Message:  "role_permissions table exists",
		})
	} else {
		report.AddCheck(CheckResult{
			Category: CategoryRuntime,
			Name:     "role_permissions",
			Status:   StatusFail,
			Message:  "role_permissions table does not exist",
			FixHint:  "Run 'easyrls migrate' with the preamble enabled",
		})
	}

	if status.AuthorizeExists {
		report.AddCheck(CheckResult{
			Category: CategoryRuntime,
			Name:     "authorize",
			Status:   StatusPass,
			Message:  "authorize() function exists",
		})
	} else {
		report.AddCheck(CheckResult{
			Category: CategoryRuntime,
			Name:     "authorize",
			Status:   StatusFail,
			Message:  "authorize() function does not exist",
			Details:  "Every generated policy calls authorize()",
			FixHint:  "Run 'easyrls migrate' with the preamble enabled",
		})
	}
	return nil
}

// checkMigrationState compares the last migration with the current documents.
func (d *Doctor) checkMigrationState(ctx context.Context, report *Report) error {
	last, err := migrator.NewMigrator(d.db).GetLastMigration(ctx)
	if err != nil {
		return err
	}
	if last == nil {
		report.AddCheck(CheckResult{
			Category: CategoryMigration,
			Name:     "migrated",
			Status:   StatusWarn,
			Message:  "No migration records found",
			FixHint:  "Run 'easyrls migrate' to apply the policies",
		})
		return nil
	}
	report.AddCheck(CheckResult{
		Category: CategoryMigration,
		Name:     "migrated",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Policies migrated (%d policies tracked)", len(last.PolicyNames)),
	})

	if d.schema == nil {
		return nil
	}
	checksum, err := migrator.Checksum(migrator.Input{
		Schema:     *d.schema,
		Preamble:   d.input.Preamble,
		Conditions: d.input.Conditions,
	})
	if err != nil {
		return err
	}
	switch {
	case checksum != last.SchemaChecksum:
		report.AddCheck(CheckResult{
			Category: CategoryMigration,
			Name:     "sync",
			Status:   StatusWarn,
			Message:  "Documents have changed since last migration",
			Details:  fmt.Sprintf("Current checksum: %s\nDB checksum:      %s", shortChecksum(checksum), shortChecksum(last.SchemaChecksum)),
			FixHint:  "Run 'easyrls migrate' to apply changes",
		})
	case last.CodegenVersion != migrator.CodegenVersion:
		report.AddCheck(CheckResult{
			Category: CategoryMigration,
			Name:     "sync",
			Status:   StatusWarn,
			Message:  "Codegen version has changed",
			Details:  fmt.Sprintf("Current: %s, DB: %s", migrator.CodegenVersion, last.CodegenVersion),
			FixHint:  "Run 'easyrls migrate' to regenerate policies",
		})
	default:
		report.AddCheck(CheckResult{
			Category: CategoryMigration,
			Name:     "sync",
			Status:   StatusPass,
			Message:  "Documents are in sync with database",
		})
	}
	return nil
}

func shortChecksum(sum string) string {
	if len(sum) > 16 {
		return sum[:16] + "..."
	}
	return sum
}

// checkRowLevelSecurity verifies that RLS is enabled on every policy table.
func (d *Doctor) checkRowLevelSecurity(ctx context.Context, report *Report) error {
	if d.policies == nil {
		return nil
	}

	var missing, disabled []string
	tables := compiler.PolicyTables(d.policies)
	for _, table := range tables {
		var exists, enabled bool
		err := d.db.QueryRowContext(ctx, `
			SELECT c.oid IS NOT NULL, COALESCE(c.relrowsecurity, false)
			FROM (SELECT to_regclass($1) AS oid) r
			LEFT JOIN pg_class c ON c.oid = r.oid
		`, table).Scan(&exists, &enabled)
		if err != nil {
			return fmt.Errorf("checking %s: %w", table, err)
		}
		switch {
		case !exists:
			missing = append(missing, table)
		case !enabled:
			disabled = append(disabled, table)
		}
	}

	if len(missing) > 0 {
		report.AddCheck(CheckResult{
			Category: CategoryRLS,
			Name:     "tables",
			Status:   StatusFail,
			Message:  fmt.Sprintf("%d tables do not exist", len(missing)),
			Details:  strings.Join(missing, "\n"),
			FixHint:  "Run 'easyrls introspect' to refresh the schema from the database",
		})
	}
	if len(disabled) > 0 {
		report.AddCheck(CheckResult{
			Category: CategoryRLS,
			Name:     "enabled",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Row level security is disabled on %d tables", len(disabled)),
			Details:  strings.Join(disabled, "\n"),
			FixHint:  "Run 'easyrls migrate --force'",
		})
	}
	if len(missing) == 0 && len(disabled) == 0 {
		report.AddCheck(CheckResult{
			Category: CategoryRLS,
			Name:     "enabled",
			Status:   StatusPass,
			Message:  fmt.Sprintf("Row level security is enabled on all %d tables", len(tables)),
		})
	}
	return nil
}

// checkPolicies verifies every generated policy is installed.
func (d *Doctor) checkPolicies(ctx context.Context, report *Report) error {
	if d.policies == nil {
		return nil
	}

	installed, err := d.installedPolicies(ctx)
	if err != nil {
		return err
	}

	missing, total := missingPolicies(d.policies, installed)

	if len(missing) > 0 {
		report.AddCheck(CheckResult{
			Category: CategoryPolicies,
			Name:     "installed",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Missing %d of %d policies", len(missing), total),
			Details:  strings.Join(missing, "\n"),
			FixHint:  "Run 'easyrls migrate --force'",
		})
		return nil
	}
	report.AddCheck(CheckResult{
		Category: CategoryPolicies,
		Name:     "installed",
		Status:   StatusPass,
		Message:  fmt.Sprintf("All %d policies are installed", total),
	})
	return nil
}

// missingPolicies returns the refs of policies absent from installed, sorted,
// and the number of distinct policies checked. pg_policies holds unquoted
// table names folded to lower case; policy names are quoted and keep their
// case.
func missingPolicies(policies []compiler.Policy, installed strset.Set) (missing []string, total int) {
	expected := strset.New()
	for _, p := range policies {
		ref := migrator.PolicyRef(p.Table, p.Name)
		if !expected.Add(ref) {
			continue
		}
		if !installed.Has(migrator.PolicyRef(sqldsl.FoldIdent(p.Table), p.Name)) {
			missing = append(missing, ref)
		}
	}
	sort.Strings(missing)
	return missing, expected.Len()
}

// installedPolicies returns every policy visible in pg_policies as
// <table>.<policy>.
func (d *Doctor) installedPolicies(ctx context.Context) (strset.Set, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT tablename, policyname FROM pg_policies`)
	if err != nil {
		return strset.Set{}, fmt.Errorf("querying pg_policies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var refs []string
	for rows.Next() {
		var table, name string
		if err := rows.Scan(&table, &name); err != nil {
			return strset.Set{}, fmt.Errorf("scanning policy: %w", err)
		}
		refs = append(refs, migrator.PolicyRef(table, name))
	}
	return strset.New(refs...), rows.Err()
}
