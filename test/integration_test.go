//go:build integration

package test

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/easyrls/pkg/migrator"
	embedded "github.com/pthm/easyrls/sql"
	"github.com/pthm/easyrls/test/testutil"
)

const projectsCondition = `$organization_id = (auth.jwt() ->> 'organization_id')::bigint`

// grantMemberProjects lets member select projects of its own organization and
// lets authenticated read role_permissions, which authorize() needs since it
// runs as the caller.
func grantMemberProjects(t *testing.T, db *sql.DB) {
	t.Helper()
	for _, stmt := range []string{
		`GRANT SELECT ON role_permissions TO authenticated`,
		`CREATE POLICY read_permissions ON role_permissions FOR SELECT TO authenticated USING (true)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	_, err := db.Exec(`
		INSERT INTO role_permissions (role, resource, action, condition, parameter_names)
		VALUES ('member', 'projects', 'select', $1, $2)`,
		projectsCondition, pq.Array([]string{"$organization_id"}))
	require.NoError(t, err)
}

func migrate(t *testing.T, db *sql.DB, in migrator.Input, opts migrator.MigrateOptions) bool {
	t.Helper()
	skipped, err := migrator.MigrateWithOptions(context.Background(), db, in, opts)
	require.NoError(t, err)
	return skipped
}

func policyRefs(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`
		SELECT tablename || '.' || policyname
		FROM pg_policies
		WHERE tablename IN ('organizations', 'projects', 'users')
		  AND policyname NOT LIKE 'Allow auth admin%'
		ORDER BY 1`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var refs []string
	for rows.Next() {
		var ref string
		require.NoError(t, rows.Scan(&ref))
		refs = append(refs, ref)
	}
	require.NoError(t, rows.Err())
	return refs
}

func TestMigrate_InstallsRuntimeAndPolicies(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()

	require.NoError(t, migrator.MigrateFromString(ctx, db, testutil.SchemaJSON()))

	status, err := migrator.NewMigrator(db).GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.RolePermissionsExists)
	assert.True(t, status.AuthorizeExists)
	require.NotNil(t, status.LastMigration)
	assert.Equal(t, migrator.CodegenVersion, status.LastMigration.CodegenVersion)
	assert.Len(t, status.LastMigration.PolicyNames, 12)
	assert.Contains(t, status.LastMigration.PolicyNames, "projects.projects_select")

	refs := policyRefs(t, db)
	assert.Len(t, refs, 12)
	assert.Contains(t, refs, "organizations.organizations_insert")
	assert.Contains(t, refs, "users.users_delete")

	for _, table := range []string{"organizations", "projects", "users"} {
		var enabled bool
		require.NoError(t, db.QueryRow(`SELECT relrowsecurity FROM pg_class WHERE oid = to_regclass($1)`, table).Scan(&enabled))
		assert.True(t, enabled, table)
	}
}

func TestMigrate_SkipsUnchanged(t *testing.T) {
	db := testutil.DB(t)
	in := migrator.Input{Schema: testutil.Schema(t), Preamble: embedded.PreambleSQL}

	assert.False(t, migrate(t, db, in, migrator.MigrateOptions{}))
	assert.True(t, migrate(t, db, in, migrator.MigrateOptions{}))
	assert.False(t, migrate(t, db, in, migrator.MigrateOptions{Force: true}))

	in.Conditions = "-- drafted\n"
	assert.False(t, migrate(t, db, in, migrator.MigrateOptions{}), "conditions change the checksum")

	var count int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM easyrls_migrations`).Scan(&count))
	assert.Equal(t, 3, count)
}

func TestMigrate_DropsOrphanedPolicies(t *testing.T) {
	db := testutil.DB(t)
	s := testutil.Schema(t)
	in := migrator.Input{Schema: s, Preamble: embedded.PreambleSQL}
	migrate(t, db, in, migrator.MigrateOptions{})

	in.Schema.PrimaryKeys = []string{"public.organizations(id::bigint)", "public.projects(id::bigint)"}
	in.Schema.Relations = []string{"public.projects.organization_id::int8 references public.organizations(id::int8)"}

	var dry bytes.Buffer
	migrate(t, db, in, migrator.MigrateOptions{DryRun: &dry})
	assert.Contains(t, dry.String(), "Orphaned Policies (4 policies)")
	assert.Contains(t, dry.String(), `DROP POLICY IF EXISTS "users_select" ON users;`)
	assert.Len(t, policyRefs(t, db), 12, "dry run leaves the database alone")

	migrate(t, db, in, migrator.MigrateOptions{})
	refs := policyRefs(t, db)
	assert.Len(t, refs, 8)
	assert.NotContains(t, refs, "users.users_select")
}

func TestMigrate_RollsBackOnFailure(t *testing.T) {
	db := testutil.DB(t)
	s := testutil.Schema(t)

	_, err := migrator.MigrateWithOptions(context.Background(), db, migrator.Input{
		Schema:     s,
		Preamble:   embedded.PreambleSQL,
		Conditions: "SELECT * FROM no_such_table;",
	}, migrator.MigrateOptions{})
	require.Error(t, err)

	assert.Empty(t, policyRefs(t, db))
	var exists bool
	require.NoError(t, db.QueryRow(`SELECT to_regclass('easyrls_migrations') IS NOT NULL`).Scan(&exists))
	assert.False(t, exists)
}

// TestAuthorize_EnforcesRolePermissions exercises the installed policies as
// the authenticated role, with claims supplied the way PostgREST does.
func TestAuthorize_EnforcesRolePermissions(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	require.NoError(t, migrator.MigrateFromString(ctx, db, testutil.SchemaJSON()))

	grantMemberProjects(t, db)

	visible := func(claims string) []int64 {
		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()

		_, err = tx.Exec(`SET LOCAL ROLE authenticated`)
		require.NoError(t, err)
		_, err = tx.Exec(`SELECT set_config('request.jwt.claims', $1, true)`, claims)
		require.NoError(t, err)

		rows, err := tx.Query(`SELECT id FROM projects ORDER BY id`)
		require.NoError(t, err)
		defer func() { _ = rows.Close() }()

		ids := []int64{}
		for rows.Next() {
			var id int64
			require.NoError(t, rows.Scan(&id))
			ids = append(ids, id)
		}
		require.NoError(t, rows.Err())
		return ids
	}

	assert.Equal(t, []int64{10, 11}, visible(`{"user_role": "member", "organization_id": 1}`))
	assert.Equal(t, []int64{20}, visible(`{"user_role": "member", "organization_id": 2}`))
	assert.Empty(t, visible(`{"user_role": "viewer", "organization_id": 1}`), "unknown role")
	assert.Empty(t, visible(`{}`), "no claims")
}
