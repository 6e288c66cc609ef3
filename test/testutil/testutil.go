// Package testutil provides shared helpers for easyrls integration tests.
//
// Tests share one PostgreSQL container (or the database named by
// DATABASE_URL). A template database holding the Supabase stand-ins and the
// domain tables is built once; every test gets its own copy.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pthm/easyrls/pkg/schema"
)

var (
	//go:embed testdata/supabase_stubs.sql
	supabaseStubsSQL string

	//go:embed testdata/domain_tables.sql
	domainTablesSQL string

	//go:embed testdata/schema.json
	schemaJSON string
)

var (
	singletonOnce sync.Once
	singletonDSN  string
	singletonErr  error

	templateOnce sync.Once
	templateName string
	templateErr  error
)

// ensureSingleton returns the admin DSN, starting the container on first use
// unless an external database is configured.
func ensureSingleton() (string, error) {
	singletonOnce.Do(func() {
		if cfg := GetDatabaseConfig(); cfg.URL != "" {
			singletonDSN = cfg.URL
			return
		}

		ctx := context.Background()
		container, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("postgres"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithEnv(map[string]string{
				"POSTGRES_INITDB_ARGS": "--auth-host=trust",
			}),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			singletonErr = fmt.Errorf("failed to start PostgreSQL container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = container.Terminate(ctx)
			singletonErr = fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
			return
		}
		// ryuk terminates the container when the test binary exits.
		singletonDSN = dsn
	})

	return singletonDSN, singletonErr
}

// ensureTemplate creates the template database once.
func ensureTemplate(adminDSN string) (string, error) {
	templateOnce.Do(func() {
		templateName = "easyrls_template"

		if err := createDatabase(adminDSN, templateName); err != nil {
			templateErr = fmt.Errorf("failed to create template database: %w", err)
			return
		}
		if err := applyFixtures(replaceDBName(adminDSN, templateName)); err != nil {
			templateErr = err
			return
		}
		// Copying works without the flag, only slower.
		_ = markAsTemplate(adminDSN, templateName)
	})

	return templateName, templateErr
}

// DB returns a connection to a fresh database holding the Supabase stand-ins
// and the domain tables, but no easyrls objects. The database is dropped when
// the test completes.
func DB(tb testing.TB) *sql.DB {
	tb.Helper()

	adminDSN, err := ensureSingleton()
	require.NoError(tb, err, "failed to start PostgreSQL")

	tmpl, err := ensureTemplate(adminDSN)
	require.NoError(tb, err, "failed to create template database")

	dbName := uniqueDBName("test")
	require.NoError(tb, createDatabaseFromTemplate(adminDSN, dbName, tmpl), "failed to create test database")

	return connect(tb, adminDSN, dbName)
}

// EmptyDB returns a connection to a fresh empty database.
func EmptyDB(tb testing.TB) *sql.DB {
	tb.Helper()

	adminDSN, err := ensureSingleton()
	require.NoError(tb, err, "failed to start PostgreSQL")

	dbName := uniqueDBName("empty")
	require.NoError(tb, createDatabase(adminDSN, dbName), "failed to create empty database")

	return connect(tb, adminDSN, dbName)
}

// DSN returns the connection string of the database behind db, for APIs that
// open their own connection.
func DSN(tb testing.TB, db *sql.DB) string {
	tb.Helper()

	adminDSN, err := ensureSingleton()
	require.NoError(tb, err)

	var name string
	require.NoError(tb, db.QueryRow("SELECT current_database()").Scan(&name))
	return replaceDBName(adminDSN, name)
}

func connect(tb testing.TB, adminDSN, dbName string) *sql.DB {
	tb.Helper()

	db, err := sql.Open("postgres", replaceDBName(adminDSN, dbName))
	require.NoError(tb, err, "failed to open test database")
	require.NoError(tb, db.Ping(), "failed to ping test database")

	tb.Cleanup(func() {
		_ = db.Close()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = dropDatabase(ctx, adminDSN, dbName)
		}()
	})
	return db
}

func uniqueDBName(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

func createDatabase(adminDSN, name string) error {
	db, err := sql.Open("postgres", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", name))
	return err
}

func createDatabaseFromTemplate(adminDSN, name, template string) error {
	db, err := sql.Open("postgres", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	terminateConnections(context.Background(), db, template)
	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s WITH TEMPLATE %s", name, template))
	return err
}

func markAsTemplate(adminDSN, name string) error {
	db, err := sql.Open("postgres", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	terminateConnections(context.Background(), db, name)
	_, err = db.Exec(fmt.Sprintf("ALTER DATABASE %s WITH is_template = true", name))
	return err
}

func dropDatabase(ctx context.Context, adminDSN, name string) error {
	db, err := sql.Open("postgres", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	terminateConnections(ctx, db, name)
	_, err = db.ExecContext(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", name))
	return err
}

func terminateConnections(ctx context.Context, db *sql.DB, name string) {
	_, _ = db.ExecContext(ctx, `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()
	`, name)
}

// applyFixtures installs the Supabase stand-ins and the domain tables.
func applyFixtures(dsn string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, supabaseStubsSQL); err != nil {
		return fmt.Errorf("create supabase stand-ins: %w", err)
	}
	if _, err := db.ExecContext(ctx, domainTablesSQL); err != nil {
		return fmt.Errorf("create domain tables: %w", err)
	}
	return nil
}

// replaceDBName replaces the database name in a URL-style PostgreSQL DSN.
func replaceDBName(dsn, newDB string) string {
	i := strings.LastIndex(dsn, "/")
	if i < 0 {
		return dsn
	}
	rest := ""
	if q := strings.Index(dsn[i:], "?"); q >= 0 {
		rest = dsn[i+q:]
	}
	return dsn[:i+1] + newDB + rest
}

// SchemaJSON returns the schema document describing the domain tables.
func SchemaJSON() string {
	return schemaJSON
}

// Schema returns the validated schema document describing the domain tables.
func Schema(tb testing.TB) schema.Schema {
	tb.Helper()

	s, err := schema.ValidateSchema(schemaJSON)
	require.NoError(tb, err)
	return s
}

// DomainTablesSQL returns the SQL creating the domain tables.
func DomainTablesSQL() string {
	return domainTablesSQL
}
