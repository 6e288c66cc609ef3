// Package introspect reads the schema document straight from a PostgreSQL
// catalog.
package introspect

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pthm/easyrls/pkg/schema"
	"github.com/pthm/easyrls/sql"
)

// DefaultSchemaName is the namespace introspected when none is given.
const DefaultSchemaName = "public"

// Querier is the subset of *pgx.Conn (and pgxpool.Pool) used here.
type Querier interface {
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

// Connect opens a connection and verifies it with a ping.
func Connect(ctx context.Context, connString string) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// Introspect returns the primary keys and foreign keys of schemaName. Lists
// are never nil. The result is not validated; an empty namespace yields an
// empty schema.
func Introspect(ctx context.Context, q Querier, schemaName string) (schema.Schema, error) {
	if schemaName == "" {
		schemaName = DefaultSchemaName
	}

	var raw string
	if err := q.QueryRow(ctx, sql.IntrospectSQL, schemaName).Scan(&raw); err != nil {
		return schema.Schema{}, fmt.Errorf("introspecting %s: %w", schemaName, err)
	}
	return Decode(raw)
}

// Decode parses the catalog query output. Null lists become empty.
func Decode(raw string) (schema.Schema, error) {
	var s schema.Schema
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return schema.Schema{}, fmt.Errorf("decoding introspection result: %w", err)
	}
	if s.Relations == nil {
		s.Relations = []string{}
	}
	if s.PrimaryKeys == nil {
		s.PrimaryKeys = []string{}
	}
	return s, nil
}
