// Package store persists the working documents (schema, roles, drafted
// conditions) between runs.
//
// The core packages never touch a Store; callers load a document, hand it to
// the pure functions in pkg/schema, pkg/roles and pkg/compiler, and save the
// result.
package store

import (
	"context"
	"fmt"
	"strings"
)

// Well-known keys.
const (
	KeySchema     = "schema"
	KeyRoles      = "roles"
	KeyConditions = "conditions"
)

// Supported drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Store is a small key/value store for text documents.
type Store interface {
	// Load returns the value for key and whether it was present.
	Load(ctx context.Context, key string) (string, bool, error)
	// Save replaces the value for key.
	Save(ctx context.Context, key, value string) error
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open returns the store for driver rooted at path. For the file driver path
// is a directory; for sqlite it is the database file.
func Open(ctx context.Context, driver, path string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverFile:
		return NewFileStore(path)
	case DriverSQLite:
		return NewSQLiteStore(ctx, path)
	default:
		return nil, fmt.Errorf("unknown store driver %q (want %s or %s)", driver, DriverFile, DriverSQLite)
	}
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\.`) {
		return fmt.Errorf("invalid store key %q", key)
	}
	return nil
}
