package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	_ "github.com/lib/pq"

	"github.com/pthm/easyrls/internal/cli"
	"github.com/pthm/easyrls/pkg/roles"
	"github.com/pthm/easyrls/pkg/schema"
	"github.com/pthm/easyrls/pkg/store"
)

// openStore opens the configured document store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, cli.ConfigError("opening store", err)
	}
	return st, nil
}

// withStore runs fn with an open store and closes it afterwards.
func withStore(ctx context.Context, fn func(store.Store) error) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	return fn(st)
}

// readInput reads path, or stdin when path is "-".
func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// sourcePath returns the file a document is read from: the flag path, else
// the configured path when that file exists. Empty means the store.
func sourcePath(flagPath, configPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if fileExists(configPath) {
		return configPath
	}
	return ""
}

// schemaSourcePath is sourcePath for the schema document.
func schemaSourcePath(flagPath string) string {
	return sourcePath(flagPath, cfg.Schema)
}

// readDocument returns the text at flagPath, else at configPath when that file
// exists, else the stored value for key. fromFile reports whether the text
// came from disk.
func readDocument(ctx context.Context, st store.Store, key, flagPath, configPath string) (text string, fromFile, ok bool, err error) {
	if path := sourcePath(flagPath, configPath); path != "" {
		text, err := readInput(path)
		if err != nil {
			return "", false, false, fmt.Errorf("reading %s: %w", path, err)
		}
		return text, true, true, nil
	}

	text, ok, err = st.Load(ctx, key)
	if err != nil {
		return "", false, false, fmt.Errorf("loading stored %s: %w", key, err)
	}
	return text, false, ok, nil
}

// loadSchema returns the validated schema from the flag path, the configured
// file, or the store, in that order. A schema read from disk is remembered.
func loadSchema(ctx context.Context, st store.Store, flagPath string) (schema.Schema, error) {
	text, fromFile, ok, err := readDocument(ctx, st, store.KeySchema, flagPath, cfg.Schema)
	if err != nil {
		return schema.Schema{}, cli.SchemaParseError("loading schema", err)
	}
	if !ok {
		return schema.Schema{}, cli.SchemaParseError("no schema found (run 'easyrls validate --schema <file>' or 'easyrls introspect')", nil)
	}

	s, err := schema.ValidateSchema(text)
	if err != nil {
		return schema.Schema{}, cli.SchemaParseError("invalid schema", err)
	}
	if fromFile {
		if err := saveSchema(ctx, st, s); err != nil {
			return schema.Schema{}, err
		}
	}
	return s, nil
}

// saveSchema remembers s in the store.
func saveSchema(ctx context.Context, st store.Store, s schema.Schema) error {
	data, err := s.Marshal()
	if err != nil {
		return cli.GeneralError("encoding schema", err)
	}
	if err := st.Save(ctx, store.KeySchema, string(data)); err != nil {
		return cli.GeneralError("saving schema", err)
	}
	return nil
}

// loadRoles returns the roles document from the flag path, the configured
// file, or the store. A missing document is empty.
func loadRoles(ctx context.Context, st store.Store, flagPath string) (roles.Document, error) {
	text, _, ok, err := readDocument(ctx, st, store.KeyRoles, flagPath, cfg.Roles)
	if err != nil {
		return nil, cli.GeneralError("loading roles", err)
	}
	if !ok {
		return roles.New(), nil
	}
	d, err := roles.Parse(text)
	if err != nil {
		return nil, cli.GeneralError("invalid roles document", err)
	}
	return d, nil
}

// saveRoles remembers d in the store. When the document was read from a file,
// the file is rewritten as well.
func saveRoles(ctx context.Context, d roles.Document, st store.Store, flagPath string) error {
	data, err := d.Marshal()
	if err != nil {
		return cli.GeneralError("encoding roles", err)
	}
	if err := st.Save(ctx, store.KeyRoles, string(data)); err != nil {
		return cli.GeneralError("saving roles", err)
	}
	return writeRolesFile(data, flagPath)
}

// writeRolesFile rewrites the file the roles document was read from, if any.
func writeRolesFile(data []byte, flagPath string) error {
	if path := sourcePath(flagPath, cfg.Roles); path != "" && path != "-" {
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return cli.GeneralError("writing roles", err)
		}
		debugf("Updated %s", path)
	}
	return nil
}

// loadConditions returns drafted conditions from the flag path, the
// configured file, or the store. Conditions read from disk are remembered.
func loadConditions(ctx context.Context, st store.Store, flagPath string) (string, error) {
	text, fromFile, ok, err := readDocument(ctx, st, store.KeyConditions, flagPath, cfg.Conditions)
	if err != nil {
		return "", cli.GeneralError("loading conditions", err)
	}
	if !ok {
		return "", nil
	}
	if fromFile {
		if err := st.Save(ctx, store.KeyConditions, text); err != nil {
			return "", cli.GeneralError("saving conditions", err)
		}
	}
	return text, nil
}

// resolveDSN gets the database DSN from flag or config.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	if dsn == "" {
		return "", cli.ConfigError("database URL is required (use --db or set in config)", nil)
	}
	return dsn, nil
}

// openDB opens and pings a lib/pq connection pool.
func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, cli.DBConnectError("connecting to database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, cli.DBConnectError("connecting to database", err)
	}
	return db, nil
}

// logf prints progress to stderr unless --quiet is set.
func logf(format string, args ...any) {
	if quiet {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// debugf prints progress to stderr at -v and above.
func debugf(format string, args ...any) {
	if verbose < 1 {
		return
	}
	logf(format, args...)
}

// isNotExist reports whether err is a missing file.
func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
