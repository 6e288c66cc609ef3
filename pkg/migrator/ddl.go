package migrator

// MigrationsTable records every applied migration.
const MigrationsTable = "easyrls_migrations"

// migrationsDDL defines the easyrls_migrations table for tracking migration state.
const migrationsDDL = `-- easyrls migrations tracking table
-- Stores migration history for change detection and orphan cleanup.
--
-- Each row represents a completed migration:
-- - schema_checksum: SHA256 of the applied script
-- - codegen_version: Version of the policy generation logic
-- - policy_names: Every generated policy as <table>.<policy> (for orphan detection)

CREATE TABLE IF NOT EXISTS easyrls_migrations (
    id SERIAL PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    schema_checksum VARCHAR(64) NOT NULL,
    codegen_version VARCHAR(32) NOT NULL,
    policy_names TEXT[] NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_easyrls_migrations_checksum
ON easyrls_migrations (schema_checksum, codegen_version);
`
