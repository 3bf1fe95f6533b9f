package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "create history tables",
		sql: `
CREATE TABLE IF NOT EXISTS dispatches (
	id TEXT PRIMARY KEY,
	role TEXT NOT NULL,
	line TEXT NOT NULL,
	outcome TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dispatches_created_at ON dispatches(created_at);

CREATE TABLE IF NOT EXISTS freshness_checks (
	id TEXT PRIMARY KEY,
	package TEXT NOT NULL,
	outcome TEXT NOT NULL,
	installed TEXT NOT NULL DEFAULT '',
	latest TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	checked_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_freshness_checks_package ON freshness_checks(package, checked_at);
`,
	},
	{
		version: 2,
		name:    "record dispatch session",
		sql: `
ALTER TABLE dispatches ADD COLUMN terminal_id TEXT NOT NULL DEFAULT '';
`,
	},
}

func RunMigrations(ctx context.Context, conn *sql.DB) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start migration transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS _meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`); err != nil {
		return fmt.Errorf("failed to ensure _meta table: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO _meta (key, value) VALUES ('schema_version', '0')`); err != nil {
		return fmt.Errorf("failed to initialize schema version: %w", err)
	}

	var currentRaw string
	if err := tx.QueryRowContext(ctx, `SELECT value FROM _meta WHERE key = 'schema_version'`).Scan(&currentRaw); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	currentVersion, err := strconv.Atoi(currentRaw)
	if err != nil {
		return fmt.Errorf("invalid schema version %q: %w", currentRaw, err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("failed migration %03d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE _meta SET value = ? WHERE key = 'schema_version'`, strconv.Itoa(m.version)); err != nil {
			return fmt.Errorf("failed to set schema version %03d: %w", m.version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}

	return nil
}

// SchemaVersion reports the last applied migration.
func SchemaVersion(ctx context.Context, conn *sql.DB) (int, error) {
	var raw string
	if err := conn.QueryRowContext(ctx, `SELECT value FROM _meta WHERE key = 'schema_version'`).Scan(&raw); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return strconv.Atoi(raw)
}
