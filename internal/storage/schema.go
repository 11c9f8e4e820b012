package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

//go:embed schema.sqlite.sql
var sqliteSchema string

//go:embed schema.postgres.sql
var postgresSchema string

// SchemaVersion is stamped into PRAGMA user_version on SQLite stores.
const SchemaVersion = 1

// loadSchema returns the DDL for the driver, preferring an explicit schema file.
func loadSchema(driver, schemaFile string) (string, error) {
	if path := strings.TrimSpace(schemaFile); path != "" {
		raw, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return "", &Error{Reason: ReasonSchemaMissing, Op: "schema file not found: " + path, Err: err}
		}
		if err != nil {
			return "", Wrap(ReasonFilesystem, "read schema file", err)
		}
		return string(raw), nil
	}
	if driver == DriverPostgres {
		return postgresSchema, nil
	}
	return sqliteSchema, nil
}

// applySchema runs the DDL. Every statement is IF NOT EXISTS (or replaced in
// place), so re-running against a populated store keeps its rows.
func applySchema(ctx context.Context, db *sql.DB, driver, ddl string) error {
	if strings.TrimSpace(ddl) == "" {
		return &Error{Reason: ReasonSchemaMissing, Op: "schema is empty"}
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return Engine("apply schema", err)
	}
	if driver != DriverSQLite {
		return nil
	}
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return Engine("read user_version", err)
	}
	if version < SchemaVersion {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
			return Engine("set user_version", err)
		}
	}
	return nil
}
