package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sensor_dashboard/internal/models"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures one table per series plus
// the metadata and sync run tables exist.
func InitDB(path string, series []models.Series) (*sql.DB, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// Single writer: background ingestion. Readers queue behind it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", strings.TrimSuffix(pragma, ";"), err)
		}
	}

	if err := ensureSchema(db, series); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaSeriesTable = `
CREATE TABLE IF NOT EXISTS %s (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL UNIQUE,
    value REAL NOT NULL,
    created_at TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ', 'now'))
);
`

// The same instant stored in different text formats must still collide.
const schemaSeriesIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_ts_norm ON %[1]s (datetime(timestamp));
`

const schemaMetadata = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`

const schemaSyncRuns = `
CREATE TABLE IF NOT EXISTS sync_runs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    inserted INTEGER NOT NULL,
    chunks_failed INTEGER NOT NULL,
    detail TEXT
);
`

func ensureDir(path string) error {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory %q: %w", dir, err)
	}
	return nil
}

func schemaStatements(series []models.Series) ([]string, error) {
	stmts := make([]string, 0, 2*len(series)+2)
	for _, s := range series {
		if !s.Valid() {
			return nil, fmt.Errorf("invalid series name %q", s)
		}
		stmts = append(stmts,
			fmt.Sprintf(schemaSeriesTable, s.TableName()),
			fmt.Sprintf(schemaSeriesIndex, s.TableName()),
		)
	}
	return append(stmts, schemaMetadata, schemaSyncRuns), nil
}

func ensureSchema(db *sql.DB, series []models.Series) error {
	stmts, err := schemaStatements(series)
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback()
	}()

	for i, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
