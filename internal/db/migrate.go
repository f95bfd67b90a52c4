// Package db provides database schema migration management.
package db

import (
	"database/sql"
	"fmt"
	"time"
)

// migration is one schema step. Steps are applied in version order inside a
// transaction and recorded in schema_migrations.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "create tasks table",
		SQL: `
		CREATE TABLE IF NOT EXISTS tasks (
			id               TEXT PRIMARY KEY,
			title            TEXT NOT NULL UNIQUE,
			description      TEXT NOT NULL DEFAULT '',
			assigned_user    TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL DEFAULT 'todo' CHECK(status IN ('todo', 'inprogress', 'done')),
			priority         TEXT NOT NULL DEFAULT 'low' CHECK(priority IN ('low', 'medium', 'high')),
			version          INTEGER NOT NULL DEFAULT 1 CHECK(version >= 1),
			last_modified    INTEGER NOT NULL,
			last_modified_by TEXT NOT NULL DEFAULT 'system',
			editing_by       TEXT NOT NULL DEFAULT '',
			edit_start       INTEGER NOT NULL DEFAULT 0,
			completed_at     INTEGER NOT NULL DEFAULT 0,
			created_at       INTEGER NOT NULL
		);`,
	},
	{
		Version:     2,
		Description: "create activity log table",
		SQL: `
		CREATE TABLE IF NOT EXISTS activity_log (
			id          TEXT PRIMARY KEY,
			action      TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id   TEXT NOT NULL,
			actor_id    TEXT NOT NULL,
			actor_name  TEXT NOT NULL,
			details     TEXT NOT NULL DEFAULT '{}',
			timestamp   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_activity_timestamp ON activity_log(timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_activity_entity ON activity_log(entity_id, timestamp DESC);`,
	},
}

// Migrator applies pending schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at  INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Up applies every migration newer than the current schema version.
func (m *Migrator) Up() error {
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	current, err := m.CurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, mig := range migrations {
		if mig.Version <= current {
			continue
		}
		if err := m.apply(mig); err != nil {
			return fmt.Errorf("migration %d (%s): %w", mig.Version, mig.Description, err)
		}
	}
	return nil
}

func (m *Migrator) apply(mig migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(mig.SQL); err != nil {
		return err
	}

	record := `INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)`
	if _, err := tx.Exec(record, mig.Version, time.Now().Unix(), mig.Description); err != nil {
		return err
	}

	return tx.Commit()
}
