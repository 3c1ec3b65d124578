package history

import (
	"context"
	"database/sql"
)

// Schema version tracking
const currentSchemaVersion = 1

// migrate creates the tables of a new ledger and upgrades older ones.
func (db *DB) migrate() error {
	version, err := db.schemaVersion()
	if err != nil {
		return err
	}
	if version == currentSchemaVersion {
		db.logger.Debug("Ledger schema is up to date", "version", version)
		return nil
	}

	return db.WithTx(context.Background(), func(tx *sql.Tx) error {
		if version < 1 {
			for _, create := range []func(*sql.Tx) error{
				createSchemaVersionTable,
				createRunsTable,
				createUnresolvedNumbersTable,
			} {
				if err := create(tx); err != nil {
					return err
				}
			}
		}
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}
		db.logger.Debug("Ledger schema initialized", "from", version, "to", currentSchemaVersion)
		return nil
	})
}

// schemaVersion returns 0 for a new database.
func (db *DB) schemaVersion() (int, error) {
	var tableName string
	err := db.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return version, err
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

func createRunsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			release_date TEXT NOT NULL,
			dependency TEXT NOT NULL,
			extension TEXT NOT NULL DEFAULT '',
			delta TEXT NOT NULL DEFAULT '',
			output_dir TEXT NOT NULL,
			number_concepts INTEGER NOT NULL,
			numeric_values INTEGER NOT NULL,
			rows_written INTEGER NOT NULL,
			pending_drained INTEGER NOT NULL,
			unresolved_expressions INTEGER NOT NULL,
			remodelled INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`)
	return err
}

func createUnresolvedNumbersTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS unresolved_numbers (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			concept_id TEXT NOT NULL,
			PRIMARY KEY (run_id, concept_id)
		)
	`)
	return err
}
