package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// migration is a single versioned schema change.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     2,
		Description: "Add labels.color",
		SQL:         `ALTER TABLE labels ADD COLUMN color TEXT DEFAULT ''`,
	},
	{
		Version:     3,
		Description: "Add sync_state.sync_disabled",
		SQL:         `ALTER TABLE sync_state ADD COLUMN sync_disabled INTEGER NOT NULL DEFAULT 0`,
	},
}

// RunMigrations applies any pending migrations in order.
func (db *DB) RunMigrations() error {
	current, err := db.GetSchemaVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		// ALTER TABLE ADD COLUMN fails when the column already exists
		// (fresh databases get the full schema); skip those quietly.
		if _, err := db.conn.Exec(m.SQL); err != nil && !isDuplicateColumn(err) {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if err := db.setSchemaVersion(m.Version); err != nil {
			return fmt.Errorf("migration %d: set version: %w", m.Version, err)
		}
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}

// GetSchemaVersion returns the current schema version from the database
func (db *DB) GetSchemaVersion() (int, error) {
	var version string
	err := db.conn.QueryRow("SELECT value FROM schema_info WHERE key = 'version'").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		// Table might not exist yet
		return 0, nil
	}
	var v int
	fmt.Sscanf(version, "%d", &v)
	return v, nil
}

func (db *DB) setSchemaVersion(version int) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`,
		fmt.Sprintf("%d", version))
	return err
}
