package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// logAction records a mutation in the action log. Every local write goes
// through here so the sync engine can replay it to the server.
func logAction(e execer, sessionID, actionType, entityType, entityID string, previous, current any) error {
	actionID, err := generateActionID()
	if err != nil {
		return fmt.Errorf("generate action ID: %w", err)
	}

	prevData := marshalOrEmpty(previous)
	newData := marshalOrEmpty(current)

	_, err = e.Exec(`
		INSERT INTO action_log (id, session_id, action_type, entity_type, entity_id, previous_data, new_data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		actionID, sessionID, actionType, entityType, entityID, prevData, newData, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("log action: %w", err)
	}
	return nil
}

func marshalOrEmpty(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// UnsyncedActionCount returns the number of action_log rows not yet pushed.
func (db *DB) UnsyncedActionCount() (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM action_log WHERE synced_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unsynced actions: %w", err)
	}
	return n, nil
}
