package sync

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
)

var validColumnName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ApplyEvent applies a single remote event to the local database within the
// given transaction. The validator is consulted before any SQL runs. Returns
// (applied, overwritten): applied is false when the staleness gate suppressed
// the event, overwritten is true when an existing row was replaced.
func ApplyEvent(tx *sql.Tx, event Event, validator EntityValidator) (applied, overwritten bool, err error) {
	if !validator(event.EntityType) {
		return false, false, fmt.Errorf("invalid entity type: %q", event.EntityType)
	}
	if event.EntityID == "" {
		return false, false, fmt.Errorf("empty entity ID for %q event", event.ActionType)
	}

	// Join rows and subtask lists have no single-id row shape; handle them
	// before the generic paths.
	switch event.EntityType {
	case "task_labels":
		return applyTaskLabelEvent(tx, event)
	case "subtasks":
		return applySubtaskListEvent(tx, event)
	}

	switch event.ActionType {
	case "create", "update", "restore":
		return upsertEntity(tx, event)
	case "delete":
		return true, false, deleteEntity(tx, event.EntityType, event.EntityID)
	case "soft_delete":
		return true, false, softDeleteEntity(tx, event.EntityType, event.EntityID, event.ClientTimestamp)
	default:
		return false, false, fmt.Errorf("unknown action type: %q", event.ActionType)
	}
}

// upsertEntity inserts or replaces a row using the JSON payload fields.
// Staleness gate: when the existing row's updated_at is not older than the
// event's client timestamp, the event is suppressed (last-writer wins).
func upsertEntity(tx *sql.Tx, event Event) (applied, overwritten bool, err error) {
	entityType, entityID := event.EntityType, event.EntityID
	if len(event.Payload) == 0 {
		return false, false, fmt.Errorf("upsert %s/%s: empty payload", entityType, entityID)
	}

	var fields map[string]any
	if err := json.Unmarshal(event.Payload, &fields); err != nil {
		return false, false, fmt.Errorf("upsert %s/%s: unmarshal payload: %w", entityType, entityID, err)
	}
	if len(fields) == 0 {
		return false, false, fmt.Errorf("upsert %s/%s: payload has no fields", entityType, entityID)
	}

	idCol := idColumn(entityType)
	existing, err := readRow(tx, entityType, idCol, entityID)
	if err != nil {
		return false, false, err
	}

	if existing != nil {
		if ts, ok := rowTimestamp(existing); ok && !ts.Before(event.ClientTimestamp) {
			slog.Debug("stale event suppressed", "table", entityType, "id", entityID, "seq", event.ServerSeq)
			return false, false, nil
		}
		overwritten = true
	}

	fields[idCol] = entityID
	normalizeFieldsForDB(fields)

	colStr, placeholders, insertVals, err := buildInsert(fields)
	if err != nil {
		return false, false, fmt.Errorf("upsert %s/%s: %w", entityType, entityID, err)
	}
	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)", entityType, colStr, placeholders)

	slog.Debug("upsert", "table", entityType, "id", entityID)
	if _, err := tx.Exec(query, insertVals...); err != nil {
		return false, false, fmt.Errorf("upsert %s/%s: %w", entityType, entityID, err)
	}
	return true, overwritten, nil
}

// idColumn returns the primary key column for an entity table.
func idColumn(entityType string) string {
	switch entityType {
	case "board_settings":
		return "board_id"
	case "user_settings":
		return "user_id"
	default:
		return "id"
	}
}

// readRow loads an existing row as a column→value map, or nil when absent.
func readRow(tx *sql.Tx, table, idCol, id string) (map[string]any, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", table, idCol)
	rows, err := tx.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("check existing %s/%s: %w", table, id, err)
	}
	defer rows.Close()

	cols, _ := rows.Columns()
	if !rows.Next() {
		return nil, rows.Err()
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan existing %s/%s: %w", table, id, err)
	}

	rowMap := make(map[string]any, len(cols))
	for i, c := range cols {
		rowMap[c] = vals[i]
	}
	return rowMap, nil
}

// rowTimestamp extracts the updated_at (or created_at) timestamp of a row map.
func rowTimestamp(row map[string]any) (time.Time, bool) {
	for _, key := range []string{"updated_at", "created_at"} {
		val, ok := row[key]
		if !ok || val == nil {
			continue
		}
		switch v := val.(type) {
		case time.Time:
			return v, true
		case string:
			if ts, err := parseTimestamp(v); err == nil {
				return ts, true
			}
		case []byte:
			if ts, err := parseTimestamp(string(v)); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// deleteEntity hard-deletes a row. No-op if the row does not exist.
func deleteEntity(tx *sql.Tx, entityType, entityID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", entityType, idColumn(entityType))
	if _, err := tx.Exec(query, entityID); err != nil {
		return fmt.Errorf("delete %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

// softDeleteEntity sets deleted_at on a row. No-op if the row does not exist.
func softDeleteEntity(tx *sql.Tx, entityType, entityID string, timestamp time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET deleted_at = ?, updated_at = ? WHERE id = ?", entityType)
	if _, err := tx.Exec(query, timestamp, timestamp, entityID); err != nil {
		return fmt.Errorf("soft_delete %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

// applyTaskLabelEvent applies a join-row event. The entity id is
// "taskID:labelID"; create attaches, delete detaches.
func applyTaskLabelEvent(tx *sql.Tx, event Event) (bool, bool, error) {
	taskID, labelID, ok := strings.Cut(event.EntityID, ":")
	if !ok {
		return false, false, fmt.Errorf("task_labels event %q: malformed entity id", event.EntityID)
	}

	switch event.ActionType {
	case "create", "update":
		_, err := tx.Exec(`INSERT OR IGNORE INTO task_labels (task_id, label_id) VALUES (?, ?)`, taskID, labelID)
		if err != nil {
			return false, false, fmt.Errorf("attach %s: %w", event.EntityID, err)
		}
		return true, false, nil
	case "delete":
		_, err := tx.Exec(`DELETE FROM task_labels WHERE task_id = ? AND label_id = ?`, taskID, labelID)
		if err != nil {
			return false, false, fmt.Errorf("detach %s: %w", event.EntityID, err)
		}
		return true, false, nil
	default:
		return false, false, fmt.Errorf("task_labels event: unknown action %q", event.ActionType)
	}
}

// applySubtaskListEvent replaces a task's subtask list wholesale. The entity
// id is the owning task id; the payload is the full replacement list.
func applySubtaskListEvent(tx *sql.Tx, event Event) (bool, bool, error) {
	taskID := event.EntityID

	var subtasks []map[string]any
	if err := json.Unmarshal(event.Payload, &subtasks); err != nil {
		// A single-subtask toggle logs an object rather than a list.
		var one map[string]any
		if err2 := json.Unmarshal(event.Payload, &one); err2 != nil {
			return false, false, fmt.Errorf("subtasks event %s: unmarshal: %w", taskID, err)
		}
		subtasks = []map[string]any{one}
		return applySubtaskUpserts(tx, taskID, subtasks, false)
	}

	return applySubtaskUpserts(tx, taskID, subtasks, true)
}

func applySubtaskUpserts(tx *sql.Tx, taskID string, subtasks []map[string]any, replace bool) (bool, bool, error) {
	if replace {
		if _, err := tx.Exec(`DELETE FROM subtasks WHERE task_id = ?`, taskID); err != nil {
			return false, false, fmt.Errorf("clear subtasks for %s: %w", taskID, err)
		}
	}
	for _, fields := range subtasks {
		fields["task_id"] = taskID
		normalizeFieldsForDB(fields)
		colStr, placeholders, vals, err := buildInsert(fields)
		if err != nil {
			return false, false, fmt.Errorf("subtask for %s: %w", taskID, err)
		}
		query := fmt.Sprintf("INSERT OR REPLACE INTO subtasks (%s) VALUES (%s)", colStr, placeholders)
		if _, err := tx.Exec(query, vals...); err != nil {
			return false, false, fmt.Errorf("upsert subtask for %s: %w", taskID, err)
		}
	}
	return true, replace, nil
}

// buildInsert sorts fields alphabetically and returns column list, placeholders, and values.
// Returns an error if any key is not a valid SQL column name.
func buildInsert(fields map[string]any) (cols string, placeholders string, vals []any, err error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !validColumnName.MatchString(k) {
			return "", "", nil, fmt.Errorf("invalid column name: %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ph := make([]string, len(keys))
	vals = make([]any, len(keys))
	for i, k := range keys {
		ph[i] = "?"
		vals[i] = fields[k]
	}

	cols = strings.Join(keys, ", ")
	placeholders = strings.Join(ph, ", ")
	return
}

// normalizeFieldsForDB converts non-scalar values (slices, maps) to JSON
// strings so they bind as TEXT.
func normalizeFieldsForDB(fields map[string]any) {
	for k, v := range fields {
		switch val := v.(type) {
		case []any, map[string]any:
			data, err := json.Marshal(val)
			if err != nil {
				slog.Warn("normalize field", "field", k, "err", err)
				delete(fields, k)
			} else {
				fields[k] = string(data)
			}
		case json.RawMessage:
			fields[k] = string(val)
		}
	}
}
