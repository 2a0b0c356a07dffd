package sync

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
)

// mapActionType converts action_log action types to sync event action types.
func mapActionType(action string) string {
	switch action {
	case "board_create", "column_create", "task_create", "label_create", "label_attach":
		return "create"
	case "board_delete", "column_delete", "label_delete", "label_detach", "task_purge":
		return "delete"
	case "task_delete":
		return "soft_delete"
	case "task_restore":
		return "restore"
	default:
		return "update"
	}
}

// entityTypeAllowed reports whether an action_log entity type can sync.
func entityTypeAllowed(entityType string) bool {
	return BoardEntityValidator(entityType)
}

// GetPendingEvents reads unsynced action_log rows and returns them as Events
// ordered oldest first.
func GetPendingEvents(tx *sql.Tx, deviceID string) ([]Event, error) {
	rows, err := tx.Query(`
		SELECT id, session_id, action_type, entity_type, entity_id, new_data, previous_data, timestamp
		FROM action_log
		WHERE synced_at IS NULL
		ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			id, sessionID, actionType, entityType, entityID, tsStr string
			newDataStr, prevDataStr                                sql.NullString
		)
		if err := rows.Scan(&id, &sessionID, &actionType, &entityType, &entityID, &newDataStr, &prevDataStr, &tsStr); err != nil {
			return nil, fmt.Errorf("scan action_log row: %w", err)
		}

		clientTS, err := parseTimestamp(tsStr)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp id=%s: %w", id, err)
		}

		if !entityTypeAllowed(entityType) {
			slog.Warn("sync: skipping unsupported entity type", "entity_type", entityType, "action_id", id)
			continue
		}

		newData := json.RawMessage("{}")
		if newDataStr.Valid && newDataStr.String != "" {
			newData = json.RawMessage(newDataStr.String)
		}
		prevData := json.RawMessage("{}")
		if prevDataStr.Valid && prevDataStr.String != "" {
			prevData = json.RawMessage(prevDataStr.String)
		}

		payload, err := json.Marshal(payloadWrapper{
			SchemaVersion: 1,
			NewData:       newData,
			PreviousData:  prevData,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal payload id=%s: %w", id, err)
		}

		events = append(events, Event{
			ClientActionID:  id,
			DeviceID:        deviceID,
			SessionID:       sessionID,
			ActionType:      mapActionType(actionType),
			EntityType:      entityType,
			EntityID:        entityID,
			Payload:         payload,
			ClientTimestamp: clientTS,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return events, nil
}

// ApplyRemoteEvents applies a batch of remote events to the local database.
// Events from myDeviceID are skipped outright: they are echoes of our own
// writes and the local rows already reflect them. Stale events (older than
// the local row) are suppressed by the upsert path.
func ApplyRemoteEvents(tx *sql.Tx, events []Event, myDeviceID string, validator EntityValidator) (ApplyResult, error) {
	var result ApplyResult

	for _, ev := range events {
		if ev.DeviceID == myDeviceID {
			result.LastAppliedSeq = ev.ServerSeq
			continue
		}

		var wrapper payloadWrapper
		if err := json.Unmarshal(ev.Payload, &wrapper); err != nil {
			slog.Warn("apply remote: unmarshal payload", "seq", ev.ServerSeq, "err", err)
			result.Failed = append(result.Failed, FailedEvent{ServerSeq: ev.ServerSeq, Error: err})
			continue
		}

		applyEv := ev
		applyEv.Payload = wrapper.NewData

		applied, overwritten, err := ApplyEvent(tx, applyEv, validator)
		if err != nil {
			slog.Warn("apply remote: apply event", "seq", ev.ServerSeq, "err", err)
			result.Failed = append(result.Failed, FailedEvent{ServerSeq: ev.ServerSeq, Error: err})
			continue
		}

		switch {
		case !applied:
			result.Stale++
		case overwritten:
			result.Overwrites++
			result.Applied++
		default:
			result.Applied++
		}
		result.LastAppliedSeq = ev.ServerSeq
	}

	return result, nil
}

// MarkEventsSynced stamps action_log rows with their server-assigned sequence numbers.
func MarkEventsSynced(tx *sql.Tx, acks []Ack) error {
	for _, ack := range acks {
		_, err := tx.Exec(
			`UPDATE action_log SET synced_at = CURRENT_TIMESTAMP, server_seq = ? WHERE id = ?`,
			ack.ServerSeq, ack.ClientActionID,
		)
		if err != nil {
			return fmt.Errorf("mark synced id=%s: %w", ack.ClientActionID, err)
		}
	}
	return nil
}
