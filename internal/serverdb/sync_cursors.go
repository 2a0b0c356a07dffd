package serverdb

import (
	"database/sql"
	"fmt"
	"time"
)

// SyncCursor tracks a device's pull position on a board.
type SyncCursor struct {
	BoardID       string
	DeviceID      string
	LastServerSeq int64
	LastSyncAt    *time.Time
}

// UpsertSyncCursor creates or updates a sync cursor for a board/device pair.
func (db *ServerDB) UpsertSyncCursor(boardID, deviceID string, lastServerSeq int64) error {
	now := time.Now().UTC()
	_, err := db.conn.Exec(`
		INSERT INTO sync_cursors (board_id, device_id, last_server_seq, last_sync_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(board_id, device_id)
		DO UPDATE SET last_server_seq = excluded.last_server_seq, last_sync_at = excluded.last_sync_at
	`, boardID, deviceID, lastServerSeq, now)
	if err != nil {
		return fmt.Errorf("upsert sync cursor: %w", err)
	}
	return nil
}

// GetSyncCursor returns the sync cursor for a board/device pair, or nil if not found.
func (db *ServerDB) GetSyncCursor(boardID, deviceID string) (*SyncCursor, error) {
	c := &SyncCursor{}
	err := db.conn.QueryRow(
		`SELECT board_id, device_id, last_server_seq, last_sync_at FROM sync_cursors WHERE board_id = ? AND device_id = ?`,
		boardID, deviceID,
	).Scan(&c.BoardID, &c.DeviceID, &c.LastServerSeq, &c.LastSyncAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync cursor: %w", err)
	}
	return c, nil
}
