package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcus/kanban/internal/models"
)

// GetBoardSettings returns a board's settings row, falling back to defaults
// when the row is missing (boards created before settings existed).
func (db *DB) GetBoardSettings(boardID string) (*models.BoardSettings, error) {
	var s models.BoardSettings
	var lastCleanup sql.NullTime
	err := db.conn.QueryRow(`
		SELECT board_id, show_completed, save_deleted, deleted_retention, auto_cleanup, last_cleanup_at
		FROM board_settings WHERE board_id = ?`, boardID).
		Scan(&s.BoardID, &s.ShowCompleted, &s.SaveDeleted, &s.DeletedRetention, &s.AutoCleanup, &lastCleanup)
	if err == sql.ErrNoRows {
		return models.DefaultBoardSettings(boardID), nil
	}
	if err != nil {
		return nil, err
	}
	if lastCleanup.Valid {
		s.LastCleanupAt = &lastCleanup.Time
	}
	return &s, nil
}

// SetBoardSettings upserts a board's settings row.
func (db *DB) SetBoardSettings(s *models.BoardSettings, sessionID string) error {
	return db.withWriteLock(func() error {
		prev, err := db.GetBoardSettings(s.BoardID)
		if err != nil {
			return err
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT OR REPLACE INTO board_settings (board_id, show_completed, save_deleted, deleted_retention, auto_cleanup, last_cleanup_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			s.BoardID, s.ShowCompleted, s.SaveDeleted, s.DeletedRetention, s.AutoCleanup, s.LastCleanupAt)
		if err != nil {
			return fmt.Errorf("set board settings: %w", err)
		}

		if err := logAction(tx, sessionID, string(models.ActionSettingsSet), "board_settings", s.BoardID, prev, s); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// GetUserSettings returns the settings row for a user, or defaults.
func (db *DB) GetUserSettings(userID string) (*models.UserSettings, error) {
	var s models.UserSettings
	var shortcuts string
	err := db.conn.QueryRow(`
		SELECT user_id, theme, shortcuts, current_board_id
		FROM user_settings WHERE user_id = ?`, userID).
		Scan(&s.UserID, &s.Theme, &shortcuts, &s.CurrentBoardID)
	if err == sql.ErrNoRows {
		return &models.UserSettings{UserID: userID, Theme: "dark"}, nil
	}
	if err != nil {
		return nil, err
	}
	if shortcuts != "" {
		if err := json.Unmarshal([]byte(shortcuts), &s.Shortcuts); err != nil {
			s.Shortcuts = nil // tolerate corrupt shortcut maps
		}
	}
	return &s, nil
}

// SetUserSettings upserts the user settings row.
func (db *DB) SetUserSettings(s *models.UserSettings, sessionID string) error {
	return db.withWriteLock(func() error {
		shortcuts := "{}"
		if s.Shortcuts != nil {
			data, err := json.Marshal(s.Shortcuts)
			if err != nil {
				return fmt.Errorf("marshal shortcuts: %w", err)
			}
			shortcuts = string(data)
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT OR REPLACE INTO user_settings (user_id, theme, shortcuts, current_board_id)
			VALUES (?, ?, ?, ?)`,
			s.UserID, s.Theme, shortcuts, s.CurrentBoardID)
		if err != nil {
			return fmt.Errorf("set user settings: %w", err)
		}

		if err := logAction(tx, sessionID, string(models.ActionSettingsSet), "user_settings", s.UserID, nil, s); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// SyncState tracks the link between a local board and its remote counterpart.
type SyncState struct {
	BoardID       string
	RemoteBoardID string
	LastServerSeq int64
	LastSyncAt    *time.Time
	SyncDisabled  bool
}

// GetSyncState returns the sync state for a board, or nil when not linked.
func (db *DB) GetSyncState(boardID string) (*SyncState, error) {
	var s SyncState
	var lastSync sql.NullTime
	err := db.conn.QueryRow(`
		SELECT board_id, remote_board_id, last_server_seq, last_sync_at, sync_disabled
		FROM sync_state WHERE board_id = ?`, boardID).
		Scan(&s.BoardID, &s.RemoteBoardID, &s.LastServerSeq, &lastSync, &s.SyncDisabled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastSync.Valid {
		s.LastSyncAt = &lastSync.Time
	}
	return &s, nil
}

// SetSyncState upserts the sync state row for a board.
func (db *DB) SetSyncState(s *SyncState) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			INSERT OR REPLACE INTO sync_state (board_id, remote_board_id, last_server_seq, last_sync_at, sync_disabled)
			VALUES (?, ?, ?, ?, ?)`,
			s.BoardID, s.RemoteBoardID, s.LastServerSeq, s.LastSyncAt, s.SyncDisabled)
		if err != nil {
			return fmt.Errorf("set sync state: %w", err)
		}
		return nil
	})
}
