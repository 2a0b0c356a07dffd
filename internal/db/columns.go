package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcus/kanban/internal/models"
)

// ListColumns returns a board's columns ordered by position.
func (db *DB) ListColumns(boardID string) ([]models.Column, error) {
	rows, err := db.conn.Query(`
		SELECT id, board_id, title, position, created_at, updated_at
		FROM board_columns WHERE board_id = ? ORDER BY position ASC
	`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []models.Column
	for rows.Next() {
		var c models.Column
		if err := rows.Scan(&c.ID, &c.BoardID, &c.Title, &c.Position, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

// GetColumn retrieves a column by ID
func (db *DB) GetColumn(id string) (*models.Column, error) {
	var c models.Column
	err := db.conn.QueryRow(`
		SELECT id, board_id, title, position, created_at, updated_at
		FROM board_columns WHERE id = ?
	`, id).Scan(&c.ID, &c.BoardID, &c.Title, &c.Position, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("column not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateColumn appends a new column at the end of the board.
func (db *DB) CreateColumn(boardID, title, sessionID string) (*models.Column, error) {
	var column *models.Column
	err := db.withWriteLock(func() error {
		id, err := generateColumnID()
		if err != nil {
			return err
		}

		var maxPos sql.NullInt64
		if err := db.conn.QueryRow(`SELECT MAX(position) FROM board_columns WHERE board_id = ?`, boardID).Scan(&maxPos); err != nil {
			return fmt.Errorf("max column position: %w", err)
		}

		now := time.Now().UTC()
		column = &models.Column{
			ID:        id,
			BoardID:   boardID,
			Title:     title,
			Position:  int(maxPos.Int64) + 1,
			CreatedAt: now,
			UpdatedAt: now,
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO board_columns (id, board_id, title, position, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, column.ID, column.BoardID, column.Title, column.Position, column.CreatedAt, column.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert column: %w", err)
		}

		if err := logAction(tx, sessionID, string(models.ActionColumnCreate), "board_columns", column.ID, nil, column); err != nil {
			return err
		}
		return tx.Commit()
	})
	return column, err
}

// RenameColumn updates the column title.
func (db *DB) RenameColumn(id, title, sessionID string) error {
	return db.withWriteLock(func() error {
		prev, err := db.GetColumn(id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`UPDATE board_columns SET title = ?, updated_at = ? WHERE id = ?`, title, now, id)
		if err != nil {
			return fmt.Errorf("rename column: %w", err)
		}

		updated := *prev
		updated.Title = title
		updated.UpdatedAt = now
		if err := logAction(tx, sessionID, string(models.ActionColumnUpdate), "board_columns", id, prev, &updated); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// DeleteColumn removes a column, soft-deleting every task it contains, and
// renumbers the remaining columns 1..N.
func (db *DB) DeleteColumn(id, sessionID string) error {
	return db.withWriteLock(func() error {
		prev, err := db.GetColumn(id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		// Cascade soft-delete to contained tasks so they land in the
		// deleted pool and stay restorable.
		taskIDs, err := columnTaskIDs(tx, id)
		if err != nil {
			return err
		}
		for _, taskID := range taskIDs {
			prevTask, err := getTaskTx(tx, taskID)
			if err != nil {
				return err
			}
			_, err = tx.Exec(`UPDATE tasks SET deleted_at = ?, updated_at = ? WHERE id = ?`, now, now, taskID)
			if err != nil {
				return fmt.Errorf("soft-delete task %s: %w", taskID, err)
			}
			deleted := *prevTask
			deleted.DeletedAt = &now
			deleted.UpdatedAt = now
			if err := logAction(tx, sessionID, string(models.ActionTaskDelete), "tasks", taskID, prevTask, &deleted); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(`DELETE FROM board_columns WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete column: %w", err)
		}
		if err := logAction(tx, sessionID, string(models.ActionColumnDelete), "board_columns", id, prev, nil); err != nil {
			return err
		}

		if err := renumberColumnsTx(tx, prev.BoardID, sessionID); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// RenumberColumns persists positions 1..N for the given column order.
// Columns absent from orderedIDs keep their relative order after the listed ones.
func (db *DB) RenumberColumns(boardID string, orderedIDs []string, sessionID string) error {
	return db.withWriteLock(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := setColumnPositions(tx, boardID, orderedIDs, sessionID); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// setColumnPositions writes position i+1 for each id in order, logging only
// the columns whose position actually changed.
func setColumnPositions(tx *sql.Tx, boardID string, orderedIDs []string, sessionID string) error {
	now := time.Now().UTC()
	for i, id := range orderedIDs {
		want := i + 1

		var current int
		err := tx.QueryRow(`SELECT position FROM board_columns WHERE id = ? AND board_id = ?`, id, boardID).Scan(&current)
		if err == sql.ErrNoRows {
			continue // defensive: stale id in the ordered list
		}
		if err != nil {
			return fmt.Errorf("read column position: %w", err)
		}
		if current == want {
			continue
		}

		_, err = tx.Exec(`UPDATE board_columns SET position = ?, updated_at = ? WHERE id = ?`, want, now, id)
		if err != nil {
			return fmt.Errorf("set column position: %w", err)
		}
		if err := logAction(tx, sessionID, string(models.ActionColumnUpdate), "board_columns", id,
			map[string]any{"position": current}, map[string]any{"position": want, "updated_at": now}); err != nil {
			return err
		}
	}
	return nil
}

// renumberColumnsTx rewrites all column positions 1..N in current order.
func renumberColumnsTx(tx *sql.Tx, boardID, sessionID string) error {
	rows, err := tx.Query(`SELECT id FROM board_columns WHERE board_id = ? ORDER BY position ASC`, boardID)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	return setColumnPositions(tx, boardID, ids, sessionID)
}
