package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/kanban/internal/models"
)

// ErrLabelExists is returned when a label name collides case-insensitively
// with an existing label on the same board.
var ErrLabelExists = fmt.Errorf("label already exists")

// ListLabels returns a board's labels ordered by name.
func (db *DB) ListLabels(boardID string) ([]models.Label, error) {
	rows, err := db.conn.Query(`
		SELECT id, board_id, name, color, created_at, updated_at
		FROM labels WHERE board_id = ? ORDER BY name COLLATE NOCASE ASC`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []models.Label
	for rows.Next() {
		var l models.Label
		if err := rows.Scan(&l.ID, &l.BoardID, &l.Name, &l.Color, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// GetLabelByName finds a label by name, case-insensitively.
func (db *DB) GetLabelByName(boardID, name string) (*models.Label, error) {
	var l models.Label
	err := db.conn.QueryRow(`
		SELECT id, board_id, name, color, created_at, updated_at
		FROM labels WHERE board_id = ? AND name = ? COLLATE NOCASE`, boardID, name).
		Scan(&l.ID, &l.BoardID, &l.Name, &l.Color, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("label not found: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLabel adds a label. Name uniqueness is case-insensitive per board.
func (db *DB) CreateLabel(boardID, name, color, sessionID string) (*models.Label, error) {
	var label *models.Label
	err := db.withWriteLock(func() error {
		if existing, _ := db.GetLabelByName(boardID, name); existing != nil {
			return fmt.Errorf("%w: %s", ErrLabelExists, existing.Name)
		}

		id, err := generateLabelID()
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		label = &models.Label{
			ID:        id,
			BoardID:   boardID,
			Name:      name,
			Color:     color,
			CreatedAt: now,
			UpdatedAt: now,
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO labels (id, board_id, name, color, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			label.ID, label.BoardID, label.Name, label.Color, label.CreatedAt, label.UpdatedAt)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				return fmt.Errorf("%w: %s", ErrLabelExists, name)
			}
			return fmt.Errorf("insert label: %w", err)
		}

		if err := logAction(tx, sessionID, string(models.ActionLabelCreate), "labels", label.ID, nil, label); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return label, nil
}

// RenameLabel changes a label's name and/or color.
func (db *DB) RenameLabel(id, name, color, sessionID string) error {
	return db.withWriteLock(func() error {
		var prev models.Label
		err := db.conn.QueryRow(`
			SELECT id, board_id, name, color, created_at, updated_at
			FROM labels WHERE id = ?`, id).
			Scan(&prev.ID, &prev.BoardID, &prev.Name, &prev.Color, &prev.CreatedAt, &prev.UpdatedAt)
		if err == sql.ErrNoRows {
			return fmt.Errorf("label not found: %s", id)
		}
		if err != nil {
			return err
		}

		// Renaming onto another label's name (other than a case change of
		// itself) violates per-board uniqueness.
		if !strings.EqualFold(prev.Name, name) {
			if existing, _ := db.GetLabelByName(prev.BoardID, name); existing != nil {
				return fmt.Errorf("%w: %s", ErrLabelExists, existing.Name)
			}
		}

		now := time.Now().UTC()
		updated := prev
		updated.Name = name
		updated.Color = color
		updated.UpdatedAt = now

		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`UPDATE labels SET name = ?, color = ?, updated_at = ? WHERE id = ?`, name, color, now, id)
		if err != nil {
			return fmt.Errorf("rename label: %w", err)
		}
		if err := logAction(tx, sessionID, string(models.ActionLabelUpdate), "labels", id, &prev, &updated); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// DeleteLabel removes a label and every task_labels row referencing it, which
// strips the name from every task's label list.
func (db *DB) DeleteLabel(id, sessionID string) error {
	return db.withWriteLock(func() error {
		var prev models.Label
		err := db.conn.QueryRow(`
			SELECT id, board_id, name, color, created_at, updated_at
			FROM labels WHERE id = ?`, id).
			Scan(&prev.ID, &prev.BoardID, &prev.Name, &prev.Color, &prev.CreatedAt, &prev.UpdatedAt)
		if err == sql.ErrNoRows {
			return fmt.Errorf("label not found: %s", id)
		}
		if err != nil {
			return err
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM task_labels WHERE label_id = ?`, id); err != nil {
			return fmt.Errorf("delete label joins: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM labels WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete label: %w", err)
		}
		if err := logAction(tx, sessionID, string(models.ActionLabelDelete), "labels", id, &prev, nil); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// AttachLabel links a label to a task. Attaching twice is a no-op.
func (db *DB) AttachLabel(taskID, labelID, sessionID string) error {
	return db.withWriteLock(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		res, err := tx.Exec(`INSERT OR IGNORE INTO task_labels (task_id, label_id) VALUES (?, ?)`, taskID, labelID)
		if err != nil {
			return fmt.Errorf("attach label: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil // already attached
		}

		join := models.TaskLabel{TaskID: taskID, LabelID: labelID}
		if err := logAction(tx, sessionID, string(models.ActionLabelAttach), "task_labels", taskID+":"+labelID, nil, join); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// DetachLabel unlinks a label from a task. Detaching an absent link is a no-op.
func (db *DB) DetachLabel(taskID, labelID, sessionID string) error {
	return db.withWriteLock(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		res, err := tx.Exec(`DELETE FROM task_labels WHERE task_id = ? AND label_id = ?`, taskID, labelID)
		if err != nil {
			return fmt.Errorf("detach label: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		join := models.TaskLabel{TaskID: taskID, LabelID: labelID}
		if err := logAction(tx, sessionID, string(models.ActionLabelDetach), "task_labels", taskID+":"+labelID, join, nil); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// listTaskLabels returns every task↔label join on a board.
func (db *DB) listTaskLabels(boardID string) ([]models.TaskLabel, error) {
	rows, err := db.conn.Query(`
		SELECT tl.task_id, tl.label_id
		FROM task_labels tl JOIN tasks t ON t.id = tl.task_id
		WHERE t.board_id = ?`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var joins []models.TaskLabel
	for rows.Next() {
		var j models.TaskLabel
		if err := rows.Scan(&j.TaskID, &j.LabelID); err != nil {
			return nil, err
		}
		joins = append(joins, j)
	}
	return joins, rows.Err()
}
