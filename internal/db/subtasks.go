package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcus/kanban/internal/models"
)

// ListSubtasks returns a task's subtasks ordered by position.
func (db *DB) ListSubtasks(taskID string) ([]models.Subtask, error) {
	rows, err := db.conn.Query(`
		SELECT id, task_id, title, completed, position, created_at, updated_at
		FROM subtasks WHERE task_id = ? ORDER BY position ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSubtasks(rows)
}

// listBoardSubtasks returns every subtask on a board.
func (db *DB) listBoardSubtasks(boardID string) ([]models.Subtask, error) {
	rows, err := db.conn.Query(`
		SELECT s.id, s.task_id, s.title, s.completed, s.position, s.created_at, s.updated_at
		FROM subtasks s JOIN tasks t ON t.id = s.task_id
		WHERE t.board_id = ? ORDER BY s.task_id, s.position ASC`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSubtasks(rows)
}

func scanSubtasks(rows *sql.Rows) ([]models.Subtask, error) {
	var subtasks []models.Subtask
	for rows.Next() {
		var s models.Subtask
		if err := rows.Scan(&s.ID, &s.TaskID, &s.Title, &s.Completed, &s.Position, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		subtasks = append(subtasks, s)
	}
	return subtasks, rows.Err()
}

// SubtaskInput is one entry of a task's replacement subtask list.
type SubtaskInput struct {
	ID        string // empty for new subtasks
	Title     string
	Completed bool
}

// ReplaceSubtasks swaps a task's subtask list wholesale: rows not in the
// input are deleted, the rest are upserted with positions renumbered 1..N.
func (db *DB) ReplaceSubtasks(taskID string, in []SubtaskInput, sessionID string) ([]models.Subtask, error) {
	prev, err := db.ListSubtasks(taskID)
	if err != nil {
		return nil, err
	}

	var result []models.Subtask
	err = db.withWriteLock(func() error {
		now := time.Now().UTC()

		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM subtasks WHERE task_id = ?`, taskID); err != nil {
			return fmt.Errorf("clear subtasks: %w", err)
		}

		created := make(map[string]time.Time, len(prev))
		for _, s := range prev {
			created[s.ID] = s.CreatedAt
		}

		result = make([]models.Subtask, 0, len(in))
		for i, entry := range in {
			id := entry.ID
			if id == "" {
				id, err = generateSubtaskID()
				if err != nil {
					return err
				}
			}
			createdAt := now
			if at, ok := created[id]; ok {
				createdAt = at
			}
			s := models.Subtask{
				ID:        id,
				TaskID:    taskID,
				Title:     entry.Title,
				Completed: entry.Completed,
				Position:  i + 1,
				CreatedAt: createdAt,
				UpdatedAt: now,
			}
			_, err = tx.Exec(`
				INSERT INTO subtasks (id, task_id, title, completed, position, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				s.ID, s.TaskID, s.Title, s.Completed, s.Position, s.CreatedAt, s.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert subtask: %w", err)
			}
			result = append(result, s)
		}

		if err := logAction(tx, sessionID, string(models.ActionSubtaskSet), "subtasks", taskID,
			prev, result); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ToggleSubtask flips a single subtask's completed flag in place.
func (db *DB) ToggleSubtask(id, sessionID string) error {
	return db.withWriteLock(func() error {
		var s models.Subtask
		err := db.conn.QueryRow(`
			SELECT id, task_id, title, completed, position, created_at, updated_at
			FROM subtasks WHERE id = ?`, id).
			Scan(&s.ID, &s.TaskID, &s.Title, &s.Completed, &s.Position, &s.CreatedAt, &s.UpdatedAt)
		if err == sql.ErrNoRows {
			return fmt.Errorf("subtask not found: %s", id)
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		toggled := s
		toggled.Completed = !s.Completed
		toggled.UpdatedAt = now

		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`UPDATE subtasks SET completed = ?, updated_at = ? WHERE id = ?`, toggled.Completed, now, id)
		if err != nil {
			return fmt.Errorf("toggle subtask: %w", err)
		}
		if err := logAction(tx, sessionID, string(models.ActionSubtaskSet), "subtasks", s.TaskID, &s, &toggled); err != nil {
			return err
		}
		return tx.Commit()
	})
}
