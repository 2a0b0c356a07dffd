package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcus/kanban/internal/models"
)

const taskColumns = `id, board_id, column_id, title, description, priority, due_at,
	completed, completed_at, position, deleted_at, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	var t models.Task
	var dueAt, completedAt, deletedAt sql.NullTime
	err := row.Scan(&t.ID, &t.BoardID, &t.ColumnID, &t.Title, &t.Description, &t.Priority,
		&dueAt, &t.Completed, &completedAt, &t.Position, &deletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if dueAt.Valid {
		t.DueAt = &dueAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Time
	}
	return &t, nil
}

// GetTask retrieves a task by ID
func (db *DB) GetTask(id string) (*models.Task, error) {
	task, err := scanTask(db.conn.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %s", id)
	}
	return task, err
}

func getTaskTx(tx *sql.Tx, id string) (*models.Task, error) {
	task, err := scanTask(tx.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %s", id)
	}
	return task, err
}

// listTasks returns every task on a board, soft-deleted ones included.
func (db *DB) listTasks(boardID string) ([]models.Task, error) {
	rows, err := db.conn.Query(`SELECT `+taskColumns+` FROM tasks WHERE board_id = ? ORDER BY position ASC`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// columnTaskIDs returns the ordered ids of a column's non-deleted tasks.
func columnTaskIDs(tx *sql.Tx, columnID string) ([]string, error) {
	rows, err := tx.Query(`
		SELECT id FROM tasks
		WHERE column_id = ? AND deleted_at IS NULL
		ORDER BY position ASC`, columnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TaskInput carries the user-editable task fields.
type TaskInput struct {
	Title       string
	Description string
	Priority    models.Priority
	DueAt       *time.Time
}

// CreateTask inserts a new task at the top of the column. Existing tasks are
// shifted down first so the new row can take position 1.
func (db *DB) CreateTask(boardID, columnID string, in TaskInput, sessionID string) (*models.Task, error) {
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !models.ValidPriority(in.Priority) {
		return nil, fmt.Errorf("invalid priority: %s", in.Priority)
	}

	var task *models.Task
	err := db.withWriteLock(func() error {
		id, err := generateTaskID()
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		task = &models.Task{
			ID:        id,
			BoardID:   boardID,
			ColumnID:  columnID,
			Title:     in.Title,
			Description: in.Description,
			Priority:  in.Priority,
			DueAt:     in.DueAt,
			Position:  1,
			CreatedAt: now,
			UpdatedAt: now,
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		// Shift existing rows before inserting at position 1
		_, err = tx.Exec(`
			UPDATE tasks SET position = position + 1
			WHERE column_id = ? AND deleted_at IS NULL`, columnID)
		if err != nil {
			return fmt.Errorf("shift task positions: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO tasks (id, board_id, column_id, title, description, priority, due_at, completed, position, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, 1, ?, ?)
		`, task.ID, task.BoardID, task.ColumnID, task.Title, task.Description, task.Priority, task.DueAt, task.CreatedAt, task.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}

		if err := logAction(tx, sessionID, string(models.ActionTaskCreate), "tasks", task.ID, nil, task); err != nil {
			return err
		}
		return tx.Commit()
	})
	return task, err
}

// UpdateTask updates the user-editable fields of a task.
func (db *DB) UpdateTask(id string, in TaskInput, sessionID string) (*models.Task, error) {
	if in.Priority != "" && !models.ValidPriority(in.Priority) {
		return nil, fmt.Errorf("invalid priority: %s", in.Priority)
	}

	var updated *models.Task
	err := db.withWriteLock(func() error {
		prev, err := db.GetTask(id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		u := *prev
		u.Title = in.Title
		u.Description = in.Description
		if in.Priority != "" {
			u.Priority = in.Priority
		}
		u.DueAt = in.DueAt
		u.UpdatedAt = now

		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			UPDATE tasks SET title = ?, description = ?, priority = ?, due_at = ?, updated_at = ?
			WHERE id = ?`, u.Title, u.Description, u.Priority, u.DueAt, u.UpdatedAt, id)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}

		if err := logAction(tx, sessionID, string(models.ActionTaskUpdate), "tasks", id, prev, &u); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		updated = &u
		return nil
	})
	return updated, err
}

// MoveTask relocates a task and persists the exact local order of both
// affected columns: every remaining task in the source column and every task
// in the destination column is renumbered 1..N.
func (db *DB) MoveTask(taskID, toColumnID string, sourceOrder, destOrder []string, sessionID string) error {
	return db.withWriteLock(func() error {
		prev, err := db.GetTask(taskID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if prev.ColumnID != toColumnID {
			_, err = tx.Exec(`UPDATE tasks SET column_id = ?, updated_at = ? WHERE id = ?`, toColumnID, now, taskID)
			if err != nil {
				return fmt.Errorf("move task: %w", err)
			}
			moved := *prev
			moved.ColumnID = toColumnID
			moved.UpdatedAt = now
			if err := logAction(tx, sessionID, string(models.ActionTaskMove), "tasks", taskID, prev, &moved); err != nil {
				return err
			}
		}

		if prev.ColumnID != toColumnID {
			if err := setTaskPositions(tx, prev.ColumnID, sourceOrder, sessionID); err != nil {
				return err
			}
		}
		if err := setTaskPositions(tx, toColumnID, destOrder, sessionID); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// SetColumnTaskOrder renumbers a single column's tasks to 1..N matching the
// given order exactly.
func (db *DB) SetColumnTaskOrder(columnID string, orderedIDs []string, sessionID string) error {
	return db.withWriteLock(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := setTaskPositions(tx, columnID, orderedIDs, sessionID); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// setTaskPositions writes position i+1 for each id, logging changed rows only.
func setTaskPositions(tx *sql.Tx, columnID string, orderedIDs []string, sessionID string) error {
	now := time.Now().UTC()
	for i, id := range orderedIDs {
		want := i + 1

		var current int
		err := tx.QueryRow(`SELECT position FROM tasks WHERE id = ? AND column_id = ?`, id, columnID).Scan(&current)
		if err == sql.ErrNoRows {
			continue // defensive: stale id in the ordered list
		}
		if err != nil {
			return fmt.Errorf("read task position: %w", err)
		}
		if current == want {
			continue
		}

		_, err = tx.Exec(`UPDATE tasks SET position = ?, updated_at = ? WHERE id = ?`, want, now, id)
		if err != nil {
			return fmt.Errorf("set task position: %w", err)
		}
		if err := logAction(tx, sessionID, string(models.ActionTaskUpdate), "tasks", id,
			map[string]any{"position": current}, map[string]any{"position": want, "updated_at": now}); err != nil {
			return err
		}
	}
	return nil
}

// SetTaskCompleted flips the completion flag and stamps completed_at.
func (db *DB) SetTaskCompleted(id string, completed bool, sessionID string) (*models.Task, error) {
	var updated *models.Task
	err := db.withWriteLock(func() error {
		prev, err := db.GetTask(id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		u := *prev
		u.Completed = completed
		u.UpdatedAt = now
		if completed {
			u.CompletedAt = &now
		} else {
			u.CompletedAt = nil
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`UPDATE tasks SET completed = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
			u.Completed, u.CompletedAt, u.UpdatedAt, id)
		if err != nil {
			return fmt.Errorf("set task completed: %w", err)
		}

		if err := logAction(tx, sessionID, string(models.ActionTaskComplete), "tasks", id, prev, &u); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		updated = &u
		return nil
	})
	return updated, err
}

// SoftDeleteTask marks a task deleted. Its column and position are left
// untouched so RestoreTask can put it back where it was.
func (db *DB) SoftDeleteTask(id, sessionID string) error {
	return db.withWriteLock(func() error {
		prev, err := db.GetTask(id)
		if err != nil {
			return err
		}
		if prev.Deleted() {
			return nil
		}

		now := time.Now().UTC()
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`UPDATE tasks SET deleted_at = ?, updated_at = ? WHERE id = ?`, now, now, id)
		if err != nil {
			return fmt.Errorf("soft-delete task: %w", err)
		}

		deleted := *prev
		deleted.DeletedAt = &now
		deleted.UpdatedAt = now
		if err := logAction(tx, sessionID, string(models.ActionTaskDelete), "tasks", id, prev, &deleted); err != nil {
			return err
		}

		// Close the gap in the source column
		ids, err := columnTaskIDs(tx, prev.ColumnID)
		if err != nil {
			return err
		}
		if err := setTaskPositions(tx, prev.ColumnID, ids, sessionID); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// RestoreTask clears the soft-delete marker, reinserting the task at its
// original position (clamped to the end when the column shrank).
func (db *DB) RestoreTask(id, sessionID string) error {
	return db.withWriteLock(func() error {
		prev, err := db.GetTask(id)
		if err != nil {
			return err
		}
		if !prev.Deleted() {
			return nil
		}

		// The original column may be gone; fall back to the first column.
		columnID := prev.ColumnID
		if _, err := db.GetColumn(columnID); err != nil {
			columns, err := db.ListColumns(prev.BoardID)
			if err != nil {
				return err
			}
			if len(columns) == 0 {
				return fmt.Errorf("restore task %s: board has no columns", id)
			}
			columnID = columns[0].ID
		}

		now := time.Now().UTC()
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`UPDATE tasks SET deleted_at = NULL, column_id = ?, updated_at = ? WHERE id = ?`, columnID, now, id)
		if err != nil {
			return fmt.Errorf("restore task: %w", err)
		}

		restored := *prev
		restored.DeletedAt = nil
		restored.ColumnID = columnID
		restored.UpdatedAt = now
		if err := logAction(tx, sessionID, string(models.ActionTaskRestore), "tasks", id, prev, &restored); err != nil {
			return err
		}

		// Reinsert at the original position, clamped to the end.
		ids, err := columnTaskIDs(tx, columnID)
		if err != nil {
			return err
		}
		reordered := make([]string, 0, len(ids))
		inserted := false
		for _, tid := range ids {
			if tid == id {
				continue
			}
			if len(reordered) == prev.Position-1 {
				reordered = append(reordered, id)
				inserted = true
			}
			reordered = append(reordered, tid)
		}
		if !inserted {
			reordered = append(reordered, id)
		}
		if err := setTaskPositions(tx, columnID, reordered, sessionID); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// PurgeTask permanently removes a task, its subtasks, and its label joins.
// Only soft-deleted tasks may be purged.
func (db *DB) PurgeTask(id, sessionID string) error {
	return db.withWriteLock(func() error {
		prev, err := db.GetTask(id)
		if err != nil {
			return err
		}
		if !prev.Deleted() {
			return fmt.Errorf("task %s is not deleted; delete it first", id)
		}
		return db.purgeTaskLocked(prev, sessionID)
	})
}

func (db *DB) purgeTaskLocked(task *models.Task, sessionID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM task_labels WHERE task_id = ?`, task.ID); err != nil {
		return fmt.Errorf("purge task labels: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM subtasks WHERE task_id = ?`, task.ID); err != nil {
		return fmt.Errorf("purge subtasks: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM tasks WHERE id = ?`, task.ID); err != nil {
		return fmt.Errorf("purge task: %w", err)
	}
	if err := logAction(tx, sessionID, string(models.ActionTaskPurge), "tasks", task.ID, task, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ListDeletedTasks returns the soft-deleted pool for a board, newest first.
func (db *DB) ListDeletedTasks(boardID string) ([]models.Task, error) {
	rows, err := db.conn.Query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE board_id = ? AND deleted_at IS NOT NULL
		ORDER BY deleted_at DESC`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// CleanupDeleted purges soft-deleted tasks older than the board's retention
// window. Returns the number of tasks purged.
func (db *DB) CleanupDeleted(boardID, sessionID string) (int, error) {
	settings, err := db.GetBoardSettings(boardID)
	if err != nil {
		return 0, err
	}
	if settings.DeletedRetention <= 0 {
		return 0, nil // keep forever
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -settings.DeletedRetention)
	deleted, err := db.ListDeletedTasks(boardID)
	if err != nil {
		return 0, err
	}

	purged := 0
	err = db.withWriteLock(func() error {
		for i := range deleted {
			t := &deleted[i]
			if t.DeletedAt == nil || t.DeletedAt.After(cutoff) {
				continue
			}
			if err := db.purgeTaskLocked(t, sessionID); err != nil {
				return err
			}
			purged++
		}
		now := time.Now().UTC()
		_, err := db.conn.Exec(`UPDATE board_settings SET last_cleanup_at = ? WHERE board_id = ?`, now, boardID)
		return err
	})
	return purged, err
}
