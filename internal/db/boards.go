package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcus/kanban/internal/models"
)

// DefaultColumnTitles are seeded onto every freshly created board.
var DefaultColumnTitles = []string{"To Do", "In Progress", "Review", "Done"}

// CreateBoard creates a board with default settings and the four default
// columns, logging every row so the sync engine pushes the full seed.
func (db *DB) CreateBoard(title, ownerID, sessionID string) (*models.Board, error) {
	var board *models.Board
	err := db.withWriteLock(func() error {
		id, err := generateBoardID()
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		board = &models.Board{
			ID:        id,
			OwnerID:   ownerID,
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO boards (id, owner_id, title, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, board.ID, board.OwnerID, board.Title, board.CreatedAt, board.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert board: %w", err)
		}

		settings := models.DefaultBoardSettings(board.ID)
		_, err = tx.Exec(`
			INSERT INTO board_settings (board_id, show_completed, save_deleted, deleted_retention, auto_cleanup)
			VALUES (?, ?, ?, ?, ?)
		`, settings.BoardID, settings.ShowCompleted, settings.SaveDeleted, settings.DeletedRetention, settings.AutoCleanup)
		if err != nil {
			return fmt.Errorf("insert board settings: %w", err)
		}

		if err := logAction(tx, sessionID, string(models.ActionBoardCreate), "boards", board.ID, nil, board); err != nil {
			return err
		}
		if err := logAction(tx, sessionID, string(models.ActionSettingsSet), "board_settings", board.ID, nil, settings); err != nil {
			return err
		}

		for i, title := range DefaultColumnTitles {
			colID, err := generateColumnID()
			if err != nil {
				return err
			}
			col := &models.Column{
				ID:        colID,
				BoardID:   board.ID,
				Title:     title,
				Position:  i + 1,
				CreatedAt: now,
				UpdatedAt: now,
			}
			_, err = tx.Exec(`
				INSERT INTO board_columns (id, board_id, title, position, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, col.ID, col.BoardID, col.Title, col.Position, col.CreatedAt, col.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert default column: %w", err)
			}
			if err := logAction(tx, sessionID, string(models.ActionColumnCreate), "board_columns", col.ID, nil, col); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
	return board, err
}

// GetBoard retrieves a board by ID
func (db *DB) GetBoard(id string) (*models.Board, error) {
	var board models.Board
	err := db.conn.QueryRow(`
		SELECT id, owner_id, title, created_at, updated_at
		FROM boards WHERE id = ?
	`, id).Scan(&board.ID, &board.OwnerID, &board.Title, &board.CreatedAt, &board.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("board not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &board, nil
}

// ListBoards returns all boards ordered by creation time.
func (db *DB) ListBoards() ([]models.Board, error) {
	rows, err := db.conn.Query(`
		SELECT id, owner_id, title, created_at, updated_at
		FROM boards ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boards []models.Board
	for rows.Next() {
		var b models.Board
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Title, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// RenameBoard updates the board title.
func (db *DB) RenameBoard(id, title, sessionID string) error {
	return db.withWriteLock(func() error {
		prev, err := db.GetBoard(id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		_, err = db.conn.Exec(`UPDATE boards SET title = ?, updated_at = ? WHERE id = ?`, title, now, id)
		if err != nil {
			return fmt.Errorf("rename board: %w", err)
		}

		updated := *prev
		updated.Title = title
		updated.UpdatedAt = now
		return logAction(db.conn, sessionID, string(models.ActionBoardUpdate), "boards", id, prev, &updated)
	})
}

// DeleteBoard removes a board and everything it owns. This is a hard delete;
// tasks get their soft-delete path, boards do not.
func (db *DB) DeleteBoard(id, sessionID string) error {
	return db.withWriteLock(func() error {
		prev, err := db.GetBoard(id)
		if err != nil {
			return err
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmts := []string{
			`DELETE FROM task_labels WHERE task_id IN (SELECT id FROM tasks WHERE board_id = ?)`,
			`DELETE FROM subtasks WHERE task_id IN (SELECT id FROM tasks WHERE board_id = ?)`,
			`DELETE FROM tasks WHERE board_id = ?`,
			`DELETE FROM labels WHERE board_id = ?`,
			`DELETE FROM board_columns WHERE board_id = ?`,
			`DELETE FROM board_settings WHERE board_id = ?`,
			`DELETE FROM boards WHERE id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt, id); err != nil {
				return fmt.Errorf("delete board: %w", err)
			}
		}

		if err := logAction(tx, sessionID, string(models.ActionBoardDelete), "boards", id, prev, nil); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// BoardRows is a snapshot of every row belonging to one board, the input to
// the document adapter.
type BoardRows struct {
	Board      models.Board
	Settings   models.BoardSettings
	Columns    []models.Column
	Tasks      []models.Task
	Subtasks   []models.Subtask
	Labels     []models.Label
	TaskLabels []models.TaskLabel
}

// LoadBoardRows reads a consistent snapshot of all rows for a board.
func (db *DB) LoadBoardRows(boardID string) (*BoardRows, error) {
	board, err := db.GetBoard(boardID)
	if err != nil {
		return nil, err
	}

	settings, err := db.GetBoardSettings(boardID)
	if err != nil {
		return nil, err
	}

	columns, err := db.ListColumns(boardID)
	if err != nil {
		return nil, err
	}

	tasks, err := db.listTasks(boardID)
	if err != nil {
		return nil, err
	}

	subtasks, err := db.listBoardSubtasks(boardID)
	if err != nil {
		return nil, err
	}

	labels, err := db.ListLabels(boardID)
	if err != nil {
		return nil, err
	}

	taskLabels, err := db.listTaskLabels(boardID)
	if err != nil {
		return nil, err
	}

	return &BoardRows{
		Board:      *board,
		Settings:   *settings,
		Columns:    columns,
		Tasks:      tasks,
		Subtasks:   subtasks,
		Labels:     labels,
		TaskLabels: taskLabels,
	}, nil
}
