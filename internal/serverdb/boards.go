package serverdb

import (
	"database/sql"
	"fmt"
	"time"
)

// Board is a hosted board's registry entry. The board's rows and event
// log live in its own database file; this row carries identity and
// membership only.
type Board struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// CreateBoard registers a hosted board and adds the owner as a member in
// a single transaction. id may be empty, in which case one is generated;
// clients pass their local board id so both sides agree on the name of
// the event log.
func (db *ServerDB) CreateBoard(id, title, ownerUserID string) (*Board, error) {
	if title == "" {
		return nil, fmt.Errorf("board title is required")
	}
	if id == "" {
		var err error
		id, err = generateID("b_")
		if err != nil {
			return nil, fmt.Errorf("generate board id: %w", err)
		}
	}

	now := time.Now().UTC()

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO boards (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, title, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert board: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO memberships (board_id, user_id, role, invited_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, ownerUserID, RoleOwner, "", now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &Board{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// GetBoard returns a board by ID, or nil when absent. Soft-deleted
// boards are excluded unless includeSoftDeleted is set.
func (db *ServerDB) GetBoard(id string, includeSoftDeleted bool) (*Board, error) {
	query := `SELECT id, title, created_at, updated_at, deleted_at FROM boards WHERE id = ?`
	if !includeSoftDeleted {
		query += ` AND deleted_at IS NULL`
	}

	b := &Board{}
	err := db.conn.QueryRow(query, id).Scan(&b.ID, &b.Title, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get board: %w", err)
	}
	return b, nil
}

// ListBoardsForUser returns all non-deleted boards the user is a member of.
func (db *ServerDB) ListBoardsForUser(userID string) ([]*Board, error) {
	rows, err := db.conn.Query(`
		SELECT b.id, b.title, b.created_at, b.updated_at, b.deleted_at
		FROM boards b
		JOIN memberships m ON m.board_id = b.id
		WHERE m.user_id = ? AND b.deleted_at IS NULL
		ORDER BY b.created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	var boards []*Board
	for rows.Next() {
		b := &Board{}
		if err := rows.Scan(&b.ID, &b.Title, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list boards: iterate: %w", err)
	}
	return boards, nil
}

// RenameBoard updates a board's title.
func (db *ServerDB) RenameBoard(id, title string) (*Board, error) {
	now := time.Now().UTC()
	res, err := db.conn.Exec(
		`UPDATE boards SET title = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		title, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("rename board: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, fmt.Errorf("board not found: %s", id)
	}
	return db.GetBoard(id, false)
}

// SoftDeleteBoard marks a board as deleted. Its event log is kept.
func (db *ServerDB) SoftDeleteBoard(id string) error {
	now := time.Now().UTC()
	res, err := db.conn.Exec(
		`UPDATE boards SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("soft delete board: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("board not found: %s", id)
	}
	return nil
}
