package serverdb

import (
	"database/sql"
	"fmt"
	"time"
)

// Membership represents a user's role on a hosted board.
type Membership struct {
	BoardID   string
	UserID    string
	Role      string
	InvitedBy string
	CreatedAt time.Time
}

// AddMember adds a user to a board with the given role.
func (db *ServerDB) AddMember(boardID, userID, role, invitedByUserID string) (*Membership, error) {
	if !isValidRole(role) {
		return nil, fmt.Errorf("invalid role: %s", role)
	}

	var exists int
	if err := db.conn.QueryRow(`SELECT 1 FROM boards WHERE id = ? AND deleted_at IS NULL`, boardID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("board not found: %s", boardID)
		}
		return nil, fmt.Errorf("check board: %w", err)
	}
	if err := db.conn.QueryRow(`SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found: %s", userID)
		}
		return nil, fmt.Errorf("check user: %w", err)
	}

	now := time.Now().UTC()
	_, err := db.conn.Exec(
		`INSERT INTO memberships (board_id, user_id, role, invited_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		boardID, userID, role, invitedByUserID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}

	return &Membership{
		BoardID:   boardID,
		UserID:    userID,
		Role:      role,
		InvitedBy: invitedByUserID,
		CreatedAt: now,
	}, nil
}

// GetMembership returns a user's membership on a board, or nil if not found.
func (db *ServerDB) GetMembership(boardID, userID string) (*Membership, error) {
	m := &Membership{}
	err := db.conn.QueryRow(
		`SELECT board_id, user_id, role, invited_by, created_at FROM memberships WHERE board_id = ? AND user_id = ?`,
		boardID, userID,
	).Scan(&m.BoardID, &m.UserID, &m.Role, &m.InvitedBy, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// ListMembers returns all members of a board.
func (db *ServerDB) ListMembers(boardID string) ([]*Membership, error) {
	rows, err := db.conn.Query(
		`SELECT board_id, user_id, role, invited_by, created_at FROM memberships WHERE board_id = ? ORDER BY created_at`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		m := &Membership{}
		if err := rows.Scan(&m.BoardID, &m.UserID, &m.Role, &m.InvitedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list members: iterate: %w", err)
	}
	return members, nil
}

// UpdateMemberRole changes a member's role.
// Fails if demoting the user would leave the board with no owners.
func (db *ServerDB) UpdateMemberRole(boardID, userID, role string) error {
	if !isValidRole(role) {
		return fmt.Errorf("invalid role: %s", role)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRow(
		`SELECT role FROM memberships WHERE board_id = ? AND user_id = ?`,
		boardID, userID,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("membership not found")
	}
	if err != nil {
		return fmt.Errorf("get membership: %w", err)
	}

	if current == RoleOwner && role != RoleOwner {
		var ownerCount int
		if err := tx.QueryRow(
			`SELECT COUNT(*) FROM memberships WHERE board_id = ? AND role = 'owner'`,
			boardID,
		).Scan(&ownerCount); err != nil {
			return fmt.Errorf("count owners: %w", err)
		}
		if ownerCount <= 1 {
			return fmt.Errorf("cannot demote last owner of board")
		}
	}

	if _, err := tx.Exec(
		`UPDATE memberships SET role = ? WHERE board_id = ? AND user_id = ?`,
		role, boardID, userID,
	); err != nil {
		return fmt.Errorf("update member role: %w", err)
	}

	return tx.Commit()
}

// RemoveMember removes a user from a board.
// Fails if removing the user would leave the board with no owners.
func (db *ServerDB) RemoveMember(boardID, userID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var role string
	err = tx.QueryRow(
		`SELECT role FROM memberships WHERE board_id = ? AND user_id = ?`,
		boardID, userID,
	).Scan(&role)
	if err == sql.ErrNoRows {
		return fmt.Errorf("membership not found")
	}
	if err != nil {
		return fmt.Errorf("get membership: %w", err)
	}

	if role == RoleOwner {
		var ownerCount int
		err := tx.QueryRow(
			`SELECT COUNT(*) FROM memberships WHERE board_id = ? AND role = 'owner'`,
			boardID,
		).Scan(&ownerCount)
		if err != nil {
			return fmt.Errorf("count owners: %w", err)
		}
		if ownerCount <= 1 {
			return fmt.Errorf("cannot remove last owner from board")
		}
	}

	_, err = tx.Exec(
		`DELETE FROM memberships WHERE board_id = ? AND user_id = ?`,
		boardID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}

	return tx.Commit()
}

func isValidRole(role string) bool {
	return role == RoleOwner || role == RoleWriter || role == RoleReader
}
