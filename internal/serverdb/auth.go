package serverdb

import "fmt"

// Role constants
const (
	RoleOwner  = "owner"
	RoleWriter = "writer"
	RoleReader = "reader"
)

// roleLevel returns the numeric level for a role (higher = more permissions).
func roleLevel(role string) int {
	switch role {
	case RoleOwner:
		return 3
	case RoleWriter:
		return 2
	case RoleReader:
		return 1
	default:
		return 0
	}
}

// Authorize checks that the user has at least the required role on the board.
func (db *ServerDB) Authorize(boardID, userID, requiredRole string) error {
	m, err := db.GetMembership(boardID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if m == nil {
		return fmt.Errorf("not a member of board %s", boardID)
	}

	if roleLevel(m.Role) < roleLevel(requiredRole) {
		return fmt.Errorf("insufficient permissions: have %s, need %s", m.Role, requiredRole)
	}
	return nil
}

// CanPushEvents checks if the user can push events (requires writer role).
func (db *ServerDB) CanPushEvents(boardID, userID string) error {
	return db.Authorize(boardID, userID, RoleWriter)
}

// CanPullEvents checks if the user can pull events (requires reader role).
func (db *ServerDB) CanPullEvents(boardID, userID string) error {
	return db.Authorize(boardID, userID, RoleReader)
}

// CanManageMembers checks if the user can manage members (requires owner role).
func (db *ServerDB) CanManageMembers(boardID, userID string) error {
	return db.Authorize(boardID, userID, RoleOwner)
}

// CanDeleteBoard checks if the user can delete the board (requires owner role).
func (db *ServerDB) CanDeleteBoard(boardID, userID string) error {
	return db.Authorize(boardID, userID, RoleOwner)
}
