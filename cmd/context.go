package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/marcus/kanban/internal/actions"
	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/models"
	"github.com/marcus/kanban/internal/output"
	"github.com/marcus/kanban/internal/session"
)

// localUserID keys the user_settings row for this machine's preferences.
const localUserID = "local"

// openStore opens the board database under the base directory.
func openStore() (*db.DB, error) {
	database, err := db.Open(getBaseDir())
	if err != nil {
		output.Error("%v", err)
		return nil, err
	}
	return database, nil
}

// loadIdentity resolves the persisted device id and mints a session id.
func loadIdentity() (session.Identity, error) {
	ident, err := session.Load()
	if err != nil {
		output.Error("%v", err)
	}
	return ident, err
}

// currentBoardID returns the board targeted by commands: the --board flag
// value when given, else the remembered current board, else the only board.
func currentBoardID(database *db.DB, flagValue string) (string, error) {
	if flagValue != "" {
		board, err := database.GetBoard(flagValue)
		if err != nil {
			return "", err
		}
		if board == nil {
			return "", fmt.Errorf("unknown board: %s", flagValue)
		}
		return board.ID, nil
	}

	settings, err := database.GetUserSettings(localUserID)
	if err != nil {
		return "", err
	}
	if settings.CurrentBoardID != "" {
		if board, _ := database.GetBoard(settings.CurrentBoardID); board != nil {
			return board.ID, nil
		}
	}

	boards, err := database.ListBoards()
	if err != nil {
		return "", err
	}
	switch len(boards) {
	case 0:
		return "", fmt.Errorf("no boards yet: run 'kanban init'")
	case 1:
		return boards[0].ID, nil
	default:
		return "", fmt.Errorf("multiple boards: pick one with --board or 'kanban board use'")
	}
}

// loadActions opens the action layer over the given board.
func loadActions(database *db.DB, boardID, sessionID string) (*actions.Actions, error) {
	a := actions.New(database, sessionID)
	if err := a.Load(boardID); err != nil {
		output.Error("load board: %v", err)
		return nil, err
	}
	return a, nil
}

// boardContext bundles everything a board-scoped command needs.
type boardContext struct {
	store   *db.DB
	actions *actions.Actions
	ident   session.Identity
	boardID string
}

// openBoardContext wires store, identity, and action layer for the board
// selected by the --board flag (or the current board).
func openBoardContext(boardFlag string) (*boardContext, error) {
	database, err := openStore()
	if err != nil {
		return nil, err
	}

	ident, err := loadIdentity()
	if err != nil {
		database.Close()
		return nil, err
	}

	boardID, err := currentBoardID(database, boardFlag)
	if err != nil {
		output.Error("%v", err)
		database.Close()
		return nil, err
	}

	maybeCleanupDeleted(database, boardID, ident.SessionID)

	a, err := loadActions(database, boardID, ident.SessionID)
	if err != nil {
		database.Close()
		return nil, err
	}

	return &boardContext{store: database, actions: a, ident: ident, boardID: boardID}, nil
}

// maybeCleanupDeleted purges expired deleted tasks at most once a day per
// board. Failures are logged, never surfaced.
func maybeCleanupDeleted(database *db.DB, boardID, sessionID string) {
	settings, err := database.GetBoardSettings(boardID)
	if err != nil || settings == nil || !settings.AutoCleanup {
		return
	}
	if settings.LastCleanupAt != nil && time.Since(*settings.LastCleanupAt) < 24*time.Hour {
		return
	}
	if n, err := database.CleanupDeleted(boardID, sessionID); err != nil {
		slog.Debug("cleanup deleted tasks", "err", err)
	} else if n > 0 {
		slog.Debug("cleanup deleted tasks", "purged", n)
	}
}

// Close releases the context's resources.
func (bc *boardContext) Close() {
	bc.actions.Stop()
	bc.store.Close()
}

// findTask resolves a task reference: exact id first, then unique id
// prefix. Ambiguous prefixes are an error listing the candidates.
func findTask(doc *models.Document, ref string) (*models.TaskView, error) {
	if view, ok := doc.Tasks[ref]; ok {
		return view, nil
	}

	var matches []*models.TaskView
	for id, view := range doc.Tasks {
		if strings.HasPrefix(id, ref) {
			matches = append(matches, view)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, fmt.Errorf("unknown task: %s", ref)
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		return nil, fmt.Errorf("ambiguous task %s: matches %s", ref, strings.Join(ids, ", "))
	}
}

// findColumn resolves a column by id, unique id prefix, or exact title
// (case-insensitive).
func findColumn(doc *models.Document, ref string) (*models.ColumnView, error) {
	for i := range doc.Columns {
		if doc.Columns[i].ID == ref || strings.EqualFold(doc.Columns[i].Title, ref) {
			return &doc.Columns[i], nil
		}
	}
	var match *models.ColumnView
	for i := range doc.Columns {
		if strings.HasPrefix(doc.Columns[i].ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("ambiguous column: %s", ref)
			}
			match = &doc.Columns[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("unknown column: %s", ref)
	}
	return match, nil
}
