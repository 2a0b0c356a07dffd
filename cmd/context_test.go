package cmd

import (
	"strings"
	"testing"

	"github.com/marcus/kanban/internal/actions"
	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/models"
)

func setupBoard(t *testing.T) (*db.DB, *models.Document, string) {
	t.Helper()

	database, err := db.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	board, err := database.CreateBoard("Test Board", "", "s1")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}

	a := actions.New(database, "s1")
	if err := a.Load(board.ID); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	t.Cleanup(a.Stop)

	return database, a.Document(), board.ID
}

func TestFindTaskByIDAndPrefix(t *testing.T) {
	database, doc, _ := setupBoard(t)

	task, err := database.CreateTask(doc.BoardID, doc.Columns[0].ID, db.TaskInput{Title: "findable"}, "s1")
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	doc.Tasks[task.ID] = &models.TaskView{Task: *task}

	got, err := findTask(doc, task.ID)
	if err != nil || got.ID != task.ID {
		t.Fatalf("exact id: %v %v", got, err)
	}

	got, err = findTask(doc, task.ID[:8])
	if err != nil || got.ID != task.ID {
		t.Fatalf("prefix: %v %v", got, err)
	}

	if _, err := findTask(doc, "zzz-none"); err == nil {
		t.Error("unknown ref should error")
	}
}

func TestFindTaskAmbiguousPrefix(t *testing.T) {
	_, doc, _ := setupBoard(t)

	doc.Tasks["tk-aa1"] = &models.TaskView{Task: models.Task{ID: "tk-aa1"}}
	doc.Tasks["tk-aa2"] = &models.TaskView{Task: models.Task{ID: "tk-aa2"}}

	_, err := findTask(doc, "tk-aa")
	if err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Fatalf("expected ambiguous error, got %v", err)
	}
}

func TestFindColumnByTitleCaseInsensitive(t *testing.T) {
	_, doc, _ := setupBoard(t)

	col, err := findColumn(doc, "in progress")
	if err != nil {
		t.Fatalf("findColumn failed: %v", err)
	}
	if col.Title != "In Progress" {
		t.Errorf("title: %q", col.Title)
	}

	if _, err := findColumn(doc, "no-such-column"); err == nil {
		t.Error("unknown column should error")
	}
}

func TestCurrentBoardIDSoleBoard(t *testing.T) {
	database, _, boardID := setupBoard(t)

	got, err := currentBoardID(database, "")
	if err != nil {
		t.Fatalf("currentBoardID failed: %v", err)
	}
	if got != boardID {
		t.Errorf("board: %q, want %q", got, boardID)
	}
}

func TestCurrentBoardIDAmbiguousWithoutSetting(t *testing.T) {
	database, _, first := setupBoard(t)

	second, err := database.CreateBoard("Second", "", "s1")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}

	if _, err := currentBoardID(database, ""); err == nil {
		t.Fatal("two boards without a current setting should error")
	}

	// The remembered current board disambiguates.
	settings, err := database.GetUserSettings(localUserID)
	if err != nil {
		t.Fatalf("GetUserSettings failed: %v", err)
	}
	settings.CurrentBoardID = second.ID
	if err := database.SetUserSettings(settings, "s1"); err != nil {
		t.Fatalf("SetUserSettings failed: %v", err)
	}

	got, err := currentBoardID(database, "")
	if err != nil {
		t.Fatalf("currentBoardID failed: %v", err)
	}
	if got != second.ID {
		t.Errorf("board: %q, want %q", got, second.ID)
	}

	// An explicit flag wins over the setting.
	got, err = currentBoardID(database, first)
	if err != nil {
		t.Fatalf("currentBoardID with flag failed: %v", err)
	}
	if got != first {
		t.Errorf("board: %q, want %q", got, first)
	}
}
