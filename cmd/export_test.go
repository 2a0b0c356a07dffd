package cmd

import (
	"testing"
	"time"

	"github.com/marcus/kanban/internal/actions"
	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/state"
)

func TestImportDocumentMaterializesBoard(t *testing.T) {
	database, err := db.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer database.Close()

	// Build a source board with order, labels, subtasks, and a completed
	// task outside the done column.
	board, err := database.CreateBoard("Source", "", "s1")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	a := actions.New(database, "s1")
	if err := a.Load(board.ID); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	col := a.Document().Columns[0].ID
	due := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	first, err := a.CreateTask(col, db.TaskInput{Title: "first", DueAt: &due})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	second, err := a.CreateTask(col, db.TaskInput{Title: "second", Description: "body"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := a.CreateLabel("infra", ""); err != nil {
		t.Fatalf("CreateLabel failed: %v", err)
	}
	if err := a.AttachLabel(first.ID, "infra"); err != nil {
		t.Fatalf("AttachLabel failed: %v", err)
	}
	if err := a.SetSubtasks(first.ID, []db.SubtaskInput{
		{Title: "step one", Completed: true},
		{Title: "step two"},
	}); err != nil {
		t.Fatalf("SetSubtasks failed: %v", err)
	}
	// Completed at the store level so the task stays in its column.
	if _, err := database.SetTaskCompleted(second.ID, true, "s1"); err != nil {
		t.Fatalf("SetTaskCompleted failed: %v", err)
	}
	if err := a.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	a.Stop()

	data, err := state.Export(a.Document())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	doc, err := state.Import(data)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	imported, err := importDocument(database, doc, "s1")
	if err != nil {
		t.Fatalf("importDocument failed: %v", err)
	}
	if imported.ID == board.ID {
		t.Fatal("import should create a fresh board")
	}

	b := actions.New(database, "s1")
	if err := b.Load(imported.ID); err != nil {
		t.Fatalf("Load imported failed: %v", err)
	}
	defer b.Stop()
	got := b.Document()

	if got.Title != "Source" {
		t.Errorf("title: %q", got.Title)
	}
	if len(got.Columns) != len(doc.Columns) {
		t.Fatalf("columns: %d, want %d", len(got.Columns), len(doc.Columns))
	}

	// New tasks land at position 1, so the document order only survives if
	// the importer restored it explicitly.
	ids := got.Columns[0].TaskIDs
	if len(ids) != 2 {
		t.Fatalf("tasks in first column: %d", len(ids))
	}
	a0, b0 := got.Tasks[ids[0]], got.Tasks[ids[1]]
	// Source order: "second" was created last and sits on top.
	if a0.Title != "second" || b0.Title != "first" {
		t.Errorf("order: %q, %q", a0.Title, b0.Title)
	}
	if !a0.Completed {
		t.Error("completed flag lost on import")
	}
	if a0.ID == second.ID || b0.ID == first.ID {
		t.Error("imported tasks should get fresh ids")
	}

	if len(b0.Labels) != 1 || b0.Labels[0] != "infra" {
		t.Errorf("labels: %v", b0.Labels)
	}
	if len(b0.Subtasks) != 2 || !b0.Subtasks[0].Completed || b0.Subtasks[1].Completed {
		t.Errorf("subtasks: %+v", b0.Subtasks)
	}
	if b0.DueAt == nil || !b0.DueAt.Equal(due) {
		t.Errorf("due: %v", b0.DueAt)
	}
}
