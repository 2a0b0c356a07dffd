package state

import (
	"reflect"
	"testing"
	"time"

	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/models"
)

func sampleRows() *db.BoardRows {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	deletedAt := now.Add(time.Hour)

	return &db.BoardRows{
		Board: models.Board{ID: "bd-1", Title: "Project"},
		Columns: []models.Column{
			{ID: "cl-b", BoardID: "bd-1", Title: "Doing", Position: 2},
			{ID: "cl-a", BoardID: "bd-1", Title: "Todo", Position: 1},
		},
		Tasks: []models.Task{
			{ID: "tk-2", BoardID: "bd-1", ColumnID: "cl-a", Title: "second", Position: 2},
			{ID: "tk-1", BoardID: "bd-1", ColumnID: "cl-a", Title: "first", Position: 1},
			{ID: "tk-3", BoardID: "bd-1", ColumnID: "cl-b", Title: "doing", Position: 1},
			{ID: "tk-4", BoardID: "bd-1", ColumnID: "cl-a", Title: "gone", Position: 3, DeletedAt: &deletedAt},
		},
		Subtasks: []models.Subtask{
			{ID: "st-2", TaskID: "tk-1", Title: "b", Position: 2},
			{ID: "st-1", TaskID: "tk-1", Title: "a", Position: 1},
		},
		Labels: []models.Label{
			{ID: "lb-1", BoardID: "bd-1", Name: "bug"},
			{ID: "lb-2", BoardID: "bd-1", Name: "urgent"},
		},
		TaskLabels: []models.TaskLabel{
			{TaskID: "tk-1", LabelID: "lb-1"},
			{TaskID: "tk-1", LabelID: "lb-2"},
			{TaskID: "tk-3", LabelID: "lb-1"},
		},
	}
}

func TestBuildDocumentColumnsOrderedByPosition(t *testing.T) {
	doc := BuildDocument(sampleRows())

	if len(doc.Columns) != 2 {
		t.Fatalf("columns: got %d, want 2", len(doc.Columns))
	}
	if doc.Columns[0].ID != "cl-a" || doc.Columns[1].ID != "cl-b" {
		t.Errorf("columns out of order: %s, %s", doc.Columns[0].ID, doc.Columns[1].ID)
	}
	if !reflect.DeepEqual(doc.Columns[0].TaskIDs, []string{"tk-1", "tk-2"}) {
		t.Errorf("cl-a task ids = %v", doc.Columns[0].TaskIDs)
	}
	if !reflect.DeepEqual(doc.Columns[1].TaskIDs, []string{"tk-3"}) {
		t.Errorf("cl-b task ids = %v", doc.Columns[1].TaskIDs)
	}
}

func TestBuildDocumentExcludesDeletedFromColumns(t *testing.T) {
	doc := BuildDocument(sampleRows())

	for _, col := range doc.Columns {
		for _, id := range col.TaskIDs {
			if id == "tk-4" {
				t.Fatal("deleted task appears in a column's task list")
			}
			task, ok := doc.Tasks[id]
			if !ok {
				t.Fatalf("column references %s but tasks map lacks it", id)
			}
			if task.Deleted() {
				t.Fatalf("tasks map contains deleted task %s via column list", id)
			}
		}
	}

	if len(doc.DeletedTasks) != 1 {
		t.Fatalf("deleted tasks: got %d, want 1", len(doc.DeletedTasks))
	}
	d := doc.DeletedTasks[0]
	if d.ID != "tk-4" || d.OriginalColumnID != "cl-a" || d.OriginalPosition != 3 {
		t.Errorf("deleted projection = %+v", d)
	}
}

func TestBuildDocumentResolvesLabelsAndSubtasks(t *testing.T) {
	doc := BuildDocument(sampleRows())

	tk1 := doc.Tasks["tk-1"]
	if tk1 == nil {
		t.Fatal("tk-1 missing from tasks map")
	}
	if !reflect.DeepEqual(tk1.Labels, []string{"bug", "urgent"}) {
		t.Errorf("tk-1 labels = %v", tk1.Labels)
	}
	if len(tk1.Subtasks) != 2 || tk1.Subtasks[0].ID != "st-1" || tk1.Subtasks[1].ID != "st-2" {
		t.Errorf("tk-1 subtasks out of order: %+v", tk1.Subtasks)
	}

	if !reflect.DeepEqual(doc.Labels, []string{"bug", "urgent"}) {
		t.Errorf("board labels = %v", doc.Labels)
	}
}

func TestBuildDocumentIdempotent(t *testing.T) {
	rows := sampleRows()
	a := BuildDocument(rows)
	b := BuildDocument(rows)
	if !reflect.DeepEqual(a, b) {
		t.Error("same rows produced different documents")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	doc := BuildDocument(sampleRows())
	doc.ActiveID = "tk-1"        // ephemeral, must not survive
	doc.SelectedTaskID = "tk-2"  // ephemeral, must not survive

	data, err := Export(doc)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	got, err := Import(data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	want := *doc
	want.ActiveID = ""
	want.SelectedTaskID = ""
	if !reflect.DeepEqual(got, &want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, &want)
	}
}

func TestImportRejectsMissingKeys(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"missing tasks", `{"columns": []}`},
		{"missing columns", `{"tasks": {}}`},
		{"empty object", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Import([]byte(tt.data)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestImportDropsDanglingTaskIDs(t *testing.T) {
	data := []byte(`{"columns":[{"id":"cl-1","title":"Todo","taskIds":["tk-1","tk-ghost"]}],"tasks":{"tk-1":{"id":"tk-1","title":"ok","column_id":"cl-1","board_id":"bd-1","priority":"medium","completed":false,"position":1,"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"}}}`)
	doc, err := Import(data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !reflect.DeepEqual(doc.Columns[0].TaskIDs, []string{"tk-1"}) {
		t.Errorf("dangling id not dropped: %v", doc.Columns[0].TaskIDs)
	}
}
