package boardui

import (
	"testing"
	"time"

	"github.com/marcus/kanban/internal/models"
)

func TestFormStateForEditPopulates(t *testing.T) {
	due := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	view := &models.TaskView{
		Task: models.Task{
			ID:          "tk-1",
			Title:       "Edit me",
			Description: "desc",
			Priority:    models.PriorityHigh,
			DueAt:       &due,
		},
		Labels: []string{"a", "b"},
		Subtasks: []models.Subtask{
			{ID: "st-1", Title: "first", Completed: true},
			{ID: "st-2", Title: "second"},
		},
	}

	fs := NewFormStateForEdit(view)
	if fs.Mode != FormModeEdit || fs.TaskID != "tk-1" {
		t.Fatalf("mode/id: %s %s", fs.Mode, fs.TaskID)
	}
	if fs.Title != "Edit me" || fs.Priority != "high" || fs.Due != "2026-10-01" {
		t.Errorf("fields: %+v", fs)
	}
	if fs.Labels != "a, b" {
		t.Errorf("labels: %q", fs.Labels)
	}
	if fs.Subtasks != "[x] first\n[ ] second" {
		t.Errorf("subtasks: %q", fs.Subtasks)
	}
	if !fs.ShowExtended {
		t.Error("editing a task with subtasks should show the subtask editor")
	}
}

func TestToInputParsesDue(t *testing.T) {
	fs := NewFormState("col-1")
	fs.Title = "  padded  "
	fs.Due = "2026-12-24"

	in, err := fs.ToInput()
	if err != nil {
		t.Fatalf("to input: %v", err)
	}
	if in.Title != "padded" {
		t.Errorf("title: %q", in.Title)
	}
	if in.DueAt == nil || in.DueAt.Format(dueDateLayout) != "2026-12-24" {
		t.Errorf("due: %v", in.DueAt)
	}

	fs.Due = "not a date"
	if _, err := fs.ToInput(); err == nil {
		t.Error("bad due date should error")
	}
}

func TestSubtaskInputsParsing(t *testing.T) {
	fs := NewFormState("col-1")
	fs.Subtasks = "[x] done one\n[ ] open one\nbare line\n\n   "

	got := fs.SubtaskInputs()
	if len(got) != 3 {
		t.Fatalf("inputs: %d, want 3", len(got))
	}
	if !got[0].Completed || got[0].Title != "done one" {
		t.Errorf("first: %+v", got[0])
	}
	if got[1].Completed || got[1].Title != "open one" {
		t.Errorf("second: %+v", got[1])
	}
	if got[2].Title != "bare line" {
		t.Errorf("third: %+v", got[2])
	}
}

func TestSubtaskInputsKeepIDsByPosition(t *testing.T) {
	view := &models.TaskView{
		Task: models.Task{ID: "tk-1", Title: "x"},
		Subtasks: []models.Subtask{
			{ID: "st-1", Title: "first"},
			{ID: "st-2", Title: "second"},
		},
	}
	fs := NewFormStateForEdit(view)
	fs.Subtasks = "[ ] renamed first\n[x] second\n[ ] brand new"

	got := fs.SubtaskInputs()
	if len(got) != 3 {
		t.Fatalf("inputs: %d", len(got))
	}
	if got[0].ID != "st-1" || got[1].ID != "st-2" {
		t.Errorf("existing ids: %q %q", got[0].ID, got[1].ID)
	}
	if got[2].ID != "" {
		t.Errorf("new line should have no id, got %q", got[2].ID)
	}
}

func TestLabelNames(t *testing.T) {
	fs := NewFormState("col-1")
	fs.Labels = " one, two ,, three "
	got := fs.LabelNames()
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("labels: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("label %d: %q", i, got[i])
		}
	}
}
