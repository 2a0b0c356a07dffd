package boardui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/kanban/internal/actions"
	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/models"
)

func setupModel(t *testing.T) (*db.DB, Model) {
	t.Helper()
	store, err := db.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("initialize store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	board, err := store.CreateBoard("Test Board", "", "s1")
	if err != nil {
		t.Fatalf("create board: %v", err)
	}

	a := actions.New(store, "s1")
	if err := a.Load(board.ID); err != nil {
		t.Fatalf("load board: %v", err)
	}

	m := New(a)
	m.Width = 120
	m.Height = 40
	return store, m
}

func addTask(t *testing.T, m Model, colIdx int, title string) *models.TaskView {
	t.Helper()
	doc := m.Actions.Document()
	view, err := m.Actions.CreateTask(doc.Columns[colIdx].ID, db.TaskInput{Title: title})
	if err != nil {
		t.Fatalf("create task %q: %v", title, err)
	}
	return view
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		updated, _ := m.Update(msg)
		var ok bool
		m, ok = updated.(Model)
		if !ok {
			t.Fatalf("update returned %T", updated)
		}
	}
	return m
}

func TestCursorMovementClamps(t *testing.T) {
	_, m := setupModel(t)
	addTask(t, m, 0, "one")
	addTask(t, m, 0, "two")

	// New tasks land at the top, so order is two, one.
	m = press(t, m, "j")
	if m.Row != 1 {
		t.Errorf("row after j: got %d", m.Row)
	}
	m = press(t, m, "j")
	if m.Row != 1 {
		t.Errorf("row should clamp at last card: got %d", m.Row)
	}
	m = press(t, m, "k", "k")
	if m.Row != 0 {
		t.Errorf("row after k: got %d", m.Row)
	}

	m = press(t, m, "l")
	if m.Col != 1 {
		t.Errorf("col after l: got %d", m.Col)
	}
	if m.Row != 0 {
		t.Errorf("row should clamp entering empty column: got %d", m.Row)
	}
	m = press(t, m, "h", "h")
	if m.Col != 0 {
		t.Errorf("col should clamp at first column: got %d", m.Col)
	}
}

func TestMoveCardAcrossColumns(t *testing.T) {
	_, m := setupModel(t)
	task := addTask(t, m, 0, "mover")

	m = press(t, m, "L")
	doc := m.Actions.Document()
	if got := doc.Columns[1].TaskIDs; len(got) != 1 || got[0] != task.ID {
		t.Fatalf("second column: %v", got)
	}
	if m.Col != 1 {
		t.Errorf("cursor should follow the card, col %d", m.Col)
	}

	m = press(t, m, "H")
	doc = m.Actions.Document()
	if got := doc.Columns[0].TaskIDs; len(got) != 1 || got[0] != task.ID {
		t.Fatalf("back in first column: %v", got)
	}
}

func TestMoveCardWithinColumn(t *testing.T) {
	_, m := setupModel(t)
	a := addTask(t, m, 0, "a")
	b := addTask(t, m, 0, "b")

	// Order is b, a. Cursor starts on b; J swaps it down.
	m = press(t, m, "J")
	doc := m.Actions.Document()
	if got := doc.Columns[0].TaskIDs; got[0] != a.ID || got[1] != b.ID {
		t.Fatalf("order after J: %v", got)
	}
	if m.Row != 1 {
		t.Errorf("cursor should follow the card, row %d", m.Row)
	}
}

func TestToggleCompleteMovesToDone(t *testing.T) {
	_, m := setupModel(t)
	task := addTask(t, m, 0, "finish me")

	m = press(t, m, "x")
	doc := m.Actions.Document()
	view := doc.Tasks[task.ID]
	if !view.Completed {
		t.Fatal("task should be completed")
	}

	done := doc.Columns[len(doc.Columns)-1]
	found := false
	for _, id := range done.TaskIDs {
		if id == task.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("completed task should sit in the done column, got %v", done.TaskIDs)
	}

	// The celebration hook fired for the completed task.
	select {
	case id := <-m.celebrations:
		if id != task.ID {
			t.Errorf("celebrated %q, want %q", id, task.ID)
		}
	default:
		t.Error("no celebration queued")
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	_, m := setupModel(t)
	task := addTask(t, m, 0, "doomed")

	m = press(t, m, "d")
	if m.Mode != modeConfirmDelete || m.ConfirmTask != task.ID {
		t.Fatalf("expected confirm mode for %s, got mode %d task %q", task.ID, m.Mode, m.ConfirmTask)
	}

	// Declining keeps the task.
	m = press(t, m, "n")
	if _, ok := m.Actions.Document().Tasks[task.ID]; !ok {
		t.Fatal("declined delete should keep the task")
	}

	m = press(t, m, "d", "y")
	if _, ok := m.Actions.Document().Tasks[task.ID]; ok {
		t.Fatal("confirmed delete should remove the task")
	}
	if m.Mode != modeBoard {
		t.Errorf("mode after delete: %d", m.Mode)
	}
}

func TestRemoteChangeReloadsDocument(t *testing.T) {
	store, m := setupModel(t)
	doc := m.Actions.Document()

	// A remote event lands in the row store behind the document's back.
	if _, err := store.CreateTask(doc.BoardID, doc.Columns[0].ID, db.TaskInput{Title: "remote"}, "other-session"); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if len(m.Actions.Document().Columns[0].TaskIDs) != 0 {
		t.Fatal("document should not see the row yet")
	}

	updated, _ := m.Update(RemoteChangeMsg{})
	m = updated.(Model)
	if len(m.Actions.Document().Columns[0].TaskIDs) != 1 {
		t.Error("reload should pick up the remote task")
	}
}

func TestViewRendersColumnsAndCards(t *testing.T) {
	_, m := setupModel(t)
	addTask(t, m, 0, "visible card")

	out := m.View()
	for _, want := range []string{"Test Board", "To Do (1)", "In Progress", "Done", "visible card"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestColumnTasksAppliesLabelFilter(t *testing.T) {
	_, m := setupModel(t)
	tagged := addTask(t, m, 0, "tagged")
	addTask(t, m, 0, "plain")

	if err := m.Actions.CreateLabel("infra", ""); err != nil {
		t.Fatalf("create label: %v", err)
	}
	if err := m.Actions.AttachLabel(tagged.ID, "infra"); err != nil {
		t.Fatalf("attach label: %v", err)
	}

	m.Actions.SetFilters([]string{"infra"})
	ids := m.columnTasks(0)
	if len(ids) != 1 || ids[0] != tagged.ID {
		t.Fatalf("filtered ids: %v", ids)
	}

	// Filters match case-insensitively.
	m.Actions.SetFilters([]string{"INFRA"})
	if ids := m.columnTasks(0); len(ids) != 1 {
		t.Errorf("case-insensitive filter: %v", ids)
	}

	m.Actions.SetFilters(nil)
	if ids := m.columnTasks(0); len(ids) != 2 {
		t.Errorf("clearing filters should restore all tasks: %v", ids)
	}
}

func TestColumnTasksSortModes(t *testing.T) {
	_, m := setupModel(t)
	doc := m.Actions.Document()
	col := doc.Columns[0].ID

	soon := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)
	later := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	low, err := m.Actions.CreateTask(col, db.TaskInput{Title: "low", Priority: models.PriorityLow, DueAt: &later})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	urgent, err := m.Actions.CreateTask(col, db.TaskInput{Title: "urgent", Priority: models.PriorityUrgent})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	medium, err := m.Actions.CreateTask(col, db.TaskInput{Title: "medium", DueAt: &soon})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	m.Actions.SetSortMode(models.SortPriority)
	ids := m.columnTasks(0)
	if ids[0] != urgent.ID || ids[2] != low.ID {
		t.Errorf("priority order: %v", ids)
	}

	m.Actions.SetSortMode(models.SortDueDate)
	ids = m.columnTasks(0)
	// Dated tasks come first, earliest due on top; undated tasks sink.
	if ids[0] != medium.ID || ids[1] != low.ID || ids[2] != urgent.ID {
		t.Errorf("due date order: %v", ids)
	}

	// The stored manual order is untouched by derived sorts.
	m.Actions.SetSortMode(models.SortManual)
	got := m.Actions.Document().Columns[0].TaskIDs
	if got[0] != medium.ID || got[1] != urgent.ID || got[2] != low.ID {
		t.Errorf("manual order disturbed: %v", got)
	}
}

func TestSortKeyCyclesModes(t *testing.T) {
	_, m := setupModel(t)
	addTask(t, m, 0, "one")

	m = press(t, m, "s")
	if got := m.Actions.Document().SortMode; got != models.SortPriority {
		t.Errorf("after first s: %q", got)
	}
	m = press(t, m, "s")
	if got := m.Actions.Document().SortMode; got != models.SortDueDate {
		t.Errorf("after second s: %q", got)
	}

	// Reordering keys are inert while a derived sort is active.
	m = press(t, m, "J")
	if m.ErrMsg == "" {
		t.Error("J under a derived sort should explain itself")
	}

	m = press(t, m, "s")
	if got := m.Actions.Document().SortMode; got != models.SortManual {
		t.Errorf("after third s: %q", got)
	}
}

func TestNewFormOpensForSelectedColumn(t *testing.T) {
	_, m := setupModel(t)

	m = press(t, m, "l", "n")
	if m.Mode != modeForm || m.Form == nil {
		t.Fatal("n should open the create form")
	}
	doc := m.Actions.Document()
	if m.Form.ColumnID != doc.Columns[1].ID {
		t.Errorf("form column: got %q, want the selected column", m.Form.ColumnID)
	}

	// Esc abandons the form without touching the board.
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(Model)
	if m.Mode != modeBoard || m.Form != nil {
		t.Error("esc should close the form")
	}
}
