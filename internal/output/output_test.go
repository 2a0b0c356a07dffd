package output

import (
	"strings"
	"testing"
	"time"

	"github.com/marcus/kanban/internal/models"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestSubtaskProgress(t *testing.T) {
	tests := []struct {
		name     string
		subtasks []models.Subtask
		want     string
	}{
		{"none", nil, ""},
		{"all open", []models.Subtask{{Title: "a"}, {Title: "b"}}, "0/2"},
		{"partial", []models.Subtask{{Title: "a", Completed: true}, {Title: "b"}}, "1/2"},
		{"all done", []models.Subtask{{Title: "a", Completed: true}}, "1/1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SubtaskProgress(tt.subtasks); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatDue(t *testing.T) {
	if got := FormatDue(nil); got != "" {
		t.Errorf("nil due: got %q", got)
	}

	overdue := FormatDue(timePtr(time.Now().Add(-48 * time.Hour)))
	if !strings.Contains(overdue, "overdue 2d") {
		t.Errorf("overdue: got %q", overdue)
	}

	today := FormatDue(timePtr(time.Now().Add(2 * time.Hour)))
	if !strings.Contains(today, "due today") {
		t.Errorf("today: got %q", today)
	}

	future := FormatDue(timePtr(time.Now().Add(72*time.Hour + time.Minute)))
	if !strings.Contains(future, "due in 3d") {
		t.Errorf("future: got %q", future)
	}
}

func TestFormatTaskShort(t *testing.T) {
	task := &models.TaskView{
		Task: models.Task{
			ID:       "tk-ab12",
			Title:    "Ship the release",
			Priority: models.PriorityHigh,
		},
		Labels: []string{"release", "urgent"},
		Subtasks: []models.Subtask{
			{Title: "tag", Completed: true},
			{Title: "announce"},
		},
	}

	got := FormatTaskShort(task)
	for _, want := range []string{"tk-ab12", "Ship the release", "[high]", "1/2", "#release #urgent"} {
		if !strings.Contains(got, want) {
			t.Errorf("short format missing %q in %q", want, got)
		}
	}
}

func TestFormatTaskLong(t *testing.T) {
	now := time.Now()
	task := &models.TaskView{
		Task: models.Task{
			ID:          "tk-ab12",
			Title:       "Ship the release",
			Description: "Cut the tag and push.",
			Priority:    models.PriorityUrgent,
			Completed:   true,
			CompletedAt: timePtr(now),
			CreatedAt:   now.Add(-time.Hour),
			UpdatedAt:   now,
		},
		Labels: []string{"release"},
		Subtasks: []models.Subtask{
			{Title: "tag", Completed: true},
			{Title: "announce"},
		},
	}

	got := FormatTaskLong(task, "Doing")
	for _, want := range []string{
		"tk-ab12: Ship the release",
		"Column: Doing",
		"[urgent]",
		"completed",
		"Labels: release",
		"Cut the tag and push.",
		"Subtasks (1/2):",
		"[x]",
		"[ ] announce",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("long format missing %q", want)
		}
	}
}

func TestFormatTaskDeleted(t *testing.T) {
	task := &models.DeletedTaskView{
		TaskView: models.TaskView{
			Task: models.Task{ID: "tk-gone", Title: "Old idea", Priority: models.PriorityLow},
		},
		DeletedAt: time.Now().Add(-2 * time.Hour),
	}

	got := FormatTaskDeleted(task)
	if !strings.Contains(got, "[deleted]") || !strings.Contains(got, "2h ago") {
		t.Errorf("deleted format: got %q", got)
	}
}

func TestFormatTimeAgo(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"just now", time.Now().Add(-10 * time.Second), "just now"},
		{"minutes", time.Now().Add(-5 * time.Minute), "5m ago"},
		{"one hour", time.Now().Add(-61 * time.Minute), "1h ago"},
		{"days", time.Now().Add(-49 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTimeAgo(tt.t); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	old := time.Date(2020, 3, 14, 0, 0, 0, 0, time.UTC)
	if got := FormatTimeAgo(old); got != "2020-03-14" {
		t.Errorf("old date: got %q", got)
	}
}

func TestFormatColumnSummary(t *testing.T) {
	col := models.ColumnView{Title: "To Do", TaskIDs: []string{"a", "b", "c"}}
	got := FormatColumnSummary(col)
	if !strings.Contains(got, "To Do") || !strings.Contains(got, "(3)") {
		t.Errorf("column summary: got %q", got)
	}
}

func TestIndentAndBullets(t *testing.T) {
	if got := IndentString("a\nb", 2); got != "  a\n  b" {
		t.Errorf("indent: got %q", got)
	}
	if got := IndentString("", 2); got != "" {
		t.Errorf("empty indent: got %q", got)
	}
	bullets := BulletList([]string{"x", "y"}, 2)
	if bullets[0] != "  - x" || bullets[1] != "  - y" {
		t.Errorf("bullets: got %v", bullets)
	}
}

func TestRenderDescription(t *testing.T) {
	empty, err := RenderDescriptionWithWidth("   ", 80)
	if err != nil || empty != "" {
		t.Errorf("blank input: %q, %v", empty, err)
	}

	got, err := RenderDescriptionWithWidth("# Heading\n\nSome **bold** text.", 60)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(got, "Heading") || !strings.Contains(got, "bold") {
		t.Errorf("rendered output missing content: %q", got)
	}
	if strings.HasSuffix(got, "\n") {
		t.Error("trailing newlines should be trimmed")
	}
}

func TestTerminalWidthFallback(t *testing.T) {
	t.Setenv("COLUMNS", "")
	// Tests run without a tty, so the fallback path is taken.
	if got := TerminalWidth(100); got != 100 {
		t.Errorf("fallback: got %d", got)
	}

	t.Setenv("COLUMNS", "72")
	if got := TerminalWidth(100); got != 72 {
		t.Errorf("COLUMNS: got %d", got)
	}
}
