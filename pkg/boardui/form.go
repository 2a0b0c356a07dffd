package boardui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/marcus/kanban/internal/dateparse"
	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/models"
)

var errTitleRequired = errors.New("title is required")

const dueDateLayout = "2006-01-02"

// FormMode represents the mode of the form
type FormMode string

const (
	FormModeCreate FormMode = "create"
	FormModeEdit   FormMode = "edit"
)

// FormState holds the state for the task form modal
type FormState struct {
	Mode     FormMode
	Form     *huh.Form
	TaskID   string // For edit mode - the task being edited
	ColumnID string // For create mode - the column the task lands in

	// Bound form values (standard fields)
	Title       string
	Priority    string
	Description string
	Due         string // YYYY-MM-DD, empty for none
	Labels      string // Comma-separated

	// Extended fields (toggled with Tab)
	ShowExtended bool
	Subtasks     string // One per line, "[x] " prefix marks done

	// Subtask ids by position from the task being edited, so an edit
	// that only reorders lines keeps existing rows.
	subtaskIDs []string
}

// NewFormState creates a new form state for creating a task in a column
func NewFormState(columnID string) *FormState {
	state := &FormState{
		Mode:     FormModeCreate,
		ColumnID: columnID,
		Priority: string(models.PriorityMedium),
	}
	state.buildForm()
	return state
}

// NewFormStateForEdit creates a form state populated with existing task data
func NewFormStateForEdit(task *models.TaskView) *FormState {
	state := &FormState{
		Mode:        FormModeEdit,
		TaskID:      task.ID,
		Title:       task.Title,
		Priority:    string(task.Priority),
		Description: task.Description,
		Labels:      strings.Join(task.Labels, ", "),
	}
	if task.DueAt != nil {
		state.Due = task.DueAt.Format(dueDateLayout)
	}

	var lines []string
	for _, st := range task.Subtasks {
		prefix := "[ ] "
		if st.Completed {
			prefix = "[x] "
		}
		lines = append(lines, prefix+st.Title)
		state.subtaskIDs = append(state.subtaskIDs, st.ID)
	}
	state.Subtasks = strings.Join(lines, "\n")
	if len(lines) > 0 {
		state.ShowExtended = true
	}

	state.buildForm()
	return state
}

// buildForm constructs the huh.Form based on current state
func (fs *FormState) buildForm() {
	priorityOptions := []huh.Option[string]{
		huh.NewOption("Low", string(models.PriorityLow)),
		huh.NewOption("Medium", string(models.PriorityMedium)),
		huh.NewOption("High", string(models.PriorityHigh)),
		huh.NewOption("Urgent", string(models.PriorityUrgent)),
	}

	titleStr := "New Task"
	if fs.Mode == FormModeEdit {
		titleStr = "Edit Task: " + fs.TaskID
	}

	standardGroup := huh.NewGroup(
		huh.NewInput().
			Title("Title").
			Value(&fs.Title).
			Placeholder("Task title...").
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errTitleRequired
				}
				return nil
			}),
		huh.NewSelect[string]().
			Title("Priority").
			Options(priorityOptions...).
			Value(&fs.Priority),
		huh.NewText().
			Title("Description").
			Value(&fs.Description).
			Placeholder("Optional description, markdown ok...").
			Lines(3),
		huh.NewInput().
			Title("Due").
			Value(&fs.Due).
			Placeholder("YYYY-MM-DD, +7d, tomorrow...").
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return nil
				}
				_, err := dateparse.ParseDue(s)
				return err
			}),
		huh.NewInput().
			Title("Labels").
			Value(&fs.Labels).
			Placeholder("label1, label2, ..."),
	).Title(titleStr)

	extendedGroup := huh.NewGroup(
		huh.NewText().
			Title("Subtasks").
			Value(&fs.Subtasks).
			Placeholder("[ ] one per line\n[x] done ones checked").
			Lines(5),
	).Title("Subtasks")

	if fs.ShowExtended {
		fs.Form = huh.NewForm(standardGroup, extendedGroup)
	} else {
		fs.Form = huh.NewForm(standardGroup)
	}

	fs.Form.WithTheme(huh.ThemeDracula())
}

// ToggleExtended toggles the subtask editor visibility and rebuilds the form
func (fs *FormState) ToggleExtended() {
	fs.ShowExtended = !fs.ShowExtended
	fs.buildForm()
}

// ToInput converts form values to a task input for the actions layer
func (fs *FormState) ToInput() (db.TaskInput, error) {
	in := db.TaskInput{
		Title:       strings.TrimSpace(fs.Title),
		Description: fs.Description,
		Priority:    models.Priority(fs.Priority),
	}
	if due := strings.TrimSpace(fs.Due); due != "" {
		t, err := dateparse.ParseDue(due)
		if err != nil {
			return in, fmt.Errorf("parse due date: %w", err)
		}
		in.DueAt = &t
	}
	return in, nil
}

// LabelNames returns the parsed label list
func (fs *FormState) LabelNames() []string {
	return splitTrimmed(fs.Labels, ",")
}

// SubtaskInputs parses the subtask lines into replace inputs. Lines keep
// the id of the row that held the same slot when editing, so completion
// timestamps survive a pure retitle.
func (fs *FormState) SubtaskInputs() []db.SubtaskInput {
	lines := splitTrimmed(fs.Subtasks, "\n")
	var result []db.SubtaskInput
	for i, line := range lines {
		completed := false
		switch {
		case strings.HasPrefix(line, "[x] "), strings.HasPrefix(line, "[X] "):
			completed = true
			line = strings.TrimSpace(line[4:])
		case strings.HasPrefix(line, "[ ] "):
			line = strings.TrimSpace(line[4:])
		}
		if line == "" {
			continue
		}
		in := db.SubtaskInput{Title: line, Completed: completed}
		if i < len(fs.subtaskIDs) {
			in.ID = fs.subtaskIDs[i]
		}
		result = append(result, in)
	}
	return result
}

// splitTrimmed splits on sep and drops empty entries after trimming
func splitTrimmed(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
