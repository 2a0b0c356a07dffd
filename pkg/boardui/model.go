// Package boardui is the interactive bubbletea board. Columns render side
// by side, a cursor selects one card, and every keyboard mutation funnels
// through the actions layer so the optimistic write cycle stays in one
// place.
package boardui

import (
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/marcus/kanban/internal/actions"
	"github.com/marcus/kanban/internal/models"
)

const celebrationDuration = 2 * time.Second

type viewMode int

const (
	modeBoard viewMode = iota
	modeForm
	modeConfirmDelete
)

// RemoteChangeMsg tells the board that remote events were applied to the
// row store. Senders use Program.Send from the sync goroutine.
type RemoteChangeMsg struct{}

type celebrationMsg struct{ taskID string }

type clearCelebrationMsg struct{}

// Model is the bubbletea model for the board view
type Model struct {
	Actions *actions.Actions

	Width  int
	Height int

	// Cursor position: column index and row within that column
	Col int
	Row int

	Mode        viewMode
	Form        *FormState
	ConfirmTask string // task id pending delete confirmation

	ErrMsg      string
	Celebrating string // title of the just-completed task

	spinner      spinner.Model
	celebrations chan string
}

// New builds a board model over a loaded actions layer.
func New(a *actions.Actions) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	m := Model{
		Actions:      a,
		spinner:      sp,
		celebrations: make(chan string, 4),
	}
	a.OnCelebrate(func(taskID string) {
		select {
		case m.celebrations <- taskID:
		default:
		}
	})
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForCelebration(), m.spinner.Tick)
}

func (m Model) waitForCelebration() tea.Cmd {
	return func() tea.Msg {
		return celebrationMsg{taskID: <-m.celebrations}
	}
}

// doc is a nil-safe accessor for the live document.
func (m Model) doc() *models.Document {
	return m.Actions.Document()
}

// columnTasks returns the task ids of the column at index i with the
// document's label filters and sort mode applied. Manual sort with no
// filters returns the stored order untouched.
func (m Model) columnTasks(i int) []string {
	doc := m.doc()
	if doc == nil || i < 0 || i >= len(doc.Columns) {
		return nil
	}
	ids := doc.Columns[i].TaskIDs

	if len(doc.Filters) > 0 {
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			if view, ok := doc.Tasks[id]; ok && matchesFilters(view, doc.Filters) {
				kept = append(kept, id)
			}
		}
		ids = kept
	}

	switch doc.SortMode {
	case models.SortPriority:
		ids = sortedByView(ids, doc, func(a, b *models.TaskView) bool {
			return priorityRank(a.Priority) > priorityRank(b.Priority)
		})
	case models.SortDueDate:
		ids = sortedByView(ids, doc, func(a, b *models.TaskView) bool {
			switch {
			case a.DueAt == nil:
				return false
			case b.DueAt == nil:
				return true
			default:
				return a.DueAt.Before(*b.DueAt)
			}
		})
	}
	return ids
}

// matchesFilters reports whether the task carries any of the filter labels.
func matchesFilters(view *models.TaskView, filters []string) bool {
	for _, want := range filters {
		for _, name := range view.Labels {
			if strings.EqualFold(name, want) {
				return true
			}
		}
	}
	return false
}

func priorityRank(p models.Priority) int {
	switch p {
	case models.PriorityUrgent:
		return 3
	case models.PriorityHigh:
		return 2
	case models.PriorityMedium:
		return 1
	default:
		return 0
	}
}

// nextSortMode cycles manual, priority, due date.
func nextSortMode(mode models.SortMode) models.SortMode {
	switch mode {
	case models.SortPriority:
		return models.SortDueDate
	case models.SortDueDate:
		return models.SortManual
	default:
		return models.SortPriority
	}
}

// sortedByView stable-sorts a copy of ids by the given task comparison,
// leaving the stored order intact.
func sortedByView(ids []string, doc *models.Document, less func(a, b *models.TaskView) bool) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := doc.Tasks[out[i]], doc.Tasks[out[j]]
		if a == nil || b == nil {
			return false
		}
		return less(a, b)
	})
	return out
}

// selectedTaskID returns the task id under the cursor, or "".
func (m Model) selectedTaskID() string {
	ids := m.columnTasks(m.Col)
	if m.Row < 0 || m.Row >= len(ids) {
		return ""
	}
	return ids[m.Row]
}

// clampCursor clamps the cursor to the current board shape.
func (m *Model) clampCursor() {
	doc := m.doc()
	if doc == nil || len(doc.Columns) == 0 {
		m.Col, m.Row = 0, 0
		return
	}
	if m.Col >= len(doc.Columns) {
		m.Col = len(doc.Columns) - 1
	}
	if m.Col < 0 {
		m.Col = 0
	}
	ids := m.columnTasks(m.Col)
	if len(ids) == 0 {
		m.Row = 0
	} else if m.Row >= len(ids) {
		m.Row = len(ids) - 1
	}
	if m.Row < 0 {
		m.Row = 0
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case celebrationMsg:
		title := msg.taskID
		if doc := m.doc(); doc != nil {
			if view, ok := doc.Tasks[msg.taskID]; ok {
				title = view.Title
			}
		}
		m.Celebrating = title
		return m, tea.Batch(
			tea.Tick(celebrationDuration, func(time.Time) tea.Msg { return clearCelebrationMsg{} }),
			m.waitForCelebration(),
		)

	case clearCelebrationMsg:
		m.Celebrating = ""
		return m, nil

	case spinner.TickMsg:
		// Only animate while there is nothing to draw yet.
		if m.doc() != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case RemoteChangeMsg:
		if err := m.Actions.Reload(); err != nil {
			m.ErrMsg = err.Error()
		}
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		switch m.Mode {
		case modeForm:
			return m.updateForm(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		default:
			return m.updateBoard(msg)
		}
	}

	// Unhandled messages may belong to the embedded form
	if m.Mode == modeForm && m.Form != nil {
		return m.updateForm(msg)
	}
	return m, nil
}

// updateBoard handles keys in the normal board mode.
func (m Model) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.ErrMsg = ""

	switch msg.String() {
	case "q", "ctrl+c":
		m.Actions.Stop()
		return m, tea.Quit

	// Cursor movement
	case "h", "left":
		if m.Col > 0 {
			m.Col--
			m.clampCursor()
		}
	case "l", "right":
		if doc := m.doc(); doc != nil && m.Col < len(doc.Columns)-1 {
			m.Col++
			m.clampCursor()
		}
	case "j", "down":
		if ids := m.columnTasks(m.Col); m.Row < len(ids)-1 {
			m.Row++
		}
	case "k", "up":
		if m.Row > 0 {
			m.Row--
		}

	// Card movement
	case "H", "shift+left":
		m.moveAcross(-1)
	case "L", "shift+right":
		m.moveAcross(1)
	case "J", "shift+down":
		m.moveWithin(1)
	case "K", "shift+up":
		m.moveWithin(-1)

	// Mutations
	case "n":
		doc := m.doc()
		if doc == nil || len(doc.Columns) == 0 {
			return m, nil
		}
		m.Form = NewFormState(doc.Columns[m.Col].ID)
		m.Mode = modeForm
		return m, m.Form.Form.Init()
	case "e", "enter":
		id := m.selectedTaskID()
		if id == "" {
			return m, nil
		}
		if view, ok := m.doc().Tasks[id]; ok {
			m.Form = NewFormStateForEdit(view)
			m.Mode = modeForm
			return m, m.Form.Form.Init()
		}
	case "x", " ":
		id := m.selectedTaskID()
		if id == "" {
			return m, nil
		}
		view := m.doc().Tasks[id]
		if err := m.Actions.SetTaskCompleted(id, !view.Completed); err != nil {
			m.ErrMsg = err.Error()
		}
		m.clampCursor()
	case "d":
		if id := m.selectedTaskID(); id != "" {
			m.ConfirmTask = id
			m.Mode = modeConfirmDelete
		}
	case "s":
		m.Actions.SetSortMode(nextSortMode(m.doc().SortMode))
		m.clampCursor()
	case "r":
		if err := m.Actions.Reload(); err != nil {
			m.ErrMsg = err.Error()
		}
		m.clampCursor()
	}

	return m, nil
}

// moveAcross moves the selected task delta columns left or right, dropping
// it at the end of the destination. The cursor follows the card.
func (m *Model) moveAcross(delta int) {
	doc := m.doc()
	id := m.selectedTaskID()
	if doc == nil || id == "" {
		return
	}
	target := m.Col + delta
	if target < 0 || target >= len(doc.Columns) {
		return
	}
	if err := m.Actions.MoveTask(id, doc.Columns[target].ID, ""); err != nil {
		m.ErrMsg = err.Error()
		return
	}
	m.Col = target
	m.Row = len(m.columnTasks(target)) - 1
	m.clampCursor()
}

// moveWithin swaps the selected task with its neighbor above or below.
// Ignored under a non-manual sort, where the on-screen order is derived.
func (m *Model) moveWithin(delta int) {
	if doc := m.doc(); doc != nil && doc.SortMode != "" && doc.SortMode != models.SortManual {
		m.ErrMsg = "switch to manual sort to reorder"
		return
	}
	id := m.selectedTaskID()
	ids := m.columnTasks(m.Col)
	if id == "" {
		return
	}
	target := m.Row + delta
	if target < 0 || target >= len(ids) {
		return
	}
	if err := m.Actions.MoveTask(id, "", ids[target]); err != nil {
		m.ErrMsg = err.Error()
		return
	}
	m.Row = target
}

// updateConfirm handles the delete confirmation prompt.
func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		if err := m.Actions.DeleteTask(m.ConfirmTask); err != nil {
			m.ErrMsg = err.Error()
		}
		m.ConfirmTask = ""
		m.Mode = modeBoard
		m.clampCursor()
	case "n", "N", "esc", "q":
		m.ConfirmTask = ""
		m.Mode = modeBoard
	}
	return m, nil
}

// updateForm routes messages to the embedded huh form and commits on
// completion.
func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.Form = nil
			m.Mode = modeBoard
			return m, nil
		case "ctrl+e":
			m.Form.ToggleExtended()
			return m, m.Form.Form.Init()
		}
	}

	form, cmd := m.Form.Form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.Form.Form = f
	}

	switch m.Form.Form.State {
	case huh.StateCompleted:
		if err := m.submitForm(); err != nil {
			m.ErrMsg = err.Error()
		}
		m.Form = nil
		m.Mode = modeBoard
		m.clampCursor()
		return m, nil
	case huh.StateAborted:
		m.Form = nil
		m.Mode = modeBoard
		return m, nil
	}

	return m, cmd
}

// submitForm applies the completed form through the actions layer.
func (m *Model) submitForm() error {
	fs := m.Form
	in, err := fs.ToInput()
	if err != nil {
		return err
	}

	taskID := fs.TaskID
	if fs.Mode == FormModeCreate {
		view, err := m.Actions.CreateTask(fs.ColumnID, in)
		if err != nil {
			return err
		}
		taskID = view.ID
	} else {
		if err := m.Actions.UpdateTask(taskID, in); err != nil {
			return err
		}
	}

	if err := m.syncLabels(taskID, fs.LabelNames()); err != nil {
		return err
	}
	if fs.ShowExtended {
		if err := m.Actions.SetSubtasks(taskID, fs.SubtaskInputs()); err != nil {
			return err
		}
	}
	return nil
}

// syncLabels diffs the form's label list against the task's current
// labels and attaches or detaches the difference.
func (m *Model) syncLabels(taskID string, want []string) error {
	doc := m.doc()
	view, ok := doc.Tasks[taskID]
	if !ok {
		return nil
	}

	have := make(map[string]bool, len(view.Labels))
	for _, name := range view.Labels {
		have[name] = true
	}
	known := make(map[string]bool, len(doc.Labels))
	for _, name := range doc.Labels {
		known[strings.ToLower(name)] = true
	}

	wanted := make(map[string]bool, len(want))
	for _, name := range want {
		wanted[name] = true
		if !known[strings.ToLower(name)] {
			if err := m.Actions.CreateLabel(name, ""); err != nil {
				return err
			}
			known[strings.ToLower(name)] = true
		}
		if !have[name] {
			if err := m.Actions.AttachLabel(taskID, name); err != nil {
				return err
			}
		}
	}
	for _, name := range view.Labels {
		if !wanted[name] {
			if err := m.Actions.DetachLabel(taskID, name); err != nil {
				return err
			}
		}
	}
	return nil
}
