package actions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/models"
	"github.com/marcus/kanban/internal/order"
)

// CreateLabel adds a board label. Names are unique case-insensitively.
func (a *Actions) CreateLabel(name, color string) error {
	if a.doc == nil {
		return fmt.Errorf("no board loaded")
	}

	a.setStatus(models.SyncSaving)
	if _, err := a.store.CreateLabel(a.doc.BoardID, name, color, a.session); err != nil {
		a.setStatus(models.SyncError)
		return err
	}

	a.doc.Labels = append(a.doc.Labels, name)
	sortLabels(a.doc.Labels)
	a.afterWrite()
	return nil
}

// RenameLabel renames a label everywhere it appears.
func (a *Actions) RenameLabel(oldName, newName, color string) error {
	if a.doc == nil {
		return fmt.Errorf("no board loaded")
	}
	label, err := a.store.GetLabelByName(a.doc.BoardID, oldName)
	if err != nil {
		return err
	}

	return a.commit(func() {
		renameIn(a.doc.Labels, oldName, newName)
		sortLabels(a.doc.Labels)
		for _, view := range a.doc.Tasks {
			renameIn(view.Labels, oldName, newName)
			sortLabels(view.Labels)
		}
		for i := range a.doc.DeletedTasks {
			renameIn(a.doc.DeletedTasks[i].Labels, oldName, newName)
			sortLabels(a.doc.DeletedTasks[i].Labels)
		}
	}, func() error {
		return a.store.RenameLabel(label.ID, newName, color, a.session)
	})
}

// DeleteLabel removes a label from the board and detaches it from every
// task that carried it. Tasks themselves are untouched.
func (a *Actions) DeleteLabel(name string) error {
	if a.doc == nil {
		return fmt.Errorf("no board loaded")
	}
	label, err := a.store.GetLabelByName(a.doc.BoardID, name)
	if err != nil {
		return err
	}

	return a.commit(func() {
		a.doc.Labels = order.Remove(a.doc.Labels, name)
		for _, view := range a.doc.Tasks {
			view.Labels = order.Remove(view.Labels, name)
		}
		for i := range a.doc.DeletedTasks {
			a.doc.DeletedTasks[i].Labels = order.Remove(a.doc.DeletedTasks[i].Labels, name)
		}
	}, func() error {
		return a.store.DeleteLabel(label.ID, a.session)
	})
}

// AttachLabel tags a task with an existing label. Attaching a label the
// task already has is a no-op.
func (a *Actions) AttachLabel(taskID, name string) error {
	view, ok := a.doc.Tasks[taskID]
	if !ok {
		return fmt.Errorf("unknown task %s", taskID)
	}
	label, err := a.store.GetLabelByName(a.doc.BoardID, name)
	if err != nil {
		return err
	}
	for _, l := range view.Labels {
		if strings.EqualFold(l, name) {
			return nil
		}
	}

	return a.commit(func() {
		view.Labels = append(view.Labels, label.Name)
		sortLabels(view.Labels)
	}, func() error {
		return a.store.AttachLabel(taskID, label.ID, a.session)
	})
}

// DetachLabel removes a label from a task.
func (a *Actions) DetachLabel(taskID, name string) error {
	view, ok := a.doc.Tasks[taskID]
	if !ok {
		return fmt.Errorf("unknown task %s", taskID)
	}
	label, err := a.store.GetLabelByName(a.doc.BoardID, name)
	if err != nil {
		return err
	}

	return a.commit(func() {
		view.Labels = order.Remove(view.Labels, label.Name)
	}, func() error {
		return a.store.DetachLabel(taskID, label.ID, a.session)
	})
}

// SetSubtasks replaces a task's subtask list wholesale, renumbered 1..N.
func (a *Actions) SetSubtasks(taskID string, in []db.SubtaskInput) error {
	view, ok := a.doc.Tasks[taskID]
	if !ok {
		return fmt.Errorf("unknown task %s", taskID)
	}

	a.setStatus(models.SyncSaving)
	subtasks, err := a.store.ReplaceSubtasks(taskID, in, a.session)
	if err != nil {
		a.setStatus(models.SyncError)
		return err
	}
	view.Subtasks = subtasks
	a.afterWrite()
	return nil
}

// ToggleSubtask flips one subtask's completion.
func (a *Actions) ToggleSubtask(taskID, subtaskID string) error {
	view, ok := a.doc.Tasks[taskID]
	if !ok {
		return fmt.Errorf("unknown task %s", taskID)
	}
	idx := -1
	for i := range view.Subtasks {
		if view.Subtasks[i].ID == subtaskID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("unknown subtask %s", subtaskID)
	}

	return a.commit(func() {
		view.Subtasks[idx].Completed = !view.Subtasks[idx].Completed
	}, func() error {
		return a.store.ToggleSubtask(subtaskID, a.session)
	})
}

func sortLabels(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
}

func renameIn(names []string, oldName, newName string) {
	for i, n := range names {
		if strings.EqualFold(n, oldName) {
			names[i] = newName
		}
	}
}
