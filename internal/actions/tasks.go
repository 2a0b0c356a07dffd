package actions

import (
	"fmt"
	"strings"
	"time"

	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/models"
	"github.com/marcus/kanban/internal/order"
)

// CreateTask adds a task at the top of the column.
func (a *Actions) CreateTask(columnID string, in db.TaskInput) (*models.TaskView, error) {
	if a.doc == nil {
		return nil, fmt.Errorf("no board loaded")
	}
	col := a.column(columnID)
	if col == nil {
		return nil, fmt.Errorf("unknown column %s", columnID)
	}

	a.setStatus(models.SyncSaving)
	task, err := a.store.CreateTask(a.doc.BoardID, columnID, in, a.session)
	if err != nil {
		a.setStatus(models.SyncError)
		return nil, err
	}

	view := &models.TaskView{Task: *task}
	a.doc.Tasks[task.ID] = view
	col.TaskIDs = append([]string{task.ID}, col.TaskIDs...)
	a.renumberColumn(col)
	a.afterWrite()
	return view, nil
}

// UpdateTask edits a task's fields.
func (a *Actions) UpdateTask(id string, in db.TaskInput) error {
	view, ok := a.doc.Tasks[id]
	if !ok {
		return fmt.Errorf("unknown task %s", id)
	}

	return a.commit(func() {
		view.Title = in.Title
		view.Description = in.Description
		view.Priority = in.Priority
		view.DueAt = in.DueAt
	}, func() error {
		updated, err := a.store.UpdateTask(id, in, a.session)
		if err != nil {
			return err
		}
		labels, subtasks := view.Labels, view.Subtasks
		view.Task = *updated
		view.Labels, view.Subtasks = labels, subtasks
		return nil
	})
}

// MoveTask drags a task to a new spot. toColumnID names the destination
// column; overID is the task the drag landed on, or "" to drop at the
// end. Within-column and cross-column moves both renumber every touched
// column to a dense 1..N.
func (a *Actions) MoveTask(taskID, toColumnID, overID string) error {
	if a.doc == nil {
		return fmt.Errorf("no board loaded")
	}
	from := a.taskColumn(taskID)
	if from == nil {
		return fmt.Errorf("unknown task %s", taskID)
	}
	if toColumnID == "" {
		toColumnID = from.ID
	}
	to := a.column(toColumnID)
	if to == nil {
		return fmt.Errorf("unknown column %s", toColumnID)
	}

	if from.ID == to.ID {
		return a.commit(func() {
			from.TaskIDs = order.ReorderWithin(from.TaskIDs, taskID, overID)
			a.renumberColumn(from)
		}, func() error {
			return a.store.SetColumnTaskOrder(from.ID, from.TaskIDs, a.session)
		})
	}

	return a.commit(func() {
		from.TaskIDs, to.TaskIDs = order.MoveBetween(from.TaskIDs, to.TaskIDs, taskID, overID)
		a.renumberColumn(from)
		a.renumberColumn(to)
	}, func() error {
		return a.store.MoveTask(taskID, to.ID, from.TaskIDs, to.TaskIDs, a.session)
	})
}

// SetTaskCompleted flips completion. Completing a task also moves it to
// the board's done column (the column titled "Done", else the last one)
// and fires the celebration callback. Un-completing leaves it in place.
func (a *Actions) SetTaskCompleted(id string, completed bool) error {
	view, ok := a.doc.Tasks[id]
	if !ok {
		return fmt.Errorf("unknown task %s", id)
	}

	err := a.commit(func() {
		now := time.Now().UTC()
		view.Completed = completed
		if completed {
			view.CompletedAt = &now
		} else {
			view.CompletedAt = nil
		}
	}, func() error {
		updated, err := a.store.SetTaskCompleted(id, completed, a.session)
		if err != nil {
			return err
		}
		labels, subtasks := view.Labels, view.Subtasks
		view.Task = *updated
		view.Labels, view.Subtasks = labels, subtasks
		return nil
	})
	if err != nil {
		return err
	}

	if completed {
		if done := a.doneColumn(); done != nil && done.ID != view.ColumnID {
			if err := a.MoveTask(id, done.ID, ""); err != nil {
				return err
			}
		}
		if a.onCelebrate != nil {
			a.onCelebrate(id)
		}
	}
	return nil
}

// doneColumn picks the column completed tasks land in.
func (a *Actions) doneColumn() *models.ColumnView {
	for i := range a.doc.Columns {
		if strings.EqualFold(a.doc.Columns[i].Title, "Done") {
			return &a.doc.Columns[i]
		}
	}
	if len(a.doc.Columns) == 0 {
		return nil
	}
	return &a.doc.Columns[len(a.doc.Columns)-1]
}

// DeleteTask soft-deletes a task. It leaves the board view and joins the
// deleted list, keeping its column and position for a later restore.
func (a *Actions) DeleteTask(id string) error {
	view, ok := a.doc.Tasks[id]
	if !ok {
		return fmt.Errorf("unknown task %s", id)
	}
	col := a.taskColumn(id)
	if col == nil {
		return fmt.Errorf("task %s not on any column", id)
	}

	return a.commit(func() {
		now := time.Now().UTC()
		col.TaskIDs = order.Remove(col.TaskIDs, id)
		a.renumberColumn(col)

		dt := models.DeletedTaskView{
			TaskView:         *cloneTaskView(view),
			OriginalColumnID: view.ColumnID,
			OriginalPosition: view.Position,
			DeletedAt:        now,
		}
		dt.TaskView.DeletedAt = &now
		a.doc.DeletedTasks = append([]models.DeletedTaskView{dt}, a.doc.DeletedTasks...)
		delete(a.doc.Tasks, id)
		if a.doc.SelectedTaskID == id {
			a.doc.SelectedTaskID = ""
		}
	}, func() error {
		return a.store.SoftDeleteTask(id, a.session)
	})
}

// RestoreTask brings a soft-deleted task back to its original column and
// position, clamped to the end if the column shrank. If the original
// column is gone the task lands in the first column.
func (a *Actions) RestoreTask(id string) error {
	idx := -1
	for i := range a.doc.DeletedTasks {
		if a.doc.DeletedTasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("task %s is not in the deleted list", id)
	}

	return a.commit(func() {
		dt := a.doc.DeletedTasks[idx]
		a.doc.DeletedTasks = append(a.doc.DeletedTasks[:idx], a.doc.DeletedTasks[idx+1:]...)

		col := a.column(dt.OriginalColumnID)
		if col == nil && len(a.doc.Columns) > 0 {
			col = &a.doc.Columns[0]
		}
		if col == nil {
			return
		}

		view := dt.TaskView
		view.DeletedAt = nil
		view.ColumnID = col.ID
		a.doc.Tasks[id] = &view

		col.TaskIDs = order.InsertAt(col.TaskIDs, dt.OriginalPosition-1, id)
		a.renumberColumn(col)
	}, func() error {
		return a.store.RestoreTask(id, a.session)
	})
}

// PurgeTask permanently removes a soft-deleted task.
func (a *Actions) PurgeTask(id string) error {
	idx := -1
	for i := range a.doc.DeletedTasks {
		if a.doc.DeletedTasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("task %s is not in the deleted list", id)
	}

	return a.commit(func() {
		a.doc.DeletedTasks = append(a.doc.DeletedTasks[:idx], a.doc.DeletedTasks[idx+1:]...)
	}, func() error {
		return a.store.PurgeTask(id, a.session)
	})
}

// SelectTask records the UI selection. Local only, never persisted.
func (a *Actions) SelectTask(id string) {
	if a.doc != nil {
		a.doc.SelectedTaskID = id
	}
}
