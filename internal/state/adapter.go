// Package state builds the denormalized board document the rendering layer
// consumes from the normalized relational rows, and serializes it for
// export/import.
package state

import (
	"sort"

	"github.com/marcus/kanban/internal/db"
	"github.com/marcus/kanban/internal/models"
)

// BuildDocument projects a relational row snapshot into the single document
// shape the UI reads. The transform is pure and idempotent: the same rows
// always produce the same document. It runs on initial load and after every
// realtime notification that survives suppression.
func BuildDocument(rows *db.BoardRows) *models.Document {
	doc := &models.Document{
		BoardID:  rows.Board.ID,
		Title:    rows.Board.Title,
		Tasks:    make(map[string]*models.TaskView),
		SortMode: models.SortManual,
	}

	// label id → name
	labelNames := make(map[string]string, len(rows.Labels))
	for _, l := range rows.Labels {
		labelNames[l.ID] = l.Name
		doc.Labels = append(doc.Labels, l.Name)
	}

	// task id → label names, in stable label order
	taskLabels := make(map[string][]string)
	for _, j := range rows.TaskLabels {
		if name, ok := labelNames[j.LabelID]; ok {
			taskLabels[j.TaskID] = append(taskLabels[j.TaskID], name)
		}
	}
	for _, names := range taskLabels {
		sort.Strings(names)
	}

	// task id → subtasks sorted by position
	taskSubtasks := make(map[string][]models.Subtask)
	for _, s := range rows.Subtasks {
		taskSubtasks[s.TaskID] = append(taskSubtasks[s.TaskID], s)
	}
	for _, subs := range taskSubtasks {
		sort.SliceStable(subs, func(i, j int) bool { return subs[i].Position < subs[j].Position })
	}

	// column id → non-deleted tasks sorted by position
	columnTasks := make(map[string][]models.Task)
	for _, t := range rows.Tasks {
		if t.Deleted() {
			continue
		}
		columnTasks[t.ColumnID] = append(columnTasks[t.ColumnID], t)
	}
	for _, ts := range columnTasks {
		sort.SliceStable(ts, func(i, j int) bool { return ts[i].Position < ts[j].Position })
	}

	columns := append([]models.Column(nil), rows.Columns...)
	sort.SliceStable(columns, func(i, j int) bool { return columns[i].Position < columns[j].Position })

	for _, col := range columns {
		view := models.ColumnView{ID: col.ID, Title: col.Title}
		for _, t := range columnTasks[col.ID] {
			view.TaskIDs = append(view.TaskIDs, t.ID)
			doc.Tasks[t.ID] = &models.TaskView{
				Task:     t,
				Labels:   taskLabels[t.ID],
				Subtasks: taskSubtasks[t.ID],
			}
		}
		doc.Columns = append(doc.Columns, view)
	}

	// Deleted tasks are projected separately with restore metadata.
	for _, t := range rows.Tasks {
		if !t.Deleted() {
			continue
		}
		doc.DeletedTasks = append(doc.DeletedTasks, models.DeletedTaskView{
			TaskView: models.TaskView{
				Task:     t,
				Labels:   taskLabels[t.ID],
				Subtasks: taskSubtasks[t.ID],
			},
			OriginalColumnID: t.ColumnID,
			OriginalPosition: t.Position,
			DeletedAt:        *t.DeletedAt,
		})
	}
	sort.SliceStable(doc.DeletedTasks, func(i, j int) bool {
		return doc.DeletedTasks[i].DeletedAt.After(doc.DeletedTasks[j].DeletedAt)
	})

	return doc
}
