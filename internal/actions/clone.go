package actions

import "github.com/marcus/kanban/internal/models"

// cloneDocument deep-copies a document so a failed persist can restore it.
func cloneDocument(doc *models.Document) *models.Document {
	out := *doc

	out.Columns = make([]models.ColumnView, len(doc.Columns))
	for i, col := range doc.Columns {
		out.Columns[i] = col
		out.Columns[i].TaskIDs = append([]string(nil), col.TaskIDs...)
	}

	out.Tasks = make(map[string]*models.TaskView, len(doc.Tasks))
	for id, view := range doc.Tasks {
		out.Tasks[id] = cloneTaskView(view)
	}

	out.Labels = append([]string(nil), doc.Labels...)
	out.Filters = append([]string(nil), doc.Filters...)

	out.DeletedTasks = make([]models.DeletedTaskView, len(doc.DeletedTasks))
	for i, dt := range doc.DeletedTasks {
		out.DeletedTasks[i] = dt
		out.DeletedTasks[i].TaskView = *cloneTaskView(&dt.TaskView)
	}

	return &out
}

func cloneTaskView(view *models.TaskView) *models.TaskView {
	cp := *view
	cp.Labels = append([]string(nil), view.Labels...)
	cp.Subtasks = append([]models.Subtask(nil), view.Subtasks...)
	return &cp
}
