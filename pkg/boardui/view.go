package boardui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/kanban/internal/models"
)

const (
	minColumnWidth = 18
	maxColumnWidth = 40
	cardHeight     = 2
)

// View implements tea.Model
func (m Model) View() string {
	doc := m.doc()
	if doc == nil {
		return m.spinner.View() + " Loading board...\n"
	}

	if m.Mode == modeForm && m.Form != nil {
		return m.Form.Form.View()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader(doc))
	b.WriteString("\n")
	b.WriteString(m.renderColumns(doc))
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderHeader renders the board title line with the persistence status
// and any transient notices.
func (m Model) renderHeader(doc *models.Document) string {
	parts := []string{
		titleStyle.Render(" " + doc.Title + " "),
		formatStatusBadge(m.Actions.Status()),
	}
	if m.Celebrating != "" {
		parts = append(parts, celebrateStyle.Render(fmt.Sprintf("🎉 %s done!", m.Celebrating)))
	}
	if m.ErrMsg != "" {
		parts = append(parts, errorStyle.Render(m.ErrMsg))
	}
	return strings.Join(parts, " ")
}

// renderFooter renders the help line, or the delete confirmation prompt.
func (m Model) renderFooter() string {
	if m.Mode == modeConfirmDelete {
		doc := m.doc()
		title := m.ConfirmTask
		if view, ok := doc.Tasks[m.ConfirmTask]; ok {
			title = view.Title
		}
		return errorStyle.Render(fmt.Sprintf("Delete %q? (y/n)", title))
	}
	help := "h/j/k/l:move  H/J/K/L:drag card  n:new  e:edit  x:done  d:delete  s:sort  r:reload  q:quit"
	doc := m.doc()
	var notes []string
	if doc.SortMode != "" && doc.SortMode != models.SortManual {
		notes = append(notes, "sort:"+string(doc.SortMode))
	}
	if len(doc.Filters) > 0 {
		notes = append(notes, "filter:"+strings.Join(doc.Filters, ","))
	}
	if len(notes) > 0 {
		help = strings.Join(notes, "  ") + "  " + help
	}
	return helpStyle.Render(help)
}

// columnWidth computes the width of one column box for the current
// terminal size.
func (m Model) columnWidth(numCols int) int {
	if numCols == 0 {
		return minColumnWidth
	}
	// Each column box adds 2 border chars plus 2 padding chars.
	w := m.Width/numCols - 4
	if w < minColumnWidth {
		w = minColumnWidth
	}
	if w > maxColumnWidth {
		w = maxColumnWidth
	}
	return w
}

// renderColumns renders all columns side by side.
func (m Model) renderColumns(doc *models.Document) string {
	if len(doc.Columns) == 0 {
		return subtleStyle.Render("No columns. Add one with the column command.")
	}

	colWidth := m.columnWidth(len(doc.Columns))
	rendered := make([]string, 0, len(doc.Columns))
	for i := range doc.Columns {
		rendered = append(rendered, m.renderColumn(doc, i, colWidth))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// renderColumn renders one column box with its header and cards.
func (m Model) renderColumn(doc *models.Document, idx, width int) string {
	col := doc.Columns[idx]
	active := idx == m.Col

	headerStyle := columnHeaderStyle
	boxStyle := columnStyle
	if active {
		headerStyle = activeColumnHeaderStyle
		boxStyle = activeColumnStyle
	}

	ids := m.columnTasks(idx)

	var b strings.Builder
	b.WriteString(headerStyle.Render(padTrunc(fmt.Sprintf("%s (%d)", col.Title, len(ids)), width)))
	b.WriteString("\n")

	if len(ids) == 0 {
		b.WriteString(subtleStyle.Render(padTrunc("empty", width)))
	}

	for row, id := range ids {
		view, ok := doc.Tasks[id]
		if !ok {
			continue
		}
		selected := active && row == m.Row
		b.WriteString(m.renderCard(view, width, selected))
		if row < len(ids)-1 {
			b.WriteString("\n")
		}
	}

	return boxStyle.Width(width).Render(b.String())
}

// renderCard renders one two-line card.
// Line 0: priority marker + title
// Line 1: subtask progress, labels, due marker
func (m Model) renderCard(view *models.TaskView, width int, selected bool) string {
	title := padTrunc(view.Title, width-2)
	if view.Completed {
		title = doneStyle.Render(title)
	} else if selected {
		title = selectedCardStyle.Render(title)
	}
	line0 := formatPriorityMark(view.Priority) + " " + title

	var meta []string
	if n := len(view.Subtasks); n > 0 {
		done := 0
		for _, st := range view.Subtasks {
			if st.Completed {
				done++
			}
		}
		meta = append(meta, fmt.Sprintf("%d/%d", done, n))
	}
	for _, name := range view.Labels {
		meta = append(meta, "#"+name)
	}
	if view.DueAt != nil {
		if view.DueAt.Before(time.Now()) && !view.Completed {
			meta = append(meta, "overdue")
		} else {
			meta = append(meta, "due "+view.DueAt.Format("Jan 2"))
		}
	}

	metaText := padTrunc(strings.Join(meta, " "), width-2)
	line1 := "  "
	if selected {
		line1 += selectedCardStyle.Render(metaText)
	} else if len(meta) > 0 && meta[len(meta)-1] == "overdue" {
		line1 += errorStyle.Render(metaText)
	} else {
		line1 += subtleStyle.Render(metaText)
	}

	return line0 + "\n" + line1
}
