// Package output provides styled terminal output helpers (success, error,
// warning, task and board formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/kanban/internal/models"
)

var (
	// Styles
	titleStyle     = lipgloss.NewStyle().Bold(true)
	subtleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	doneStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Strikethrough(true)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	priorityStyles = map[models.Priority]lipgloss.Style{
		models.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		models.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.PriorityUrgent: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// OutputMode determines output format
type OutputMode int

const (
	ModeShort OutputMode = iota
	ModeLong
	ModeJSON
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeConflict      = "conflict"
	ErrCodeDatabaseError = "database_error"
	ErrCodeSyncError     = "sync_error"
	ErrCodeNotLoggedIn   = "not_logged_in"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	fmt.Printf(`{"error":{"code":"%s","message":"%s"}}`, code, message)
	fmt.Println()
}

// JSONErrorWithDetails outputs an error as JSON with additional context
func JSONErrorWithDetails(code, message string, details map[string]interface{}) {
	errObj := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if len(details) > 0 {
		errObj["details"] = details
	}
	result := map[string]interface{}{
		"error": errObj,
	}
	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// FormatPriority formats a priority with color
func FormatPriority(p models.Priority) string {
	style, ok := priorityStyles[p]
	if !ok {
		return fmt.Sprintf("[%s]", p)
	}
	return style.Render(fmt.Sprintf("[%s]", p))
}

// FormatDue renders a due date relative to now. Overdue dates come back
// in the error style so they stand out in lists.
func FormatDue(due *time.Time) string {
	if due == nil {
		return ""
	}
	d := time.Until(*due)
	switch {
	case d < 0:
		return errorStyle.Render(fmt.Sprintf("overdue %s", formatSpan(-d)))
	case d < 24*time.Hour:
		return warningStyle.Render("due today")
	default:
		return subtleStyle.Render(fmt.Sprintf("due in %s", formatSpan(d)))
	}
}

func formatSpan(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// SubtaskProgress returns "done/total" for a task's subtasks, or "" when
// the task has none.
func SubtaskProgress(subtasks []models.Subtask) string {
	if len(subtasks) == 0 {
		return ""
	}
	done := 0
	for _, st := range subtasks {
		if st.Completed {
			done++
		}
	}
	return fmt.Sprintf("%d/%d", done, len(subtasks))
}

// FormatTaskShort formats a task in short (one line) format
func FormatTaskShort(task *models.TaskView) string {
	var parts []string
	parts = append(parts, titleStyle.Render(task.ID))
	parts = append(parts, FormatPriority(task.Priority))

	if task.Completed {
		parts = append(parts, doneStyle.Render(task.Title))
	} else {
		parts = append(parts, task.Title)
	}

	if progress := SubtaskProgress(task.Subtasks); progress != "" {
		parts = append(parts, subtleStyle.Render(progress))
	}
	if len(task.Labels) > 0 {
		parts = append(parts, labelStyle.Render("#"+strings.Join(task.Labels, " #")))
	}
	if due := FormatDue(task.DueAt); due != "" {
		parts = append(parts, due)
	}

	return strings.Join(parts, "  ")
}

// FormatTaskDeleted formats a soft-deleted task showing the [deleted] marker
func FormatTaskDeleted(task *models.DeletedTaskView) string {
	var parts []string
	parts = append(parts, titleStyle.Render(task.ID))
	parts = append(parts, FormatPriority(task.Priority))
	parts = append(parts, task.Title)
	parts = append(parts, errorStyle.Render("[deleted]"))
	parts = append(parts, subtleStyle.Render(FormatTimeAgo(task.DeletedAt)))

	return strings.Join(parts, "  ")
}

// FormatTaskLong formats a task in long format with description, subtasks,
// and labels. columnTitle names the lane the task currently sits in.
func FormatTaskLong(task *models.TaskView, columnTitle string) string {
	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s: %s", task.ID, task.Title)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Column: %s | Priority: %s", columnTitle, FormatPriority(task.Priority)))
	if task.Completed {
		sb.WriteString(" | " + successStyle.Render("completed"))
		if task.CompletedAt != nil {
			sb.WriteString(subtleStyle.Render(" " + FormatTimeAgo(*task.CompletedAt)))
		}
	}
	sb.WriteString("\n")

	if task.DueAt != nil {
		sb.WriteString(fmt.Sprintf("Due: %s (%s)\n", task.DueAt.Format("2006-01-02"), FormatDue(task.DueAt)))
	}
	if len(task.Labels) > 0 {
		sb.WriteString(fmt.Sprintf("Labels: %s\n", strings.Join(task.Labels, ", ")))
	}

	// Description
	if task.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(subtleStyle.Render("Description:"))
		sb.WriteString("\n")
		sb.WriteString(task.Description)
		sb.WriteString("\n")
	}

	// Subtasks as a checklist
	if len(task.Subtasks) > 0 {
		sb.WriteString("\n")
		sb.WriteString(subtleStyle.Render(fmt.Sprintf("Subtasks (%s):", SubtaskProgress(task.Subtasks))))
		sb.WriteString("\n")
		for _, st := range task.Subtasks {
			sb.WriteString("  " + SubtaskLine(st) + "\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(subtleStyle.Render(fmt.Sprintf("Created %s, updated %s",
		FormatTimeAgo(task.CreatedAt), FormatTimeAgo(task.UpdatedAt))))
	sb.WriteString("\n")

	return sb.String()
}

// SubtaskLine renders one checklist row, e.g. "[x] Write tests".
func SubtaskLine(st models.Subtask) string {
	if st.Completed {
		return successStyle.Render("[x] ") + doneStyle.Render(st.Title)
	}
	return "[ ] " + st.Title
}

// FormatColumnSummary returns a one-line column summary for board listings,
// e.g. "To Do (3)".
func FormatColumnSummary(col models.ColumnView) string {
	return fmt.Sprintf("%s (%d)", titleStyle.Render(col.Title), len(col.TaskIDs))
}

// FormatBoardLine formats a board for list output.
func FormatBoardLine(board *models.Board, current bool) string {
	marker := "  "
	if current {
		marker = successStyle.Render("* ")
	}
	return fmt.Sprintf("%s%s  %s  %s", marker, titleStyle.Render(board.ID), board.Title,
		subtleStyle.Render(FormatTimeAgo(board.UpdatedAt)))
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// TaskOneLiner returns a concise single-line task representation
// with styled priority, e.g. `tk-abc1 "Title" [high]`.
func TaskOneLiner(task *models.Task) string {
	return fmt.Sprintf("%s \"%s\" %s", task.ID, task.Title, FormatPriority(task.Priority))
}

// TaskOneLinerPlain returns the one-liner without styling (for text contexts)
func TaskOneLinerPlain(task *models.Task) string {
	return fmt.Sprintf("%s \"%s\" [%s]", task.ID, task.Title, task.Priority)
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nSUBTASKS:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// IndentLines indents each line by the specified number of spaces
func IndentLines(lines []string, spaces int) []string {
	indent := strings.Repeat(" ", spaces)
	result := make([]string, len(lines))
	for i, line := range lines {
		result[i] = indent + line
	}
	return result
}

// IndentString indents each line in a string by the specified number of spaces
func IndentString(s string, spaces int) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	indented := IndentLines(lines, spaces)
	return strings.Join(indented, "\n")
}

// BulletList formats items as a bulleted list with optional indentation
func BulletList(items []string, indent int) []string {
	prefix := strings.Repeat(" ", indent)
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = prefix + "- " + item
	}
	return result
}
