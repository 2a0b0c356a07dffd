package boardui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/kanban/internal/models"
)

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")
	cyanColor    = lipgloss.Color("45")

	// Column styles
	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activeColumnStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(primaryColor).
				Padding(0, 1)

	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("255"))

	activeColumnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Underline(true).
				Foreground(primaryColor)

	// Text styles
	titleStyle  = lipgloss.NewStyle().Bold(true)
	subtleStyle = lipgloss.NewStyle().Foreground(mutedColor)
	helpStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	doneStyle   = lipgloss.NewStyle().Foreground(mutedColor).Strikethrough(true)
	labelStyle  = lipgloss.NewStyle().Foreground(cyanColor)

	errorStyle     = lipgloss.NewStyle().Foreground(errorColor)
	celebrateStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	spinnerStyle   = lipgloss.NewStyle().Foreground(primaryColor)

	// Selected card - inverted colors for visibility
	selectedCardStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("237")).
				Foreground(lipgloss.Color("255"))

	// Persistence status badges
	statusStyles = map[models.SyncStatus]lipgloss.Style{
		models.SyncIdle:    lipgloss.NewStyle().Foreground(mutedColor),
		models.SyncLoading: lipgloss.NewStyle().Foreground(cyanColor),
		models.SyncSaving:  lipgloss.NewStyle().Foreground(warningColor),
		models.SyncSaved:   lipgloss.NewStyle().Foreground(successColor),
		models.SyncError:   lipgloss.NewStyle().Foreground(errorColor),
	}

	// Priority styles
	priorityStyles = map[models.Priority]lipgloss.Style{
		models.PriorityUrgent: lipgloss.NewStyle().Foreground(errorColor).Bold(true),
		models.PriorityHigh:   lipgloss.NewStyle().Foreground(warningColor),
		models.PriorityMedium: lipgloss.NewStyle().Foreground(cyanColor),
		models.PriorityLow:    lipgloss.NewStyle().Foreground(mutedColor),
	}

	// Priority marker symbols
	priorityMarks = map[models.Priority]string{
		models.PriorityUrgent: "‼",
		models.PriorityHigh:   "!",
		models.PriorityMedium: "•",
		models.PriorityLow:    "·",
	}
)

// formatPriorityMark renders the one-character priority marker with color.
func formatPriorityMark(p models.Priority) string {
	mark, ok := priorityMarks[p]
	if !ok {
		mark = "•"
	}
	style, ok := priorityStyles[p]
	if !ok {
		return mark
	}
	return style.Render(mark)
}

// formatStatusBadge renders the persistence status for the header line.
func formatStatusBadge(s models.SyncStatus) string {
	style, ok := statusStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render("[" + string(s) + "]")
}

// padTrunc fits a plain (unstyled) string to exactly width cells. Styling
// is applied by callers afterwards so truncation never has to account for
// escape sequences.
func padTrunc(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) > width {
		if width == 1 {
			return "…"
		}
		return string(runes[:width-1]) + "…"
	}
	return s + strings.Repeat(" ", width-len(runes))
}
