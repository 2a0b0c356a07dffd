package output

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const (
	defaultDescriptionWidth = 80
	minDescriptionWidth     = 20
)

// TerminalWidth returns the current terminal width or a fallback when unavailable.
func TerminalWidth(fallback int) int {
	if fallback <= 0 {
		fallback = defaultDescriptionWidth
	}

	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if parsed, err := strconv.Atoi(cols); err == nil && parsed > 0 {
			return parsed
		}
	}

	return fallback
}

// RenderDescription renders a task description as markdown with
// terminal-aware wrapping. Plain text passes through Glamour unchanged
// apart from wrapping, so callers do not need to detect markdown first.
func RenderDescription(text string) (string, error) {
	return RenderDescriptionWithWidth(text, TerminalWidth(defaultDescriptionWidth))
}

// RenderDescriptionWithWidth renders a task description with explicit wrapping.
func RenderDescriptionWithWidth(text string, width int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if width < minDescriptionWidth {
		width = minDescriptionWidth
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	rendered, err := renderer.Render(text)
	if err != nil {
		return "", err
	}

	return strings.TrimRight(rendered, "\n"), nil
}
