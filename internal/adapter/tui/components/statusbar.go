package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"portfolio-assistant/internal/adapter/tui/theme"
)

// KeyHint is one keybinding hint.
type KeyHint struct {
	Key  string
	Desc string
}

// StatusBarModel renders the bottom line: hints on the left, provider and
// transient status on the right.
type StatusBarModel struct {
	Hints    []KeyHint
	Provider string
	Extra    string
	width    int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBarModel {
	return StatusBarModel{}
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// View renders the status bar as a single line.
func (m StatusBarModel) View() string {
	var hints []string
	for _, h := range m.Hints {
		hints = append(hints, theme.StatusKey.Render(h.Key)+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	var right string
	if m.Provider != "" {
		right = theme.TextMuted.Render(m.Provider)
	}
	if m.Extra != "" {
		if right != "" {
			right += "  "
		}
		right += theme.TextInfo.Render(m.Extra)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
