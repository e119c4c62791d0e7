package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"portfolio-assistant/internal/adapter/tui/theme"
)

// InputSubmitMsg is sent when the user presses Enter on non-blank input.
type InputSubmitMsg struct {
	Value string
}

// InputAreaModel is a single-line prompt with submit handling.
type InputAreaModel struct {
	Input   textinput.Model
	Enabled bool
}

// NewInputArea creates a focused input.
func NewInputArea() InputAreaModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about skills, projects, experience..."
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder
	ti.Focus()

	return InputAreaModel{Input: ti, Enabled: true}
}

// SetWidth updates the input width.
func (m *InputAreaModel) SetWidth(w int) {
	m.Input.Width = max(w-4, 10)
}

// SetEnabled focuses or blurs the input.
func (m *InputAreaModel) SetEnabled(enabled bool) {
	m.Enabled = enabled
	if enabled {
		m.Input.Focus()
	} else {
		m.Input.Blur()
	}
}

// Value returns the current input text.
func (m InputAreaModel) Value() string {
	return m.Input.Value()
}

// ParseSlashCommand extracts a lower-cased command and its args.
func ParseSlashCommand(input string) (cmd string, args []string, ok bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", nil, false
	}
	parts := strings.Fields(input)
	return strings.ToLower(parts[0]), parts[1:], true
}

// Update handles key events. Enter submits non-blank input.
func (m InputAreaModel) Update(msg tea.Msg) (InputAreaModel, tea.Cmd) {
	if !m.Enabled {
		return m, nil
	}
	if _, ok := msg.(tea.MouseMsg); ok {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEnter {
		value := strings.TrimSpace(m.Input.Value())
		if value == "" {
			return m, nil
		}
		m.Input.Reset()
		return m, func() tea.Msg { return InputSubmitMsg{Value: value} }
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

// View renders the input line.
func (m InputAreaModel) View() string {
	return m.Input.View()
}
