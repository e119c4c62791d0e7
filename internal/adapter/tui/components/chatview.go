package components

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// ChatViewModel wraps a viewport that follows new messages while the user
// is at the bottom and stays put once they scroll up.
type ChatViewModel struct {
	Viewport viewport.Model
	Messages MessageListModel
	notes    []ChatMessage
	ready    bool
	atBottom bool
}

// NewChatView creates a chat view. The viewport is created on the first
// SetSize.
func NewChatView() ChatViewModel {
	return ChatViewModel{
		Messages: NewMessageList(),
		atBottom: true,
	}
}

// SetSize sets the viewport dimensions and re-renders.
func (m *ChatViewModel) SetSize(w, h int) {
	m.Messages.SetWidth(w)
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.Viewport.MouseWheelDelta = 3
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refresh()
}

// SetConversation replaces the conversation shown. Local notes are dropped
// whenever the conversation itself changed length.
func (m *ChatViewModel) SetConversation(msgs []ChatMessage) {
	if len(msgs) != len(m.Messages.Messages) {
		m.notes = nil
	}
	m.Messages.Set(msgs)
	m.refresh()
}

// AddNote shows a UI-only system line below the conversation.
func (m *ChatViewModel) AddNote(text string) {
	m.notes = append(m.notes, ChatMessage{Role: RoleSystem, Content: text})
	m.refresh()
}

// Notes returns the UI-only lines currently shown.
func (m ChatViewModel) Notes() []ChatMessage { return m.notes }

// Update handles scrolling and tracks whether to follow new output.
func (m ChatViewModel) Update(msg tea.Msg) (ChatViewModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	m.atBottom = m.Viewport.AtBottom()
	return m, cmd
}

// View renders the chat viewport.
func (m ChatViewModel) View() string {
	if !m.ready {
		return "  Initializing..."
	}
	return m.Viewport.View()
}

func (m *ChatViewModel) refresh() {
	if !m.ready {
		return
	}
	content := m.Messages.View()
	if len(m.notes) > 0 {
		notes := MessageListModel{Messages: m.notes, width: m.Messages.width, now: m.Messages.now}
		content += "\n\n" + notes.View()
	}
	m.Viewport.SetContent(content)
	if m.atBottom {
		m.Viewport.GotoBottom()
	}
}
