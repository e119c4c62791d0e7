package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"portfolio-assistant/internal/adapter/tui/theme"
	"portfolio-assistant/internal/domain"
)

// MessageRole selects how a chat entry is labelled and styled.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleError     MessageRole = "error"
	RoleBlocked   MessageRole = "blocked"
	RolePending   MessageRole = "pending"
)

// ChatMessage is one rendered entry of the chat history.
type ChatMessage struct {
	ID        string
	Role      MessageRole
	Content   string
	Timestamp time.Time
}

// FromDomain maps a conversation message onto a chat entry.
func FromDomain(m domain.Message) ChatMessage {
	cm := ChatMessage{
		ID:        m.ID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	switch {
	case m.IsLoading:
		cm.Role = RolePending
	case m.Role == domain.RoleUser:
		cm.Role = RoleUser
	case m.HasError():
		cm.Role = RoleError
	case m.IsDomainBlocked:
		cm.Role = RoleBlocked
	case m.Role == domain.RoleSystem:
		cm.Role = RoleSystem
	default:
		cm.Role = RoleAssistant
	}
	return cm
}

// MessageListModel renders an ordered list of chat entries. Markdown
// renders are cached by message ID; conversation messages never change
// once appended.
type MessageListModel struct {
	Messages   []ChatMessage
	width      int
	mdRenderer *glamour.TermRenderer
	rendered   map[string]string
	now        func() time.Time
}

// NewMessageList creates an empty message list.
func NewMessageList() MessageListModel {
	return MessageListModel{
		rendered: make(map[string]string),
		now:      time.Now,
	}
}

// SetWidth updates the rendering width and drops cached renders.
func (m *MessageListModel) SetWidth(w int) {
	if w == m.width {
		return
	}
	m.width = w
	m.mdRenderer = nil
	m.rendered = make(map[string]string)
}

// Set replaces the list contents. Cached renders for messages no longer
// present are dropped.
func (m *MessageListModel) Set(msgs []ChatMessage) {
	m.Messages = msgs
	keep := make(map[string]string, len(msgs))
	for _, msg := range msgs {
		if r, ok := m.rendered[msg.ID]; ok {
			keep[msg.ID] = r
		}
	}
	m.rendered = keep
}

// View renders all messages as a single string.
func (m *MessageListModel) View() string {
	if len(m.Messages) == 0 {
		return theme.TextMuted.Render("  No messages yet. Ask about skills, projects or experience.")
	}

	width := ContentWidth(m.width)
	var sb strings.Builder
	for i := range m.Messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderMessage(&m.Messages[i], width))
	}
	return sb.String()
}

func (m *MessageListModel) renderMessage(msg *ChatMessage, width int) string {
	header := roleLabel(msg.Role)
	if ts := RelativeTime(msg.Timestamp, m.now()); ts != "" {
		header += " " + theme.Timestamp.Render(ts)
	}

	var body string
	switch msg.Role {
	case RoleAssistant:
		body = strings.TrimSpace(m.markdown(msg))
	case RolePending:
		body = theme.Dim.Render("  typing" + theme.SymbolEllipsis)
	case RoleError:
		body = "  " + theme.TextError.Render(wrapText(msg.Content, width-2))
	case RoleBlocked:
		body = "  " + theme.TextWarning.Render(wrapText(msg.Content, width-2))
	default:
		body = "  " + wrapText(msg.Content, width-2)
	}
	return header + "\n" + body
}

func (m *MessageListModel) markdown(msg *ChatMessage) string {
	if r, ok := m.rendered[msg.ID]; ok && msg.ID != "" {
		return r
	}
	out := m.renderMarkdown(msg.Content, ContentWidth(m.width))
	if msg.ID != "" {
		m.rendered[msg.ID] = out
	}
	return out
}

func (m *MessageListModel) renderMarkdown(content string, width int) string {
	if m.mdRenderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "  " + content
		}
		m.mdRenderer = r
	}
	rendered, err := m.mdRenderer.Render(content)
	if err != nil {
		return "  " + content
	}
	return rendered
}

func roleLabel(role MessageRole) string {
	switch role {
	case RoleUser:
		return theme.UserLabel.Render(theme.SymbolUser)
	case RoleAssistant, RolePending:
		return theme.BotLabel.Render(theme.SymbolBot)
	case RoleError:
		return theme.ErrorLabel.Render(theme.SymbolError + " " + theme.SymbolBot)
	case RoleBlocked:
		return theme.BlockedLabel.Render(theme.SymbolBlocked + " " + theme.SymbolBot)
	case RoleSystem:
		return theme.SystemLabel.Render("System")
	default:
		return theme.TextMuted.Render(string(role))
	}
}

// RelativeTime renders t relative to now.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2 15:04")
	}
}

// wrapText wraps s at width runes, indenting continuation lines by two
// spaces.
func wrapText(s string, width int) string {
	var out []string
	for _, para := range strings.Split(s, "\n") {
		out = append(out, wrapLine(para, width))
	}
	return strings.Join(out, "\n  ")
}

func wrapLine(s string, width int) string {
	runes := []rune(s)
	if width <= 0 || len(runes) <= width {
		return s
	}
	var lines []string
	for len(runes) > width {
		idx := -1
		for i := width - 1; i > 0; i-- {
			if runes[i] == ' ' {
				idx = i
				break
			}
		}
		if idx <= 0 {
			idx = width
		}
		lines = append(lines, string(runes[:idx]))
		runes = runes[idx:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return strings.Join(lines, "\n  ")
}

// ContentWidth clamps a terminal width to a readable body width.
func ContentWidth(termWidth int) int {
	w := termWidth - 4
	if w > theme.MaxContentWidth {
		w = theme.MaxContentWidth
	}
	if w < 40 {
		w = 40
	}
	return w
}

// Divider renders a horizontal rule.
func Divider(width int) string {
	return lipgloss.NewStyle().
		Foreground(theme.ColorBorder).
		Render(strings.Repeat("─", max(width, 0)))
}
