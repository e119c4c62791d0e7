package chat

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"portfolio-assistant/internal/adapter/tui/components"
	"portfolio-assistant/internal/adapter/tui/theme"
	"portfolio-assistant/internal/usecase"
	"portfolio-assistant/internal/usecase/conversation"
)

// Assistant is the part of *usecase.Assistant the chat UI drives.
type Assistant interface {
	SendMessage(ctx context.Context, text string) usecase.Outcome
	Clear()
}

// ModelDeps are dependencies injected into the chat model.
type ModelDeps struct {
	Assistant Assistant
	Feed      *Feed
	OwnerName string // shown in the header; empty = generic title
	Provider  string // shown in the status bar
}

const throttledNote = "Slow down a little; that message was not sent."

// Model is the root Bubble Tea model for the chat UI.
type Model struct {
	deps ModelDeps
	ctx  context.Context

	chatView  components.ChatViewModel
	input     components.InputAreaModel
	statusBar components.StatusBarModel
	spinner   spinner.Model

	loading  bool
	width    int
	height   int
	quitting bool
}

// NewModel creates the chat model. ctx bounds every SendMessage call.
func NewModel(ctx context.Context, deps ModelDeps) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	sb := components.NewStatusBar()
	sb.Provider = deps.Provider
	sb.Hints = defaultHints()

	return Model{
		deps:      deps,
		ctx:       ctx,
		chatView:  components.NewChatView(),
		input:     components.NewInputArea(),
		statusBar: sb,
		spinner:   s,
	}
}

// Init starts the spinner, cursor blink and snapshot feed.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textinput.Blink,
		waitForSnapshot(m.deps.Feed),
	)
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case components.InputSubmitMsg:
		return m.handleSubmit(msg.Value)

	case SnapshotMsg:
		m.applySnapshot(msg)
		return m, waitForSnapshot(m.deps.Feed)

	case SendDoneMsg:
		if msg.Outcome == usecase.OutcomeThrottled {
			m.chatView.AddNote(throttledNote)
		}
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) applySnapshot(snap SnapshotMsg) {
	msgs := make([]components.ChatMessage, 0, len(snap.Messages))
	for _, dm := range snap.Messages {
		msgs = append(msgs, components.FromDomain(dm))
	}
	m.chatView.SetConversation(msgs)
	m.loading = snap.Loading
	if m.loading {
		m.statusBar.Extra = theme.SymbolSpinner + " Thinking..."
	} else {
		m.statusBar.Extra = ""
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyCtrlL:
		return m.handleSlashCommand("/clear")
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSubmit(value string) (tea.Model, tea.Cmd) {
	if cmd, _, ok := components.ParseSlashCommand(value); ok {
		return m.handleSlashCommand(cmd)
	}
	return m, sendMessageCmd(m.ctx, m.deps.Assistant, value)
}

func (m Model) handleSlashCommand(cmd string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit

	case "/clear":
		m.deps.Assistant.Clear()
		return m, nil

	case "/help":
		m.chatView.AddNote(`Available commands:
  /help    - Show this help
  /clear   - Start a new conversation
  /quit    - Exit

Keybindings:
  Enter      - Send message
  PgUp/PgDn  - Scroll
  Ctrl+L     - Clear conversation
  Ctrl+C     - Quit`)
		return m, nil

	default:
		m.chatView.AddNote(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
		return m, nil
	}
}

// View renders the whole UI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 {
		return "  Initializing..."
	}

	inputView := m.input.View()
	if m.loading {
		inputView = m.spinner.View() + " " + theme.Dim.Render("waiting for response...") + "\n" + inputView
	} else {
		inputView = "\n" + inputView
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		theme.Header.Render(m.title()),
		m.chatView.View(),
		components.Divider(m.width),
		inputView,
		m.statusBar.View(),
	)
}

func (m Model) title() string {
	if m.deps.OwnerName == "" {
		return "Portfolio AI Assistant"
	}
	return m.deps.OwnerName + "'s Portfolio AI Assistant"
}

// layout recalculates sub-model sizes: header, divider, spinner line,
// input and status bar take one line each.
func (m *Model) layout() {
	contentH := max(m.height-5, 5)
	m.statusBar.SetWidth(m.width)
	m.chatView.SetSize(m.width, contentH)
	m.input.SetWidth(m.width)
}

func defaultHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "Enter", Desc: "Send"},
		{Key: "PgUp/PgDn", Desc: "Scroll"},
		{Key: "/help", Desc: "Commands"},
		{Key: "Ctrl+C", Desc: "Quit"},
	}
}

// Run starts the chat program and blocks until it exits or ctx is
// cancelled.
func Run(ctx context.Context, a Assistant, store *conversation.Store, ownerName, provider string) error {
	feed := NewFeed(store)
	defer feed.Close()

	program := tea.NewProgram(
		NewModel(ctx, ModelDeps{
			Assistant: a,
			Feed:      feed,
			OwnerName: ownerName,
			Provider:  provider,
		}),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		<-ctx.Done()
		program.Send(QuitMsg{})
	}()

	_, err := program.Run()
	return err
}
