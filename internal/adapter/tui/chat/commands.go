package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// sendMessageCmd runs one assistant cycle off the update loop.
func sendMessageCmd(ctx context.Context, a Assistant, text string) tea.Cmd {
	return func() tea.Msg {
		return SendDoneMsg{Outcome: a.SendMessage(ctx, text)}
	}
}

// waitForSnapshot delivers the next pending snapshot.
func waitForSnapshot(f *Feed) tea.Cmd {
	return func() tea.Msg {
		snap, ok := f.Next()
		if !ok {
			return nil
		}
		return snap
	}
}
