// Package chat is the Bubble Tea front-end for the portfolio assistant. It
// renders conversation snapshots pushed by the conversation store and
// submits questions to the assistant.
package chat

import (
	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/usecase"
)

// SnapshotMsg carries the latest conversation state.
type SnapshotMsg struct {
	Messages []domain.Message
	Loading  bool
}

// SendDoneMsg signals that one SendMessage call returned.
type SendDoneMsg struct {
	Outcome usecase.Outcome
}

// QuitMsg asks the program to exit.
type QuitMsg struct{}
