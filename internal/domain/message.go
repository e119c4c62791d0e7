package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Role constants for message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in the conversation log.
// A message is never mutated after it is appended; the loading placeholder
// is replaced by its result instead.
type Message struct {
	ID              string    `json:"id"`
	Role            string    `json:"role"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	IsLoading       bool      `json:"is_loading,omitempty"`
	Error           string    `json:"error,omitempty"`
	IsDomainBlocked bool      `json:"is_domain_blocked,omitempty"`
}

// HasError reports whether the message carries an error.
func (m Message) HasError() bool { return m.Error != "" }

// PromptMessage is one entry of an outbound prompt.
type PromptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a message with a fresh ID and the current timestamp.
func NewMessage(role, content string) Message {
	now := time.Now()
	return Message{
		ID:        NewMessageID(now),
		Role:      role,
		Content:   content,
		Timestamp: now,
	}
}

// NewMessageID returns a ULID for t. IDs drawn within the same millisecond
// are monotonic.
func NewMessageID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}
