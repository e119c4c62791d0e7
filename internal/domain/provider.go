package domain

import "context"

// LLMProvider is the interface for any upstream text-generation backend.
type LLMProvider interface {
	// Chat sends the prompt and returns the extracted reply text.
	Chat(ctx context.Context, messages []PromptMessage) (string, error)
	// Name returns the provider's identifier (e.g., "mistral", "groq").
	Name() string
}
