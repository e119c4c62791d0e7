package llm

import (
	"encoding/json"
	"strings"

	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/infra/config"
	"portfolio-assistant/internal/usecase/prompt"
)

// chatFormat is the OpenAI-compatible chat-completions wire format, used by
// Mistral, OpenAI, Groq and OpenRouter alike.
type chatFormat struct{}

type chatRequest struct {
	Model       string                 `json:"model"`
	Messages    []domain.PromptMessage `json:"messages"`
	Temperature float64                `json:"temperature"`
	TopP        float64                `json:"top_p,omitempty"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
}

func (chatFormat) Endpoint(cfg config.ProviderConfig) string {
	return strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
}

func (chatFormat) Headers(cfg config.ProviderConfig) map[string]string {
	return bearer(cfg.APIKey)
}

func (chatFormat) Body(cfg config.ProviderConfig, msgs []domain.PromptMessage) ([]byte, error) {
	return json.Marshal(chatRequest{
		Model:       cfg.Model,
		Messages:    msgs,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
	})
}

// completionsFormat sends the whole conversation as one prompt string.
type completionsFormat struct{}

type completionsRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Stream      bool    `json:"stream"`
}

func (completionsFormat) Endpoint(cfg config.ProviderConfig) string {
	return strings.TrimRight(cfg.BaseURL, "/") + "/completions"
}

func (completionsFormat) Headers(cfg config.ProviderConfig) map[string]string {
	return bearer(cfg.APIKey)
}

func (completionsFormat) Body(cfg config.ProviderConfig, msgs []domain.PromptMessage) ([]byte, error) {
	return json.Marshal(completionsRequest{
		Model:       cfg.Model,
		Prompt:      prompt.RenderTranscript(msgs),
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
	})
}

// proxyFormat talks to this project's own relay, which holds the API key
// and fills in provider defaults.
type proxyFormat struct{}

type proxyRequest struct {
	Messages    []domain.PromptMessage `json:"messages"`
	Model       string                 `json:"model,omitempty"`
	Temperature *float64               `json:"temperature,omitempty"`
}

func (proxyFormat) Endpoint(cfg config.ProviderConfig) string {
	upstream := cfg.Upstream
	if upstream == "" {
		upstream = cfg.Name
	}
	return strings.TrimRight(cfg.BaseURL, "/") + "/api/" + upstream
}

func (proxyFormat) Headers(config.ProviderConfig) map[string]string { return nil }

func (proxyFormat) Body(cfg config.ProviderConfig, msgs []domain.PromptMessage) ([]byte, error) {
	req := proxyRequest{Messages: msgs, Model: cfg.Model}
	if cfg.Temperature != 0 {
		t := cfg.Temperature
		req.Temperature = &t
	}
	return json.Marshal(req)
}

func bearer(apiKey string) map[string]string {
	if apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + apiKey}
}
