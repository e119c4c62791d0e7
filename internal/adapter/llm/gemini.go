package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/infra/config"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// geminiFormat is the Google generateContent wire format. The key travels in
// the x-goog-api-key header rather than the query string so it stays out of
// access logs.
type geminiFormat struct{}

type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGeneration `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGeneration struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

func (geminiFormat) Endpoint(cfg config.ProviderConfig) string {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultGeminiBaseURL
	}
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, cfg.Model)
}

func (geminiFormat) Headers(cfg config.ProviderConfig) map[string]string {
	if cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"x-goog-api-key": cfg.APIKey}
}

func (geminiFormat) Body(cfg config.ProviderConfig, msgs []domain.PromptMessage) ([]byte, error) {
	return json.Marshal(toGeminiRequest(cfg, msgs))
}

func toGeminiRequest(cfg config.ProviderConfig, msgs []domain.PromptMessage) geminiRequest {
	req := geminiRequest{
		GenerationConfig: geminiGeneration{
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			MaxOutputTokens: cfg.MaxTokens,
		},
	}

	var system []string
	for _, m := range msgs {
		if m.Role == domain.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	if len(system) > 0 {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}},
		}
	}
	return req
}
