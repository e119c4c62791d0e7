package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"portfolio-assistant/internal/domain"
)

// maxResponseBody is the maximum response body size we read from provider APIs.
const maxResponseBody = 10 * 1024 * 1024 // 10 MB

// maxErrorDetail caps how much of an unparseable error body ends up in an error.
const maxErrorDetail = 512

// UpstreamError is a non-2xx answer from a provider. Its message always
// carries the status code, so callers matching on "401", "429" or "503"
// in the error text keep working.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Inference API error: %s returned %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap maps the status onto the domain sentinels.
func (e *UpstreamError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return domain.ErrAuthInvalid
	case e.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimit
	case e.StatusCode >= 500:
		return domain.ErrUpstreamUnavailable
	default:
		return domain.ErrProviderError
	}
}

// doJSONRequest performs a JSON POST request and returns the response body.
// Non-2xx responses become *UpstreamError.
func doJSONRequest(ctx context.Context, client *http.Client, provider, url string, body []byte, headers map[string]string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &UpstreamError{
			Provider:   provider,
			StatusCode: httpResp.StatusCode,
			Message:    errorMessage(respBody, httpResp.Status),
		}
	}

	return respBody, nil
}

// errorMessage pulls a human-readable message out of an error body. It
// understands {"error":{"message":..}}, {"error":".."} and {"message":".."}.
func errorMessage(body []byte, status string) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(payload.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
			var flat string
			if json.Unmarshal(payload.Error, &flat) == nil && flat != "" {
				return flat
			}
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return status
	}
	if len(text) > maxErrorDetail {
		cut := maxErrorDetail
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}

// envelope is the union of every response shape the supported formats
// produce. Fields a format does not use stay empty.
type envelope struct {
	Choices []struct {
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// ExtractText returns the reply text of a provider response regardless of
// its shape. It tries choices[0].message.content, then choices[0].text, then
// the concatenated parts of candidates[0]. The result is trimmed; an empty
// result is ErrMalformedResponse.
func ExtractText(body []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	if len(env.Choices) > 0 {
		c := env.Choices[0]
		if c.Message != nil {
			if text := strings.TrimSpace(c.Message.Content); text != "" {
				return text, nil
			}
		}
		if text := strings.TrimSpace(c.Text); text != "" {
			return text, nil
		}
	}

	if len(env.Candidates) > 0 {
		var sb strings.Builder
		for _, part := range env.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			return text, nil
		}
	}

	return "", fmt.Errorf("%w: invalid response format", domain.ErrMalformedResponse)
}
