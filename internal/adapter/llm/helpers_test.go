package llm

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"portfolio-assistant/internal/domain"
)

func TestExtractTextChatAndCompletionsAgree(t *testing.T) {
	chat, err := ExtractText([]byte(`{"choices":[{"message":{"content":"X"}}]}`))
	if err != nil {
		t.Fatalf("chat shape: %v", err)
	}
	completion, err := ExtractText([]byte(`{"choices":[{"text":"X"}]}`))
	if err != nil {
		t.Fatalf("completions shape: %v", err)
	}
	if chat != "X" || completion != "X" {
		t.Errorf("got chat=%q completion=%q, want both %q", chat, completion, "X")
	}
}

func TestExtractTextGeminiJoinsParts(t *testing.T) {
	body := `{"candidates":[{"content":{"parts":[{"text":"Hello"},{"text":" world "}]}}]}`
	got, err := ExtractText([]byte(body))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != "Hello world" {
		t.Errorf("got %q", got)
	}
}

func TestExtractTextFallsBackFromEmptyMessage(t *testing.T) {
	got, err := ExtractText([]byte(`{"choices":[{"message":{"content":""},"text":"fallback"}]}`))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != "fallback" {
		t.Errorf("got %q", got)
	}
}

func TestExtractTextTrims(t *testing.T) {
	got, _ := ExtractText([]byte(`{"choices":[{"message":{"content":"  hi\n"}}]}`))
	if got != "hi" {
		t.Errorf("got %q", got)
	}
}

func TestExtractTextMalformed(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"choices":[]}`,
		`{"choices":[{"message":{"content":"   "}}]}`,
		`{"candidates":[{"content":{"parts":[]}}]}`,
		`not json`,
	} {
		if _, err := ExtractText([]byte(body)); !errors.Is(err, domain.ErrMalformedResponse) {
			t.Errorf("%s: expected ErrMalformedResponse, got %v", body, err)
		}
	}
}

func TestUpstreamErrorUnwrap(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrAuthInvalid},
		{http.StatusForbidden, domain.ErrAuthInvalid},
		{http.StatusTooManyRequests, domain.ErrRateLimit},
		{http.StatusInternalServerError, domain.ErrUpstreamUnavailable},
		{http.StatusServiceUnavailable, domain.ErrUpstreamUnavailable},
		{http.StatusBadRequest, domain.ErrProviderError},
		{418, domain.ErrProviderError},
	}
	for _, tt := range tests {
		err := &UpstreamError{Provider: "mistral", StatusCode: tt.status, Message: "m"}
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err.Unwrap())
		}
	}
}

func TestUpstreamErrorMessageCarriesStatus(t *testing.T) {
	err := &UpstreamError{Provider: "mistral", StatusCode: 429, Message: "slow down"}
	got := err.Error()
	if !strings.Contains(got, "429") || !strings.Contains(got, "slow down") || !strings.Contains(got, "mistral") {
		t.Errorf("unexpected message %q", got)
	}
}

func TestErrorMessageShapes(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"error":{"message":"invalid api key"}}`, "invalid api key"},
		{`{"error":"Mistral API key not configured"}`, "Mistral API key not configured"},
		{`{"message":"Unauthorized"}`, "Unauthorized"},
		{`upstream exploded`, "upstream exploded"},
		{``, "502 Bad Gateway"},
	}
	for _, tt := range tests {
		if got := errorMessage([]byte(tt.body), "502 Bad Gateway"); got != tt.want {
			t.Errorf("body %q: got %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestErrorMessageTruncatesRawBody(t *testing.T) {
	got := errorMessage([]byte(strings.Repeat("x", 2000)), "500")
	if len(got) != maxErrorDetail {
		t.Errorf("len = %d, want %d", len(got), maxErrorDetail)
	}
}

func TestErrorMessageTruncatesOnRuneBoundary(t *testing.T) {
	// One ASCII byte shifts every two-byte rune so the cap lands mid-rune.
	got := errorMessage([]byte("x"+strings.Repeat("é", 1000)), "500")
	if !utf8.ValidString(got) {
		t.Fatalf("truncated message is not valid UTF-8: %q", got[len(got)-4:])
	}
	if len(got) != maxErrorDetail-1 {
		t.Errorf("len = %d, want %d", len(got), maxErrorDetail-1)
	}
}
