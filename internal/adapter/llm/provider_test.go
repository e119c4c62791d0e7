package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/infra/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockProvider is a scripted domain.LLMProvider.
type mockProvider struct {
	name     string
	chatFunc func(ctx context.Context, msgs []domain.PromptMessage) (string, error)
}

func (m *mockProvider) Chat(ctx context.Context, msgs []domain.PromptMessage) (string, error) {
	if m.chatFunc != nil {
		return m.chatFunc(ctx, msgs)
	}
	return "", nil
}

func (m *mockProvider) Name() string { return m.name }

var testPrompt = []domain.PromptMessage{
	{Role: domain.RoleSystem, Content: "You are a portfolio assistant."},
	{Role: domain.RoleUser, Content: "hi"},
	{Role: domain.RoleAssistant, Content: "hello"},
	{Role: domain.RoleUser, Content: "What are your Angular skills?"},
}

type captured struct {
	path    string
	headers http.Header
	body    map[string]any
}

func captureServer(t *testing.T, status int, response string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.headers = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &c.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func newTestProvider(t *testing.T, cfg config.ProviderConfig) *Provider {
	t.Helper()
	p, err := NewProvider(cfg, newTestLogger())
	require.NoError(t, err)
	return p
}

func TestChatFormat(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"Angular since 2016."}}]}`)

	p := newTestProvider(t, config.ProviderConfig{
		Name: "mistral", Type: TypeChat, BaseURL: srv.URL + "/v1/", APIKey: "sk-test",
		Model: "mistral-small-latest", Temperature: 0.2, MaxTokens: 300, TopP: 0.9,
	})

	text, err := p.Chat(context.Background(), testPrompt)
	require.NoError(t, err)
	assert.Equal(t, "Angular since 2016.", text)

	assert.Equal(t, "/v1/chat/completions", got.path)
	assert.Equal(t, "Bearer sk-test", got.headers.Get("Authorization"))
	assert.Equal(t, "application/json", got.headers.Get("Content-Type"))
	assert.Equal(t, "mistral-small-latest", got.body["model"])
	assert.Equal(t, 0.2, got.body["temperature"])
	assert.Equal(t, 0.9, got.body["top_p"])
	assert.Equal(t, float64(300), got.body["max_tokens"])

	msgs, ok := got.body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
}

func TestCompletionsFormat(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{"choices":[{"text":" Angular since 2016. "}]}`)

	p := newTestProvider(t, config.ProviderConfig{
		Name: "legacy", Type: TypeCompletions, BaseURL: srv.URL, APIKey: "k", Model: "m",
	})

	text, err := p.Chat(context.Background(), testPrompt)
	require.NoError(t, err)
	assert.Equal(t, "Angular since 2016.", text)

	assert.Equal(t, "/completions", got.path)
	assert.Equal(t, false, got.body["stream"])
	prompt, _ := got.body["prompt"].(string)
	assert.Contains(t, prompt, "CONVERSATION HISTORY:\nUSER: hi\nASSISTANT: hello\n")
	assert.Contains(t, prompt, "USER: What are your Angular skills?\nASSISTANT:")
	assert.NotContains(t, got.body, "messages")
}

func TestGeminiFormat(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK,
		`{"candidates":[{"content":{"parts":[{"text":"Angular "},{"text":"since 2016."}],"role":"model"}}]}`)

	p := newTestProvider(t, config.ProviderConfig{
		Name: "gemini", Type: TypeGemini, BaseURL: srv.URL, APIKey: "g-key",
		Model: "gemini-1.5-flash", Temperature: 0.7, MaxTokens: 500,
	})

	text, err := p.Chat(context.Background(), testPrompt)
	require.NoError(t, err)
	assert.Equal(t, "Angular since 2016.", text)

	assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", got.path)
	assert.Equal(t, "g-key", got.headers.Get("x-goog-api-key"))
	assert.Empty(t, got.headers.Get("Authorization"))

	contents := got.body["contents"].([]any)
	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].(map[string]any)["role"])
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])

	sys := got.body["systemInstruction"].(map[string]any)
	part := sys["parts"].([]any)[0].(map[string]any)
	assert.Equal(t, "You are a portfolio assistant.", part["text"])

	gen := got.body["generationConfig"].(map[string]any)
	assert.Equal(t, float64(500), gen["maxOutputTokens"])
}

func TestProxyFormat(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`)

	p := newTestProvider(t, config.ProviderConfig{
		Name: "relay", Type: TypeProxy, BaseURL: srv.URL, Upstream: "mistral", APIKey: "ignored",
	})

	text, err := p.Chat(context.Background(), testPrompt)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, "/api/mistral", got.path)
	assert.Empty(t, got.headers.Get("Authorization"))
	assert.NotContains(t, got.body, "model")
	assert.NotContains(t, got.body, "temperature")
	assert.Len(t, got.body["messages"], 4)
}

func TestAttributionHeaders(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`)

	p := newTestProvider(t, config.ProviderConfig{
		Name: "openrouter", Type: TypeChat, BaseURL: srv.URL, APIKey: "k",
		Referer: "https://portfolio.example.com", Title: "Portfolio Assistant",
	})

	_, err := p.Chat(context.Background(), testPrompt)
	require.NoError(t, err)
	assert.Equal(t, "https://portfolio.example.com", got.headers.Get("HTTP-Referer"))
	assert.Equal(t, "Portfolio Assistant", got.headers.Get("X-Title"))
}

func TestChatUpstreamErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{"unauthorized", 401, `{"message":"Unauthorized"}`, domain.ErrAuthInvalid},
		{"rate limited", 429, `{"error":{"message":"Requests rate limit exceeded"}}`, domain.ErrRateLimit},
		{"unavailable", 503, `service unavailable`, domain.ErrUpstreamUnavailable},
		{"bad request", 400, `{"error":"bad"}`, domain.ErrProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := captureServer(t, tt.status, tt.body)
			p := newTestProvider(t, config.ProviderConfig{Name: "mistral", Type: TypeChat, BaseURL: srv.URL})

			_, err := p.Chat(context.Background(), testPrompt)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var ue *UpstreamError
			require.True(t, errors.As(err, &ue))
			assert.Equal(t, tt.status, ue.StatusCode)
			assert.Contains(t, err.Error(), strconv.Itoa(tt.status))
		})
	}
}

func TestChatMalformedResponse(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK, `{"id":"x","choices":[]}`)
	p := newTestProvider(t, config.ProviderConfig{Name: "mistral", Type: TypeChat, BaseURL: srv.URL})

	_, err := p.Chat(context.Background(), testPrompt)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestChatHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	p := newTestProvider(t, config.ProviderConfig{Name: "slow", Type: TypeChat, BaseURL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Chat(ctx, testPrompt)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestChatRejectsEmptyPrompt(t *testing.T) {
	p := newTestProvider(t, config.ProviderConfig{Name: "mistral", Type: TypeChat, BaseURL: "http://127.0.0.1:1"})
	_, err := p.Chat(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewProviderUnknownType(t *testing.T) {
	_, err := NewProvider(config.ProviderConfig{Name: "x", Type: "carrier-pigeon"}, newTestLogger())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegistryFromConfig(t *testing.T) {
	reg, err := NewRegistryFromConfig(config.LLMConfig{
		Providers: []config.ProviderConfig{
			{Name: "mistral", Type: TypeChat, BaseURL: "https://api.mistral.ai/v1"},
			{Name: "gemini", Type: TypeGemini},
		},
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: true},
	}, newTestLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"gemini", "mistral"}, reg.List())

	p, err := reg.Get("mistral")
	require.NoError(t, err)
	_, wrapped := p.(*CircuitBreakerProvider)
	assert.True(t, wrapped)

	_, err = reg.Get("nope")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&mockProvider{name: "a"}))
	assert.Error(t, reg.Register(&mockProvider{name: "a"}))
}
