// Package llm talks to upstream text-generation providers. A single Provider
// type covers every supported service; the wire differences live in Format
// implementations and every response goes through ExtractText.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/infra/config"
	"portfolio-assistant/internal/infra/tracer"
)

// Provider types accepted in configuration.
const (
	TypeChat        = "chat"
	TypeCompletions = "completions"
	TypeGemini      = "gemini"
	TypeProxy       = "proxy"
)

// Format describes how one provider family expects a request: where to send
// it, which headers authenticate it and how the body is encoded.
type Format interface {
	Endpoint(cfg config.ProviderConfig) string
	Headers(cfg config.ProviderConfig) map[string]string
	Body(cfg config.ProviderConfig, msgs []domain.PromptMessage) ([]byte, error)
}

// FormatFor returns the Format registered for a provider type.
func FormatFor(typ string) (Format, error) {
	switch typ {
	case TypeChat, "":
		return chatFormat{}, nil
	case TypeCompletions:
		return completionsFormat{}, nil
	case TypeGemini:
		return geminiFormat{}, nil
	case TypeProxy:
		return proxyFormat{}, nil
	default:
		return nil, domain.NewDomainError("llm.FormatFor", domain.ErrInvalidInput, fmt.Sprintf("unknown provider type %q", typ))
	}
}

// Provider implements domain.LLMProvider for any configured format.
// It performs exactly one request per Chat call; callers own timeouts
// through ctx.
type Provider struct {
	cfg    config.ProviderConfig
	format Format
	client *http.Client
	logger *slog.Logger
}

// Compile-time interface assertion.
var _ domain.LLMProvider = (*Provider)(nil)

// ProviderOption customizes a Provider.
type ProviderOption func(*Provider)

// WithClient replaces the pooled HTTP client.
func WithClient(c *http.Client) ProviderOption {
	return func(p *Provider) { p.client = c }
}

// NewProvider creates a provider for cfg.
func NewProvider(cfg config.ProviderConfig, logger *slog.Logger, opts ...ProviderOption) (*Provider, error) {
	format, err := FormatFor(cfg.Type)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:    cfg,
		format: format,
		client: NewHTTPClient(cfg),
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client = withAttribution(p.client, cfg.Referer, cfg.Title)
	return p, nil
}

// Chat implements domain.LLMProvider.
func (p *Provider) Chat(ctx context.Context, msgs []domain.PromptMessage) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", p.cfg.Name),
			tracer.StringAttr("llm.type", p.cfg.Type),
			tracer.StringAttr("llm.model", p.cfg.Model),
			tracer.IntAttr("llm.messages", len(msgs)),
		),
	)
	defer span.End()

	if len(msgs) == 0 {
		err := domain.NewDomainError("Provider.Chat", domain.ErrInvalidInput, "no messages")
		tracer.RecordError(span, err)
		return "", err
	}

	body, err := p.format.Body(p.cfg, msgs)
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := doJSONRequest(ctx, p.client, p.cfg.Name, p.format.Endpoint(p.cfg), body, p.format.Headers(p.cfg))
	if err != nil {
		tracer.RecordError(span, err)
		p.logger.Warn("llm chat failed",
			"cycle", domain.CycleIDFromContext(ctx),
			"provider", p.cfg.Name,
			"error", err,
			"code", domain.ErrorCodeOf(err),
		)
		return "", err
	}

	text, err := ExtractText(respBody)
	if err != nil {
		tracer.RecordError(span, err)
		p.logger.Warn("llm response not understood",
			"cycle", domain.CycleIDFromContext(ctx),
			"provider", p.cfg.Name,
			"error", err,
		)
		return "", err
	}

	span.SetAttributes(tracer.IntAttr("llm.reply_chars", len(text)))
	tracer.SetOK(span)
	p.logger.Debug("llm chat completed",
		"cycle", domain.CycleIDFromContext(ctx),
		"provider", p.cfg.Name,
		"model", p.cfg.Model,
		"reply_chars", len(text),
	)
	return text, nil
}

// Name implements domain.LLMProvider.
func (p *Provider) Name() string { return p.cfg.Name }
