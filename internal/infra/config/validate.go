package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
//
// Missing API keys are not validation errors: a provider without a key fails
// at call time with an authentication error, which the assistant reports to
// the user.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateAssistant(cfg, ve)
	validateContext(cfg, ve)
	validateLLM(cfg, ve)
	validateProxy(cfg, ve)
	validateLogger(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateAssistant(cfg *Config, ve *ValidationError) {
	a := cfg.Assistant
	if a.Throttle < 0 {
		ve.Add("assistant.throttle must be >= 0")
	}
	if a.ContextWait <= 0 {
		ve.Add("assistant.context_wait must be > 0")
	}
	if a.RequestTimeout <= 0 {
		ve.Add("assistant.request_timeout must be > 0")
	}
	if a.MaxHistory < 0 {
		ve.Add("assistant.max_history must be >= 0")
	}
	if a.Retention < 1 {
		ve.Add("assistant.retention must be >= 1")
	}
}

func validateContext(cfg *Config, ve *ValidationError) {
	c := cfg.Context
	if len(c.Locations) == 0 {
		ve.Add("context.locations must not be empty")
	}
	if c.MaxRetries < 1 {
		ve.Add("context.max_retries must be >= 1")
	}
	if c.BaseDelay < 0 {
		ve.Add("context.base_delay must be >= 0")
	}
	if c.BaseURL != "" {
		if _, err := url.Parse(c.BaseURL); err != nil {
			ve.Add("context.base_url %q is not a valid URL", c.BaseURL)
		}
	}
}

var validProviderTypes = map[string]bool{
	"chat":        true,
	"completions": true,
	"gemini":      true,
	"proxy":       true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if cfg.LLM.DefaultProvider == "" {
		ve.Add("llm.default_provider must not be empty")
	}

	if len(cfg.LLM.Providers) == 0 {
		ve.Add("llm.providers must not be empty")
		return
	}

	seen := make(map[string]bool)
	foundDefault := false
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true

		if !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q is invalid (want: chat, completions, gemini, proxy)", i, p.Type)
		}
		if p.BaseURL == "" {
			ve.Add("llm.providers[%d] (%s): base_url is required", i, p.Name)
		}
		if p.Type == "proxy" && p.Upstream == "" {
			ve.Add("llm.providers[%d] (%s): upstream is required for proxy provider", i, p.Name)
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			ve.Add("llm.providers[%d] (%s): temperature must be within [0, 2]", i, p.Name)
		}
		if p.TopP < 0 || p.TopP > 1 {
			ve.Add("llm.providers[%d] (%s): top_p must be within [0, 1]", i, p.Name)
		}
		if p.MaxTokens < 0 {
			ve.Add("llm.providers[%d] (%s): max_tokens must be >= 0", i, p.Name)
		}
		if p.Name == cfg.LLM.DefaultProvider {
			foundDefault = true
		}
	}

	if !foundDefault && cfg.LLM.DefaultProvider != "" {
		ve.Add("llm.default_provider %q does not match any configured provider", cfg.LLM.DefaultProvider)
	}
}

func validateProxy(cfg *Config, ve *ValidationError) {
	p := cfg.Proxy
	if p.Addr == "" {
		ve.Add("proxy.addr must not be empty")
	} else if _, _, err := net.SplitHostPort(p.Addr); err != nil {
		ve.Add("proxy.addr %q is not a valid host:port", p.Addr)
	}
	if p.RateLimit.Requests <= 0 {
		ve.Add("proxy.rate_limit.requests must be > 0")
	}
	if p.RateLimit.Window <= 0 {
		ve.Add("proxy.rate_limit.window must be > 0")
	}
	if p.UpstreamTimeout <= 0 {
		ve.Add("proxy.upstream_timeout must be > 0")
	}
	if p.MaxBodyBytes <= 0 {
		ve.Add("proxy.max_body_bytes must be > 0")
	}
	for i, cidr := range p.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			ve.Add("proxy.trusted_proxies[%d] %q is not a valid CIDR", i, cidr)
		}
	}

	seen := make(map[string]bool)
	for i, up := range p.Upstreams {
		if up.Name == "" {
			ve.Add("proxy.upstreams[%d].name must not be empty", i)
			continue
		}
		if seen[up.Name] {
			ve.Add("proxy.upstreams[%d]: duplicate upstream name %q", i, up.Name)
		}
		seen[up.Name] = true
		if up.Name == "proxy" {
			ve.Add("proxy.upstreams[%d]: name %q is reserved", i, up.Name)
		}
		u, err := url.Parse(up.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			ve.Add("proxy.upstreams[%d] (%s): url %q must be an absolute http(s) URL", i, up.Name, up.URL)
		}
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}
