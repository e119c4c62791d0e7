package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"

	"portfolio-assistant/internal/domain"
)

// Config is the root configuration for the portfolio assistant.
type Config struct {
	Assistant AssistantConfig `yaml:"assistant"`
	Context   ContextConfig   `yaml:"context"`
	LLM       LLMConfig       `yaml:"llm"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// AssistantConfig holds conversation-cycle settings.
type AssistantConfig struct {
	Throttle       time.Duration `yaml:"throttle"`        // minimum spacing between accepted sends
	ContextWait    time.Duration `yaml:"context_wait"`    // how long a send waits for the portfolio
	RequestTimeout time.Duration `yaml:"request_timeout"` // provider call deadline
	MaxHistory     int           `yaml:"max_history"`     // prior messages included in a prompt
	Retention      int           `yaml:"retention"`       // conversation log cap
}

// ContextConfig describes where the portfolio document is fetched from.
type ContextConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Locations  []string      `yaml:"locations"`
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	Watch      bool          `yaml:"watch"`
	Debounce   time.Duration `yaml:"debounce"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single LLM provider.
// Type selects the wire format: chat, completions, gemini or proxy.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	TopP        float64       `yaml:"top_p"`
	Upstream    string        `yaml:"upstream,omitempty"` // proxy type only
	Referer     string        `yaml:"referer,omitempty"`
	Title       string        `yaml:"title,omitempty"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// ProxyConfig holds settings for the key-holding relay server.
type ProxyConfig struct {
	Addr                string           `yaml:"addr"`
	AllowedOrigins      []string         `yaml:"allowed_origins"`
	TrustedProxies      []string         `yaml:"trusted_proxies"`
	RateLimit           RateLimitConfig  `yaml:"rate_limit"`
	UpstreamTimeout     time.Duration    `yaml:"upstream_timeout"`
	MaxBodyBytes        int64            `yaml:"max_body_bytes"`
	Upstreams           []UpstreamConfig `yaml:"upstreams"`
	GenericAllowedHosts []string         `yaml:"generic_allowed_hosts"`
}

// RateLimitConfig is a per-client request ceiling over a window.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// UpstreamConfig is one provider the proxy relays to.
type UpstreamConfig struct {
	Name        string  `yaml:"name"`
	URL         string  `yaml:"url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TopP        float64 `yaml:"top_p,omitempty"`
	Referer     string  `yaml:"referer,omitempty"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// DefaultLocations are the candidate portfolio document paths, tried in order.
// An entry starting with "{base}" is resolved against ContextConfig.BaseURL.
var DefaultLocations = []string{
	"{base}assets/portfolio-data.json",
	"/assets/portfolio-data.json",
	"./assets/portfolio-data.json",
	"assets/portfolio-data.json",
}

// Defaults returns a Config populated with sensible defaults.
func Defaults() *Config {
	return &Config{
		Assistant: AssistantConfig{
			Throttle:       800 * time.Millisecond,
			ContextWait:    10 * time.Second,
			RequestTimeout: 35 * time.Second,
			MaxHistory:     5,
			Retention:      20,
		},
		Context: ContextConfig{
			Locations:  append([]string(nil), DefaultLocations...),
			MaxRetries: 3,
			BaseDelay:  100 * time.Millisecond,
			Debounce:   250 * time.Millisecond,
		},
		LLM: LLMConfig{
			DefaultProvider: "mistral",
			Providers: []ProviderConfig{
				{
					Name:        "mistral",
					Type:        "chat",
					BaseURL:     "https://api.mistral.ai/v1",
					Model:       "mistral-small-latest",
					Temperature: 0.2,
					MaxTokens:   300,
					TopP:        0.9,
				},
			},
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Proxy: ProxyConfig{
			Addr: ":3000",
			AllowedOrigins: []string{
				"http://localhost:4200",
				"http://localhost:3000",
			},
			RateLimit: RateLimitConfig{
				Requests: 100,
				Window:   15 * time.Minute,
			},
			UpstreamTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			Upstreams: []UpstreamConfig{
				{
					Name:        "mistral",
					URL:         "https://api.mistral.ai/v1/chat/completions",
					Model:       "mistral-small-latest",
					Temperature: 0.2,
					MaxTokens:   300,
					TopP:        0.9,
				},
				{
					Name:        "openrouter",
					URL:         "https://openrouter.ai/api/v1/chat/completions",
					Model:       "openai/gpt-3.5-turbo",
					Temperature: 0.7,
					MaxTokens:   1000,
				},
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "stdout",
		},
	}
}

// Load reads a YAML config file, applies env overrides, and validates.
// A missing file is not an error: defaults plus env overrides are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(cfg)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("PORTFOLIO_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w: %w", domain.ErrDecryption, err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies PORTFOLIO_* environment variables on top of cfg.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORTFOLIO_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("PORTFOLIO_LLM_CIRCUIT_BREAKER_ENABLED"); v != "" {
		cfg.LLM.CircuitBreaker.Enabled = v == "true"
	}
	if v := os.Getenv("PORTFOLIO_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("PORTFOLIO_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("PORTFOLIO_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("PORTFOLIO_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("PORTFOLIO_CONTEXT_BASE_URL"); v != "" {
		cfg.Context.BaseURL = v
	}
	if v := os.Getenv("PORTFOLIO_CONTEXT_LOCATIONS"); v != "" {
		cfg.Context.Locations = splitAndTrim(v, ",")
	}
	if v := os.Getenv("PORTFOLIO_CONTEXT_WATCH"); v != "" {
		cfg.Context.Watch = v == "true"
	}
	if v := os.Getenv("PORTFOLIO_ASSISTANT_THROTTLE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.Assistant.Throttle = d
		}
	}
	if v := os.Getenv("PORTFOLIO_ASSISTANT_CONTEXT_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Assistant.ContextWait = d
		}
	}
	if v := os.Getenv("PORTFOLIO_ASSISTANT_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Assistant.RequestTimeout = d
		}
	}
	if v := os.Getenv("PORTFOLIO_PROXY_ADDR"); v != "" {
		cfg.Proxy.Addr = v
	}
	if v := os.Getenv("PORTFOLIO_PROXY_ALLOWED_ORIGINS"); v != "" {
		cfg.Proxy.AllowedOrigins = splitAndTrim(v, ",")
	}
	if v := os.Getenv("PORTFOLIO_PROXY_RATE_LIMIT_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Proxy.RateLimit.Requests = n
		}
	}
	if v := os.Getenv("PORTFOLIO_PROXY_GENERIC_ALLOWED_HOSTS"); v != "" {
		cfg.Proxy.GenericAllowedHosts = splitAndTrim(v, ",")
	}

	// Per-provider API key overrides: PORTFOLIO_LLM_PROVIDER_<NAME>_API_KEY
	for i := range cfg.LLM.Providers {
		if v := os.Getenv(envName("PORTFOLIO_LLM_PROVIDER_", cfg.LLM.Providers[i].Name, "_API_KEY")); v != "" {
			cfg.LLM.Providers[i].APIKey = v
		}
	}
	// Per-upstream overrides: PORTFOLIO_PROXY_UPSTREAM_<NAME>_API_KEY / _REFERER
	for i := range cfg.Proxy.Upstreams {
		up := &cfg.Proxy.Upstreams[i]
		if v := os.Getenv(envName("PORTFOLIO_PROXY_UPSTREAM_", up.Name, "_API_KEY")); v != "" {
			up.APIKey = v
		}
		if v := os.Getenv(envName("PORTFOLIO_PROXY_UPSTREAM_", up.Name, "_REFERER")); v != "" {
			up.Referer = v
		}
	}
}

func envName(prefix, name, suffix string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + suffix
}

func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decryptSecrets replaces every "enc:"-prefixed secret in cfg with its plaintext.
func decryptSecrets(cfg *Config, passphrase string) error {
	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		if err := decryptField(&p.APIKey, passphrase); err != nil {
			return fmt.Errorf("provider %s api_key: %w", p.Name, err)
		}
	}
	for i := range cfg.Proxy.Upstreams {
		up := &cfg.Proxy.Upstreams[i]
		if err := decryptField(&up.APIKey, passphrase); err != nil {
			return fmt.Errorf("upstream %s api_key: %w", up.Name, err)
		}
	}
	return nil
}

func decryptField(fp *string, passphrase string) error {
	if !strings.HasPrefix(*fp, "enc:") {
		return nil
	}
	decrypted, err := DecryptValue(strings.TrimPrefix(*fp, "enc:"), passphrase)
	if err != nil {
		return err
	}
	*fp = decrypted
	return nil
}

// EncryptValue encrypts plaintext with AES-256-GCM using an Argon2id-derived key.
// The result is hex(salt) + ":" + hex(nonce+ciphertext); prefix it with "enc:"
// in the config file.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue reverses EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	parts := strings.SplitN(encrypted, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}

	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// 0600 or 0644; never group/other writable.
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
