package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-assistant/internal/infra/config"
)

func TestCheckConfigFile(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(existing, []byte("logger:\n  level: info\n"), 0600))

	tests := []struct {
		name   string
		path   string
		err    error
		status CheckStatus
	}{
		{"missing file uses defaults", filepath.Join(dir, "nope.yaml"), nil, StatusWarn},
		{"load error", existing, errors.New("parse config: bad yaml"), StatusFail},
		{"valid", existing, nil, StatusPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checkConfigFile(tt.path, tt.err)(nil)
			assert.Equal(t, tt.status, result.Status, result.Message)
			if tt.status != StatusPass {
				assert.NotEmpty(t, result.Fix)
			}
		})
	}
}

func TestCheckLLMAPIKey(t *testing.T) {
	withProvider := func(p config.ProviderConfig) *config.Config {
		cfg := config.Defaults()
		cfg.LLM.DefaultProvider = p.Name
		cfg.LLM.Providers = []config.ProviderConfig{p}
		return cfg
	}

	tests := []struct {
		name   string
		cfg    *config.Config
		status CheckStatus
	}{
		{"nil config", nil, StatusFail},
		{"default not configured", &config.Config{LLM: config.LLMConfig{DefaultProvider: "mistral"}}, StatusFail},
		{"missing key", withProvider(config.ProviderConfig{Name: "mistral", Type: "chat"}), StatusFail},
		{"key present", withProvider(config.ProviderConfig{Name: "mistral", Type: "chat", APIKey: "k"}), StatusPass},
		{"proxy needs no key", withProvider(config.ProviderConfig{Name: "relay", Type: "proxy"}), StatusPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, checkLLMAPIKey(tt.cfg).Status)
		})
	}
}

func TestCheckLLMAPIKey_FixNamesEnvVar(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLM.DefaultProvider = "open-router"
	cfg.LLM.Providers = []config.ProviderConfig{{Name: "open-router", Type: "chat"}}

	result := checkLLMAPIKey(cfg)
	assert.Contains(t, result.Fix, "PORTFOLIO_LLM_PROVIDER_OPEN_ROUTER_API_KEY")
}

func TestCheckLLMConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.LLM.Providers[0].BaseURL = srv.URL

	result := checkLLMConnectivity(srv.Client())(cfg)
	assert.Equal(t, StatusPass, result.Status, result.Message)
	assert.Contains(t, result.Message, "mistral reachable")
}

func TestCheckLLMConnectivity_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := config.Defaults()
	cfg.LLM.Providers[0].BaseURL = url

	result := checkLLMConnectivity(http.DefaultClient)(cfg)
	assert.Equal(t, StatusFail, result.Status)
	assert.NotEmpty(t, result.Fix)
}

func TestCheckLLMConnectivity_NoBaseURL(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLM.Providers[0].BaseURL = ""

	assert.Equal(t, StatusWarn, checkLLMConnectivity(http.DefaultClient)(cfg).Status)
}

func TestCheckPortfolio(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portfolio-data.json")
	doc := `{"profile":{"name":"Ada Lovelace"},"skills":{"backend":["Go"]},"projects":[{"title":"Engine"}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))

	cfg := config.Defaults()
	cfg.Context.Locations = []string{path}

	result := checkPortfolio(cfg)
	assert.Equal(t, StatusPass, result.Status, result.Message)
	assert.Contains(t, result.Message, "Ada Lovelace: 1 projects")
}

func TestCheckPortfolio_Missing(t *testing.T) {
	cfg := config.Defaults()
	cfg.Context.Locations = []string{filepath.Join(t.TempDir(), "missing.json")}
	cfg.Context.MaxRetries = 1
	cfg.Context.BaseDelay = 0

	result := checkPortfolio(cfg)
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Fix, "context.locations")
}

func TestCheckProxyUpstreams(t *testing.T) {
	cfg := config.Defaults()
	assert.Equal(t, StatusWarn, checkProxyUpstreams(cfg).Status)

	for i := range cfg.Proxy.Upstreams {
		cfg.Proxy.Upstreams[i].APIKey = "k"
	}
	assert.Equal(t, StatusPass, checkProxyUpstreams(cfg).Status)

	cfg.Proxy.Upstreams = nil
	assert.Equal(t, StatusWarn, checkProxyUpstreams(cfg).Status)
}

func TestReport(t *testing.T) {
	pass := Check{Name: "a", Fn: func(*config.Config) CheckResult { return CheckResult{Status: StatusPass, Message: "ok"} }}
	fail := Check{Name: "b", Fn: func(*config.Config) CheckResult {
		return CheckResult{Status: StatusFail, Message: "broken", Fix: "repair it"}
	}}

	var out bytes.Buffer
	require.NoError(t, report(&out, nil, []Check{pass}))
	assert.Contains(t, out.String(), "[PASS] a: ok")
	assert.Contains(t, out.String(), "All checks passed.")

	out.Reset()
	err := report(&out, nil, []Check{pass, fail})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 check(s) failed")
	assert.Contains(t, out.String(), "[FAIL] b: broken")
	assert.Contains(t, out.String(), "Fix: repair it")
	assert.Contains(t, out.String(), "Results: 1 passed, 0 warnings, 1 failed")
}
