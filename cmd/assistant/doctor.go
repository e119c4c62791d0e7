package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"portfolio-assistant/internal/adapter/portfolio"
	"portfolio-assistant/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

const doctorTimeout = 10 * time.Second

// runDoctor executes all health checks and reports results to w.
func runDoctor(w io.Writer) error {
	cfgPath := configPath()
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "LLM API key", Fn: checkLLMAPIKey},
		{Name: "LLM connectivity", Fn: checkLLMConnectivity(http.DefaultClient)},
		{Name: "Portfolio data", Fn: checkPortfolio},
		{Name: "Proxy upstreams", Fn: checkProxyUpstreams},
	}
	return report(w, cfg, checks)
}

func report(w io.Writer, cfg *config.Config, checks []Check) error {
	fmt.Fprintln(w, "portfolio-assistant doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn == 0 {
		fmt.Fprintln(w, "\nAll checks passed.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile reports whether the config file exists and loaded. A
// missing file is only a warning: defaults and env overrides still apply.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check the YAML against config.example.yaml",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s; using defaults and PORTFOLIO_* env", cfgPath),
				Fix:     "cp config.example.yaml config.yaml",
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

func defaultProvider(cfg *config.Config) *config.ProviderConfig {
	for i := range cfg.LLM.Providers {
		if cfg.LLM.Providers[i].Name == cfg.LLM.DefaultProvider {
			return &cfg.LLM.Providers[i]
		}
	}
	return nil
}

// checkLLMAPIKey verifies the default provider can authenticate.
func checkLLMAPIKey(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	p := defaultProvider(cfg)
	if p == nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("default provider %q not found in config", cfg.LLM.DefaultProvider),
			Fix:     "Add it under llm.providers or change llm.default_provider",
		}
	}
	if p.Type == "proxy" {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("%s relays through a proxy; the key lives there", p.Name),
		}
	}
	if p.APIKey == "" {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("no API key for %s", p.Name),
			Fix:     fmt.Sprintf("Set PORTFOLIO_LLM_PROVIDER_%s_API_KEY", strings.ToUpper(strings.ReplaceAll(p.Name, "-", "_"))),
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("API key configured for %s", p.Name)}
}

// checkLLMConnectivity tests whether the default provider's base URL
// answers at all. Any HTTP response counts as reachable.
func checkLLMConnectivity(client *http.Client) func(*config.Config) CheckResult {
	return func(cfg *config.Config) CheckResult {
		if cfg == nil {
			return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
		}
		p := defaultProvider(cfg)
		if p == nil || p.BaseURL == "" {
			return CheckResult{Status: StatusWarn, Message: "skipped: no base_url for default provider"}
		}

		ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
		defer cancel()

		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL, nil)
		if err != nil {
			return CheckResult{Status: StatusFail, Message: fmt.Sprintf("bad base_url: %v", err)}
		}
		resp, err := client.Do(req)
		if err != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("cannot reach %s: %v", p.BaseURL, err),
				Fix:     "Check your internet connection and the provider base_url",
			}
		}
		resp.Body.Close()

		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("%s reachable (latency: %dms)", p.Name, time.Since(start).Milliseconds()),
		}
	}
}

// checkPortfolio loads the portfolio document the same way a chat would.
func checkPortfolio(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()

	loader := portfolio.NewLoader(cfg.Context, slog.New(slog.NewTextHandler(io.Discard, nil)))
	pc, err := loader.Load(ctx)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("no usable portfolio document: %v", err),
			Fix:     "Check context.locations and context.base_url",
		}
	}
	return CheckResult{
		Status: StatusPass,
		Message: fmt.Sprintf("%s: %d projects, %d positions, %d skill categories",
			pc.Profile.Name, len(pc.Projects), len(pc.Experience), len(pc.Skills)),
	}
}

// checkProxyUpstreams warns about relay upstreams that have no key. Only
// the serve command needs them.
func checkProxyUpstreams(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	if len(cfg.Proxy.Upstreams) == 0 {
		return CheckResult{Status: StatusWarn, Message: "no proxy upstreams configured"}
	}

	var withKey, withoutKey []string
	for _, up := range cfg.Proxy.Upstreams {
		if up.APIKey != "" {
			withKey = append(withKey, up.Name)
		} else {
			withoutKey = append(withoutKey, up.Name)
		}
	}
	if len(withoutKey) > 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("missing keys for [%s]; those routes answer 500", strings.Join(withoutKey, ", ")),
			Fix:     "Set PORTFOLIO_PROXY_UPSTREAM_<NAME>_API_KEY",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("keys configured for: %s", strings.Join(withKey, ", ")),
	}
}
