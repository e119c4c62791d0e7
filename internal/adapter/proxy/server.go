// Package proxy is the key-holding relay that lets a browser talk to hosted
// inference APIs without ever seeing an API key.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"portfolio-assistant/internal/adapter/llm"
	"portfolio-assistant/internal/infra/config"
	"portfolio-assistant/internal/infra/middleware"
)

const (
	defaultUpstreamTimeout = 30 * time.Second
	defaultMaxBodyBytes    = 1 << 20
	maxGenericRedirects    = 10
)

// Server relays chat requests to configured upstreams.
type Server struct {
	cfg       config.ProxyConfig
	logger    *slog.Logger
	client    *http.Client
	generic   *http.Client
	upstreams map[string]config.UpstreamConfig
	allowed   map[string]struct{}
	validate  *validator.Validate
	started   time.Time
	now       func() time.Time

	httpSrv   *http.Server
	boundAddr string
}

// Option configures a Server.
type Option func(*Server)

// WithClient overrides the outbound HTTP client.
func WithClient(c *http.Client) Option {
	return func(s *Server) { s.client = c }
}

// WithClock overrides the clock used by /health and the rate limiter.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a proxy server for cfg.
func NewServer(cfg config.ProxyConfig, logger *slog.Logger, opts ...Option) *Server {
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = defaultUpstreamTimeout
	}
	if cfg.RateLimit.Requests <= 0 || cfg.RateLimit.Window <= 0 {
		cfg.RateLimit = config.RateLimitConfig{Requests: 100, Window: 15 * time.Minute}
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		upstreams: make(map[string]config.UpstreamConfig, len(cfg.Upstreams)),
		allowed:   make(map[string]struct{}, len(cfg.GenericAllowedHosts)),
		validate:  newValidator(),
		now:       time.Now,
	}
	for _, up := range cfg.Upstreams {
		s.upstreams[strings.ToLower(up.Name)] = up
	}
	for _, h := range cfg.GenericAllowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			s.allowed[h] = struct{}{}
		}
	}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		s.client = &http.Client{
			Transport: llm.NewPooledTransport(0, cfg.UpstreamTimeout, config.PoolConfig{}),
		}
	}
	s.generic = s.allowlistClient(s.client)
	s.started = s.now()
	return s
}

// allowlistClient copies base so that every redirect hop is checked against
// the generic allowlist before it is followed.
func (s *Server) allowlistClient(base *http.Client) *http.Client {
	c := *base
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxGenericRedirects {
			return fmt.Errorf("stopped after %d redirects", maxGenericRedirects)
		}
		_, err := s.checkTarget(req.URL.String())
		return err
	}
	return &c
}

// Handler builds the routed handler. The rate limiter's janitor goroutine
// stops when ctx is cancelled.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(middleware.RateLimit(ctx, middleware.RateLimitConfig{
		Requests:       s.cfg.RateLimit.Requests,
		Window:         s.cfg.RateLimit.Window,
		TrustedProxies: s.cfg.TrustedProxies,
		Now:            s.now,
	}))

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleNotFound)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/proxy", s.handleGeneric)
		r.Post("/{provider}", s.handleRelay)
	})
	return r
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("proxy listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()

	s.httpSrv = &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("proxy started",
		"addr", s.boundAddr,
		"upstreams", len(s.upstreams),
		"generic_proxy", len(s.allowed) > 0,
	)

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("proxy serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// BoundAddr returns the address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }
