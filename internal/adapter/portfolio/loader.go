// Package portfolio loads the portfolio context document that grounds every
// answer. The document is fetched once at startup from an ordered list of
// candidate locations and can be reloaded when its file changes.
package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/infra/config"
	"portfolio-assistant/internal/infra/tracer"
)

const loadKey = "portfolio"

// errAllPathsFailed is the terminal failure detail when every candidate is exhausted.
const errAllPathsFailed = "failed to load portfolio data from all available paths"

// LoaderOption configures the Loader.
type LoaderOption func(*Loader)

// WithHTTPClient sets the client used for http(s) candidates.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) { l.client = c }
}

// Loader fetches and caches the portfolio context.
type Loader struct {
	cfg      config.ContextConfig
	sources  []source
	client   *http.Client
	logger   *slog.Logger
	validate *validator.Validate

	group    singleflight.Group
	snapshot atomic.Pointer[domain.PortfolioContext]
	loading  atomic.Bool

	mu      sync.Mutex
	lastErr error

	ready     chan struct{}
	readyOnce sync.Once

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLoader creates a Loader for the configured candidate locations.
func NewLoader(cfg config.ContextConfig, logger *slog.Logger, opts ...LoaderOption) *Loader {
	l := &Loader{
		cfg:      cfg,
		sources:  resolveSources(cfg.BaseURL, cfg.Locations),
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		validate: validator.New(),
		ready:    make(chan struct{}),
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load returns the cached context, fetching it first if nothing has been
// loaded yet. Concurrent callers share one in-flight fetch.
func (l *Loader) Load(ctx context.Context) (*domain.PortfolioContext, error) {
	if pc := l.snapshot.Load(); pc != nil {
		return pc, nil
	}
	return l.fetchShared(ctx)
}

// Reload walks the candidates again. On success the cached snapshot is
// replaced whole; on failure the previous snapshot is kept.
func (l *Loader) Reload(ctx context.Context) error {
	_, err := l.fetchShared(ctx)
	return err
}

// Cached returns the last successfully loaded context, or nil.
func (l *Loader) Cached() *domain.PortfolioContext {
	return l.snapshot.Load()
}

// IsLoading reports whether a candidate walk is in progress.
func (l *Loader) IsLoading() bool {
	return l.loading.Load()
}

// LastError returns the error of the most recent walk, or nil if it succeeded.
func (l *Loader) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Ready is closed once the first walk reaches a terminal state, whether it
// succeeded or failed.
func (l *Loader) Ready() <-chan struct{} {
	return l.ready
}

// Wait blocks until the first walk settles or ctx is done, then returns the
// cached context. The caller owns the timeout through ctx.
func (l *Loader) Wait(ctx context.Context) (*domain.PortfolioContext, error) {
	if pc := l.snapshot.Load(); pc != nil {
		return pc, nil
	}
	select {
	case <-l.ready:
	case <-ctx.Done():
		return nil, domain.NewSubSystemError("portfolio", "Loader.Wait",
			domain.ErrContextUnavailable, ctx.Err().Error())
	}
	if pc := l.snapshot.Load(); pc != nil {
		return pc, nil
	}
	if err := l.LastError(); err != nil {
		return nil, err
	}
	return nil, domain.NewSubSystemError("portfolio", "Loader.Wait", domain.ErrContextUnavailable, "")
}

func (l *Loader) fetchShared(ctx context.Context) (*domain.PortfolioContext, error) {
	v, err, _ := l.group.Do(loadKey, func() (interface{}, error) {
		return l.walk(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.PortfolioContext), nil
}

// walk tries each candidate up to MaxRetries times, sleeping
// BaseDelay * 2^attempt after every failed attempt. First success wins.
func (l *Loader) walk(ctx context.Context) (*domain.PortfolioContext, error) {
	ctx, span := tracer.StartSpan(ctx, "portfolio.load")
	defer span.End()

	l.loading.Store(true)
	defer l.loading.Store(false)
	defer l.readyOnce.Do(func() { close(l.ready) })

	maxRetries := max(l.cfg.MaxRetries, 1)
	var lastAttemptErr error

	for _, src := range l.sources {
		for attempt := 0; attempt < maxRetries; attempt++ {
			pc, err := l.fetch(ctx, src)
			if err == nil {
				l.snapshot.Store(pc)
				l.setErr(nil)
				span.SetAttributes(tracer.StringAttr("portfolio.source", src.target))
				tracer.SetOK(span)
				l.logger.Info("portfolio context loaded", "source", src.target, "attempt", attempt+1)
				return pc, nil
			}
			lastAttemptErr = err
			l.logger.Warn("portfolio context attempt failed",
				"source", src.target,
				"attempt", fmt.Sprintf("%d/%d", attempt+1, maxRetries),
				"error", err,
			)

			delay := l.cfg.BaseDelay * time.Duration(1<<attempt)
			if err := l.sleep(ctx, delay); err != nil {
				return nil, l.fail(span, domain.NewSubSystemError("portfolio", "Loader.Load",
					domain.ErrContextUnavailable, err.Error()))
			}
		}
	}

	detail := errAllPathsFailed
	if lastAttemptErr != nil {
		detail += " (last: " + lastAttemptErr.Error() + ")"
	}
	return nil, l.fail(span, domain.NewSubSystemError("portfolio", "Loader.Load",
		domain.ErrContextUnavailable, detail))
}

func (l *Loader) fail(span trace.Span, err error) error {
	tracer.RecordError(span, err)
	l.setErr(err)
	l.logger.Error("portfolio context unavailable", "error", err, "code", domain.ErrorCodeOf(err))
	return err
}

func (l *Loader) setErr(err error) {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
