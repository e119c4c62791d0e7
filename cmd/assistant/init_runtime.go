package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"portfolio-assistant/internal/adapter/portfolio"
	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/infra/config"
	"portfolio-assistant/internal/infra/logger"
	"portfolio-assistant/internal/infra/tracer"
	"portfolio-assistant/internal/usecase"
	"portfolio-assistant/internal/usecase/conversation"
)

// runtime holds everything a command needs, plus the closers to run on
// exit in reverse order.
type runtime struct {
	cfg *config.Config
	log *slog.Logger

	loader    *portfolio.Loader
	provider  domain.LLMProvider
	store     *conversation.Store
	assistant *usecase.Assistant

	closers []func()
}

// Close runs the registered closers, last registered first.
func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// ownerName returns the portfolio owner's name once the document is loaded.
func (r *runtime) ownerName() string {
	if r.loader == nil {
		return ""
	}
	if pc := r.loader.Cached(); pc != nil {
		return pc.Profile.Name
	}
	return ""
}

// bootstrapInfra loads config and starts logging and tracing. terminal
// routes console log output away from a full-screen UI.
func bootstrapInfra(ctx context.Context, cfgPath string, terminal bool) (*runtime, error) {
	// 1. Config
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}

	// 2. Logger
	logCfg := cfg.Logger
	if terminal {
		logCfg = logger.ForTerminal(logCfg)
	}
	log, closeLog, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	r := &runtime{cfg: cfg, log: log}
	r.closers = append(r.closers, func() { _ = closeLog() })

	// 3. Tracer
	shutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	r.closers = append(r.closers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	})

	log.Debug("config loaded", "path", cfgPath)
	return r, nil
}
