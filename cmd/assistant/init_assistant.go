package main

import (
	"context"

	"portfolio-assistant/internal/adapter/llm"
	"portfolio-assistant/internal/adapter/portfolio"
	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/usecase"
	"portfolio-assistant/internal/usecase/conversation"
)

// bootstrap builds the full assistant: infra, portfolio loader, default
// provider, conversation store and orchestrator. The portfolio document
// loads in the background; the first send waits for it.
func bootstrap(ctx context.Context, cfgPath string, terminal bool) (*runtime, error) {
	r, err := bootstrapInfra(ctx, cfgPath, terminal)
	if err != nil {
		return nil, err
	}
	if err := initAssistant(ctx, r); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func initAssistant(ctx context.Context, r *runtime) error {
	// 1. Portfolio context
	r.loader = portfolio.NewLoader(r.cfg.Context, r.log)
	go func() {
		if _, err := r.loader.Load(ctx); err != nil {
			r.log.Warn("portfolio context load failed", "error", err)
		}
	}()
	if r.cfg.Context.Watch {
		if err := r.loader.Watch(ctx); err != nil {
			r.log.Warn("portfolio watch disabled", "error", err)
		}
	}

	// 2. LLM provider
	registry, err := llm.NewRegistryFromConfig(r.cfg.LLM, r.log)
	if err != nil {
		return domain.WrapOp("llm registry", err)
	}
	r.provider, err = registry.Get(r.cfg.LLM.DefaultProvider)
	if err != nil {
		return domain.WrapOp("default llm provider", err)
	}
	if r.cfg.LLM.CircuitBreaker.Enabled {
		r.log.Info("llm circuit breaker enabled",
			"max_failures", r.cfg.LLM.CircuitBreaker.MaxFailures,
			"timeout", r.cfg.LLM.CircuitBreaker.Timeout,
		)
	}

	// 3. Conversation and orchestrator
	r.store = conversation.NewStore(r.cfg.Assistant.Retention, func() string {
		return conversation.Greeting(r.ownerName())
	}, r.log)

	r.assistant = usecase.NewAssistant(usecase.AssistantDeps{
		Provider: r.provider,
		Context:  r.loader,
		Store:    r.store,
		Logger:   r.log,
		Config:   r.cfg.Assistant,
	})

	r.log.Info("assistant ready",
		"provider", r.provider.Name(),
		"candidates", len(r.cfg.Context.Locations),
	)
	return nil
}
