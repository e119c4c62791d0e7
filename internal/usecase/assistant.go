// Package usecase contains the conversation orchestration.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/infra/config"
	"portfolio-assistant/internal/infra/tracer"
	"portfolio-assistant/internal/usecase/conversation"
	"portfolio-assistant/internal/usecase/prompt"
	"portfolio-assistant/internal/usecase/relevance"
)

// Outcome tags how one SendMessage call ended.
type Outcome string

const (
	OutcomeThrottled      Outcome = "throttled"
	OutcomeEmpty          Outcome = "empty"
	OutcomeAnswered       Outcome = "answered"
	OutcomeBlocked        Outcome = "blocked"
	OutcomeContextMissing Outcome = "context_missing"
	OutcomeFailed         Outcome = "failed"
)

// Replies for failures that happen before or around the provider call.
const (
	ReplyContextMissing = "❌ Unable to load portfolio data. This may be a temporary issue. Please try:\n" +
		"1. Refresh the page (Ctrl+F5)\n" +
		"2. Check your browser console for errors\n" +
		"3. Ensure you have a stable internet connection"
	ReplyUnexpected = "❌ An unexpected error occurred. Please refresh the page and try again."

	contextMissingError = "Portfolio context failed to load after timeout"
)

// Defaults applied to zero-valued AssistantConfig fields.
const (
	defaultContextWait    = 10 * time.Second
	defaultRequestTimeout = 35 * time.Second
)

// ContextSource supplies the portfolio context. *portfolio.Loader
// satisfies it.
type ContextSource interface {
	Cached() *domain.PortfolioContext
	Wait(ctx context.Context) (*domain.PortfolioContext, error)
}

// AssistantDeps holds injected dependencies for the assistant.
type AssistantDeps struct {
	Provider   domain.LLMProvider
	Context    ContextSource
	Store      *conversation.Store
	Gate       *relevance.Gate  // optional, nil = relevance.New()
	Prompts    *prompt.Builder  // optional, nil = builder with Config.MaxHistory
	Classifier *ErrorClassifier // optional, nil = NewErrorClassifier()
	Logger     *slog.Logger     // optional, nil = slog.Default()
	Config     config.AssistantConfig
	Now        func() time.Time // optional, for tests
}

// Assistant runs one conversation cycle per accepted message: relevance
// gate, prompt assembly and a single provider call, with every result
// (including failures) landing in the conversation store.
type Assistant struct {
	deps    AssistantDeps
	limiter *rate.Limiter
}

// NewAssistant creates an assistant with the given dependencies.
func NewAssistant(deps AssistantDeps) *Assistant {
	if deps.Gate == nil {
		deps.Gate = relevance.New()
	}
	if deps.Prompts == nil {
		maxHistory := deps.Config.MaxHistory
		if maxHistory <= 0 {
			maxHistory = prompt.DefaultMaxHistory
		}
		deps.Prompts = prompt.NewBuilder(maxHistory)
	}
	if deps.Classifier == nil {
		deps.Classifier = NewErrorClassifier()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Config.ContextWait <= 0 {
		deps.Config.ContextWait = defaultContextWait
	}
	if deps.Config.RequestTimeout <= 0 {
		deps.Config.RequestTimeout = defaultRequestTimeout
	}

	// One token per throttle interval: a send is accepted only when the
	// previous accepted send is at least that far in the past.
	limit := rate.Inf
	if deps.Config.Throttle > 0 {
		limit = rate.Every(deps.Config.Throttle)
	}

	return &Assistant{
		deps:    deps,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Store returns the conversation store the assistant writes to.
func (a *Assistant) Store() *conversation.Store { return a.deps.Store }

// Clear resets the conversation to a fresh greeting.
func (a *Assistant) Clear() { a.deps.Store.Clear() }

// SendMessage runs one cycle for text. Sends arriving within the throttle
// interval of the previous accepted send are dropped, as is blank input.
// Every failure is converted into an assistant message; nothing is
// returned as an error and panics do not escape.
func (a *Assistant) SendMessage(ctx context.Context, text string) Outcome {
	_, outcome := a.send(ctx, text)
	return outcome
}

// send runs SendMessage and also returns the message this cycle resolved
// its placeholder with. Other cycles may append to the log concurrently, so
// the log tail is not necessarily this cycle's reply.
func (a *Assistant) send(ctx context.Context, text string) (reply domain.Message, outcome Outcome) {
	if !a.limiter.AllowN(a.deps.Now(), 1) {
		a.deps.Logger.Debug("send throttled")
		return domain.Message{}, OutcomeThrottled
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, OutcomeEmpty
	}

	ctx, span := tracer.StartSpan(ctx, "assistant.send_message",
		trace.WithAttributes(tracer.IntAttr("message.chars", len(text))),
	)
	defer span.End()

	store := a.deps.Store
	history := store.Current()

	userMsg := domain.NewMessage(domain.RoleUser, text)
	ctx = domain.ContextWithCycleID(ctx, userMsg.ID)
	store.Append(userMsg)
	store.SetLoading(true)
	defer store.SetLoading(false)
	store.ShowPlaceholder()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			tracer.RecordError(span, err)
			a.deps.Logger.Error("send message panicked", "cycle", userMsg.ID, "panic", r)
			reply = domain.NewMessage(domain.RoleAssistant, ReplyUnexpected)
			reply.Error = err.Error()
			store.Resolve(reply)
			outcome = OutcomeFailed
		}
	}()

	reply, outcome = a.cycle(ctx, history, text)
	span.SetAttributes(tracer.StringAttr("assistant.outcome", string(outcome)))
	if outcome == OutcomeAnswered || outcome == OutcomeBlocked {
		tracer.SetOK(span)
	}
	return reply, outcome
}

func (a *Assistant) cycle(ctx context.Context, history []domain.Message, text string) (domain.Message, Outcome) {
	store := a.deps.Store
	logger := a.deps.Logger

	pc := a.portfolio(ctx)
	if pc == nil {
		reply := domain.NewMessage(domain.RoleAssistant, ReplyContextMissing)
		reply.Error = contextMissingError
		store.Resolve(reply)
		return reply, OutcomeContextMissing
	}

	verdict := a.deps.Gate.Check(text, pc)
	logger.Debug("relevance checked",
		"cycle", domain.CycleIDFromContext(ctx),
		"relevant", verdict.IsRelevant,
		"confidence", verdict.Confidence,
		"reason", verdict.Reason,
	)
	if !verdict.IsRelevant {
		reply := domain.NewMessage(domain.RoleAssistant, relevance.BlockedMessage)
		reply.IsDomainBlocked = true
		store.Resolve(reply)
		return reply, OutcomeBlocked
	}

	msgs := a.deps.Prompts.Build(pc, history, text)

	callCtx, cancel := context.WithTimeout(ctx, a.deps.Config.RequestTimeout)
	defer cancel()

	answer, err := a.deps.Provider.Chat(callCtx, msgs)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = fmt.Errorf("%w: no reply within %s: %w", domain.ErrTimeout, a.deps.Config.RequestTimeout, err)
		}
		classified := a.deps.Classifier.Classify(err)
		logger.Warn("provider call failed",
			"cycle", domain.CycleIDFromContext(ctx),
			"provider", a.deps.Provider.Name(),
			"kind", classified.Kind.String(),
			"status", classified.StatusCode,
			"timeout", classified.Timeout,
			"code", domain.ErrorCodeOf(err),
			"error", err,
		)
		reply := domain.NewMessage(domain.RoleAssistant, classified.Kind.Reply())
		reply.Error = err.Error()
		store.Resolve(reply)
		return reply, OutcomeFailed
	}

	reply := domain.NewMessage(domain.RoleAssistant, answer)
	store.Resolve(reply)
	return reply, OutcomeAnswered
}

// portfolio returns the cached context or waits up to ContextWait for the
// initial load to finish.
func (a *Assistant) portfolio(ctx context.Context) *domain.PortfolioContext {
	if pc := a.deps.Context.Cached(); pc != nil {
		return pc
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.deps.Config.ContextWait)
	defer cancel()

	pc, err := a.deps.Context.Wait(waitCtx)
	if err != nil {
		a.deps.Logger.Warn("portfolio context unavailable", "error", err, "code", domain.ErrorCodeOf(err))
		return nil
	}
	return pc
}

// Ask runs one cycle and returns the message that ended it. Throttled and
// blank sends return false.
func (a *Assistant) Ask(ctx context.Context, text string) (domain.Message, Outcome, bool) {
	reply, outcome := a.send(ctx, text)
	if outcome == OutcomeThrottled || outcome == OutcomeEmpty {
		return domain.Message{}, outcome, false
	}
	return reply, outcome, true
}
