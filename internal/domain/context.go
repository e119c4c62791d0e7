package domain

import "context"

type ctxKey string

const cycleCtxKey ctxKey = "cycle_id"

// ContextWithCycleID returns a context tagged with the conversation cycle it
// serves. The ID is that of the user message that started the cycle.
func ContextWithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleCtxKey, id)
}

// CycleIDFromContext returns the cycle ID, or "" outside a cycle.
func CycleIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(cycleCtxKey).(string); ok {
		return v
	}
	return ""
}
