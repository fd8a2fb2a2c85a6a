package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const triggerIDKey contextKey = "trigger_id"

// WithTriggerID adds a trigger delivery ID to the context. The consumer sets
// it per message so stage logs can be correlated with the delivery that
// caused them.
func WithTriggerID(ctx context.Context, triggerID string) context.Context {
	return context.WithValue(ctx, triggerIDKey, triggerID)
}

// TriggerIDFromContext retrieves the trigger delivery ID from context.
// Returns empty string if not present.
func TriggerIDFromContext(ctx context.Context) string {
	if v := ctx.Value(triggerIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
