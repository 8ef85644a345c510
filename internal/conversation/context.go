// ABOUTME: Context helpers carrying the conversation that owns the current turn.

package conversation

import "context"

type contextKey struct{}

// WithConversationID returns a context carrying the owning conversation id.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// ConversationIDFromContext returns the conversation id set by
// WithConversationID.
func ConversationIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}
