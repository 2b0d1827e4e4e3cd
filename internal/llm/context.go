package llm

import "context"

type contextKey struct{}

// callTags label the requests made under a context for the request log.
type callTags struct {
	purpose string
	session string
}

func tagsFrom(ctx context.Context) callTags {
	t, _ := ctx.Value(contextKey{}).(callTags)
	return t
}

// WithPurpose labels calls made with ctx, e.g. "turn-analysis".
func WithPurpose(ctx context.Context, purpose string) context.Context {
	t := tagsFrom(ctx)
	t.purpose = purpose
	return context.WithValue(ctx, contextKey{}, t)
}

// WithSession ties calls made with ctx to a tutoring session.
func WithSession(ctx context.Context, sessionID string) context.Context {
	t := tagsFrom(ctx)
	t.session = sessionID
	return context.WithValue(ctx, contextKey{}, t)
}

// PurposeFrom returns the purpose label, "unknown" when unset.
func PurposeFrom(ctx context.Context) string {
	if p := tagsFrom(ctx).purpose; p != "" {
		return p
	}
	return "unknown"
}

// SessionFrom returns the session id, or "" outside a session.
func SessionFrom(ctx context.Context) string {
	return tagsFrom(ctx).session
}
