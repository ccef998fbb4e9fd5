package requestctx

import "context"

// SystemActor is recorded when no user identity is attached to a request.
const SystemActor = "system"

type userIDContextKey struct{}

// WithUserID stores the acting user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the acting user identifier stored in context.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userIDContextKey{}).(string)
	return value
}

// Actor returns the acting user or SystemActor.
func Actor(ctx context.Context) string {
	if id := UserIDFromContext(ctx); id != "" {
		return id
	}
	return SystemActor
}
