package shared

import "context"

type actorKey struct{}

// WithActor stores the authenticated user id on the context. The auth
// middleware sets it; handlers read it without importing the auth package.
func WithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorID returns the authenticated user id, or 0 when unauthenticated.
func ActorID(ctx context.Context) int64 {
	id, _ := ctx.Value(actorKey{}).(int64)
	return id
}
