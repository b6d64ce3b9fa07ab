package shared

import "context"

// SystemActor is recorded when no caller identity is attached to the context.
const SystemActor = "system"

type actorContextKey struct{}

// ContextWithActor stores the acting username in context.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting username, defaulting to SystemActor.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorContextKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}
