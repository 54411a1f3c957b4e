package middleware

import (
	"context"

	"github.com/stagecrew/rentline-backend/pkg/authz"
)

type contextKey string

const ctxActor contextKey = "actor"

// WithActor injects the calling actor into the context.
func WithActor(ctx context.Context, actor authz.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// ActorFromContext returns the calling actor, or a zero Actor when none
// was injected.
func ActorFromContext(ctx context.Context) authz.Actor {
	if ctx == nil {
		return authz.Actor{}
	}
	if v, ok := ctx.Value(ctxActor).(authz.Actor); ok {
		return v
	}
	return authz.Actor{}
}
