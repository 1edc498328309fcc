package plugin

import (
	"context"

	"github.com/xraph/tradefin/id"
)

type actorKey struct{}

// WithActor returns a context carrying the actor that triggered an event.
func WithActor(ctx context.Context, actor id.EntityID) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor attached by WithActor, or id.Nil.
func ActorFrom(ctx context.Context) id.EntityID {
	if v, ok := ctx.Value(actorKey{}).(id.EntityID); ok {
		return v
	}
	return id.Nil
}
