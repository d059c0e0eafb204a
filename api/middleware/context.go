package middleware

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	actorKey ctxKey = iota
	requestIDKey
)

// WithActorID stores the acting user resolved from X-Actor-Id.
func WithActorID(ctx context.Context, actorID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorIDFromContext reports the actor recorded by Actor, if any.
func ActorIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(actorKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
