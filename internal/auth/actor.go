package auth

import (
	"context"
	"strings"
)

// Actor is the operator behind a request.
type Actor struct {
	ID    string
	Email string
	Name  string
	Role  string
}

func ActorFromClaims(claims Claims) Actor {
	return Actor{ID: claims.Sub, Email: claims.Email, Name: claims.Name, Role: claims.Role}
}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok || strings.TrimSpace(actor.Email) == "" {
		return Actor{}, false
	}
	return actor, true
}

// ContextGate answers "who is signed in" from the request context. The
// content store uses it to decide whether an edit may be written through.
type ContextGate struct{}

func (ContextGate) CurrentActor(ctx context.Context) (string, bool) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return "", false
	}
	return actor.Email, true
}
