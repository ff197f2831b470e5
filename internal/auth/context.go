// Package auth carries the authenticated principal through a context.
// Credential verification and session storage live outside this system;
// everything here assumes some collaborator already established identity.
package auth

import "context"

type contextKey struct{}

// Principal identifies the signed-in household member. UserID is stamped
// onto every insert as the item's owner.
type Principal struct {
	UserID string
	Email  string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

func UserID(ctx context.Context) string {
	p, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return p.UserID
}
