package auth

import (
	"context"

	"hivegrid/internal/registry"
)

// Identity is the trusted ambient caller identity supplied by the execution
// context. It is the equivalent of a signed-transaction sender.
type Identity struct {
	Address registry.Address
	Role    Role
}

type contextKey string

const contextKeyIdentity contextKey = "auth.identity"

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(contextKeyIdentity).(Identity)
	if !ok || identity.Address.IsZero() {
		return Identity{}, false
	}
	return identity, true
}

// RequireRole resolves the caller identity and checks it holds the exact
// role. Every mutating operation authorizes through this single check before
// touching any state.
func RequireRole(ctx context.Context, role Role) (Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return Identity{}, ErrUnauthorized
	}
	if identity.Role != role {
		return Identity{}, ErrUnauthorized
	}
	return identity, nil
}

// RequireAnyRole resolves the caller identity and checks it holds one of the
// given roles.
func RequireAnyRole(ctx context.Context, roles ...Role) (Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return Identity{}, ErrUnauthorized
	}
	for _, role := range roles {
		if identity.Role == role {
			return identity, nil
		}
	}
	return Identity{}, ErrUnauthorized
}
