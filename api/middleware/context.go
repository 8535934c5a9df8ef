package middleware

import (
	"context"

	"github.com/electronicjova/storefront-backend/pkg/auth"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// IdentityFromContext returns the caller resolved by Auth.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	if ctx == nil {
		return auth.Identity{}, false
	}
	identity, ok := ctx.Value(ctxIdentity).(auth.Identity)
	return identity, ok
}

func UserIDFromContext(ctx context.Context) string {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return ""
	}
	return identity.UserID.String()
}

func RoleFromContext(ctx context.Context) string {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return ""
	}
	return identity.Role.String()
}

// WithIdentity injects the caller into the context. Tests use it to skip token parsing.
func WithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}
