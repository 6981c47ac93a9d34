package shared

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the verified staff identity supplied by the session layer.
// Every staff operation is scoped to exactly one tenant.
type Principal struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
