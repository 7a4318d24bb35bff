package models

import (
	"context"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/internal/domain/types"
)

// Identity is the verified (user_id, role) pair produced by token
// verification. The realtime core never sees credentials.
type Identity struct {
	UserID uuid.UUID
	Role   types.UserRole
}

type identityCtxKey struct{}

// WithIdentity stores a verified identity in the request context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext returns the verified identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}
