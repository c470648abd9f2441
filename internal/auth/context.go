package auth

import "context"

type contextKey string

const identityKey contextKey = "driver_identity"

// WithIdentity binds a resolved driver identity to the request context. The
// binding is per-call-scope: concurrent requests for different drivers carry
// independent contexts and never observe each other's identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the driver identity bound to the context.
// Store operations must not rely on this alone: the driver ID is passed
// explicitly and re-checked in every store-side predicate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}
