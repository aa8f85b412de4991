// Package guard holds the middleware that admits or rejects requests:
// authentication through the policy decision point, and role enforcement
// with audited denials.
package guard

import (
	"context"

	"fleetgate/internal/token"
)

type principalKey struct{}

// ContextKeyPrincipal is exported for tests that build contexts directly.
var ContextKeyPrincipal = principalKey{}

// WithPrincipal injects the verified principal into the context.
func WithPrincipal(ctx context.Context, p token.Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// PrincipalFrom retrieves the verified principal set by Authenticate.
func PrincipalFrom(ctx context.Context) (token.Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(token.Principal)
	return p, ok
}
