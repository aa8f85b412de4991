package testutil

import (
	"net/http"

	"fleetgate/internal/guard"
	"fleetgate/internal/token"
	"fleetgate/pkg/requestcontext"
)

// WithPrincipal adds a verified principal to the request context,
// simulating what the authentication middleware does for admitted requests.
func WithPrincipal(req *http.Request, principal token.Principal) *http.Request {
	return req.WithContext(guard.WithPrincipal(req.Context(), principal))
}

// WithClientIP adds a source address to the request context, simulating
// the metadata middleware.
func WithClientIP(req *http.Request, ip string) *http.Request {
	return req.WithContext(requestcontext.WithClientIP(req.Context(), ip))
}
