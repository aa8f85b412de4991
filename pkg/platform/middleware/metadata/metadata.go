// Package metadata stamps every request with a correlation ID, the
// caller's source address, and a request-scoped clock before anything else
// in the chain runs.
package metadata

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleetgate/pkg/requestcontext"
)

// Collect returns middleware that populates request-scoped context values.
func Collect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = requestcontext.WithRequestID(ctx, uuid.NewString())
		ctx = requestcontext.WithClientIP(ctx, clientIP(r))
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
