// Package middleware applies the per-subject rate limit to privileged
// routes. Rate limiting is a resource-protection concern, not an
// access-control decision: rejections are reported with 429 and a retry
// hint, and are not written to the access audit trail.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"fleetgate/internal/audit"
	"fleetgate/internal/guard"
	"fleetgate/internal/ratelimit"
	"fleetgate/internal/token"
	dErrors "fleetgate/pkg/domain-errors"
	"fleetgate/pkg/platform/httputil"
	"fleetgate/pkg/requestcontext"
)

// BypassHeader requests an emergency bypass of the rate limit. Honored
// only for admins, and every use lands on the audit ledger.
const BypassHeader = "X-Emergency-Bypass"

// Limiter checks one privileged action against the subject's window.
type Limiter interface {
	Allow(ctx context.Context, subjectID string) (ratelimit.Result, error)
}

// Metrics counts limiter rejections and emergency bypasses.
type Metrics interface {
	IncRateLimitRejection()
	IncRateLimitBypass()
}

// Middleware guards privileged routes with the rate limiter.
type Middleware struct {
	limiter   Limiter
	ledger    *audit.Ledger
	retention time.Duration
	logger    *slog.Logger
	metrics   Metrics
}

type Option func(*Middleware)

func WithMetrics(m Metrics) Option {
	return func(mw *Middleware) { mw.metrics = m }
}

func New(limiter Limiter, ledger *audit.Ledger, retention time.Duration, logger *slog.Logger, opts ...Option) (*Middleware, error) {
	if limiter == nil {
		return nil, fmt.Errorf("limiter is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("audit ledger is required")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}

	mw := &Middleware{
		limiter:   limiter,
		ledger:    ledger,
		retention: retention,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(mw)
	}
	return mw, nil
}

// Limit wraps a privileged handler. It must run after Authenticate; a
// request with no principal fails closed.
func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		principal, ok := guard.PrincipalFrom(ctx)
		if !ok {
			m.logger.ErrorContext(ctx, "rate limit check without principal")
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
			return
		}

		if r.Header.Get(BypassHeader) == "true" && principal.Role == token.RoleAdmin {
			m.recordBypass(ctx, principal)
			next.ServeHTTP(w, r)
			return
		}

		result, err := m.limiter.Allow(ctx, principal.SubjectID)
		if err != nil {
			// Fail closed: an unreachable counter store means we cannot
			// prove the subject is under quota.
			m.logger.ErrorContext(ctx, "rate limit check failed",
				"subject_id", principal.SubjectID,
				"error", err,
			)
			httputil.WriteError(w, dErrors.Wrap(dErrors.CodeInternal, "rate limit check failed", err))
			return
		}

		addHeaders(w, result)

		if !result.Allowed {
			if m.metrics != nil {
				m.metrics.IncRateLimitRejection()
			}
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"subject_id", principal.SubjectID,
				"retry_after", result.RetryAfter,
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, dErrors.RateLimited(result.RetryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) recordBypass(ctx context.Context, principal token.Principal) {
	if m.metrics != nil {
		m.metrics.IncRateLimitBypass()
	}
	m.logger.WarnContext(ctx, "rate limit bypassed",
		"subject_id", principal.SubjectID,
		"request_id", requestcontext.RequestID(ctx),
	)

	record := audit.NewRecord(principal.SubjectID, audit.ActionRateLimitBypass, audit.ResultSuccess, m.retention)
	record.SubjectEmail = principal.Email
	record.SourceAddress = requestcontext.ClientIP(ctx)
	m.ledger.Record(ctx, record)
}

func addHeaders(w http.ResponseWriter, result ratelimit.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
