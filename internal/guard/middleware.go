package guard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fleetgate/internal/audit"
	"fleetgate/internal/policy"
	"fleetgate/internal/token"
	dErrors "fleetgate/pkg/domain-errors"
	"fleetgate/pkg/platform/httputil"
	"fleetgate/pkg/requestcontext"
)

// Authorizer resolves a bearer token to a decision. It never errors;
// denial is the error surface.
type Authorizer interface {
	Authorize(ctx context.Context, rawToken string) *policy.Decision
}

// DenialMetrics counts role guard rejections.
type DenialMetrics interface {
	IncAccessDenial()
}

// Guard wires authentication and role enforcement middleware. Denials are
// always written to the ledger: the compliance requirement is "log
// privilege attempts", not just privileged outcomes.
type Guard struct {
	authorizer Authorizer
	ledger     *audit.Ledger
	retention  time.Duration
	logger     *slog.Logger
	metrics    DenialMetrics
}

type Option func(*Guard)

func WithMetrics(m DenialMetrics) Option {
	return func(g *Guard) { g.metrics = m }
}

func New(authorizer Authorizer, ledger *audit.Ledger, retention time.Duration, logger *slog.Logger, opts ...Option) (*Guard, error) {
	if authorizer == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("audit ledger is required")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}

	g := &Guard{
		authorizer: authorizer,
		ledger:     ledger,
		retention:  retention,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// unauthorized is the single response body for every token failure.
// Expired and invalid tokens are deliberately indistinguishable.
func unauthorized(w http.ResponseWriter) {
	httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
}

// Authenticate extracts the bearer token, runs it through the decision
// point, and stores the principal in the request context. Anything short
// of an allow decision ends the request with a claim-free 401.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			g.logger.WarnContext(ctx, "missing bearer token",
				"request_id", requestcontext.RequestID(ctx))
			unauthorized(w)
			return
		}

		decision := g.authorizer.Authorize(ctx, raw)
		if !decision.Allowed() {
			g.logger.WarnContext(ctx, "authorization denied",
				"request_id", requestcontext.RequestID(ctx))
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, decision.Principal)))
	})
}

// RequireRole enforces a minimum role for one operation. The action and
// resource parameters describe what was attempted so a denial lands on the
// ledger with enough context to answer "who tried what, on what".
//
// The denial body is the same whether or not the resource exists; the
// guard runs before any resource lookup.
func (g *Guard) RequireRole(required token.Role, action, resourceType, resourceParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			principal, ok := PrincipalFrom(ctx)
			if !ok {
				// Route misconfiguration: RequireRole outside
				// Authenticate. Fail closed.
				g.logger.ErrorContext(ctx, "role check without principal", "action", action)
				unauthorized(w)
				return
			}

			if principal.Role.Satisfies(required) {
				next.ServeHTTP(w, r)
				return
			}

			if g.metrics != nil {
				g.metrics.IncAccessDenial()
			}
			g.logger.WarnContext(ctx, "insufficient role",
				"subject_id", principal.SubjectID,
				"role", principal.Role,
				"required_role", required,
				"action", action,
				"request_id", requestcontext.RequestID(ctx),
			)

			record := audit.NewRecord(principal.SubjectID, audit.ActionAccessDenied, audit.ResultDenied, g.retention)
			record.SubjectEmail = principal.Email
			record.ResourceType = resourceType
			if resourceParam != "" {
				record.ResourceID = chi.URLParam(r, resourceParam)
			}
			record.Details = "attempted " + action
			record.SourceAddress = requestcontext.ClientIP(ctx)
			g.ledger.Record(ctx, record)

			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient permissions"))
		})
	}
}
