// Package httptransport assembles the middleware chain and routes. The
// chain order is the request state machine: metadata → authenticate →
// role check → rate limit → handler, with the ledger recording outcomes.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetgate/internal/audit"
	audithandler "fleetgate/internal/audit/handler"
	"fleetgate/internal/guard"
	instancehandler "fleetgate/internal/instance/handler"
	ratelimitmw "fleetgate/internal/ratelimit/middleware"
	"fleetgate/internal/token"
	"fleetgate/pkg/platform/httputil"
	"fleetgate/pkg/platform/middleware/metadata"
)

// Deps are the wired components the router composes.
type Deps struct {
	Guard     *guard.Guard
	RateLimit *ratelimitmw.Middleware
	Instances *instancehandler.Handler
	Audit     *audithandler.Handler
}

// NewRouter builds the full HTTP surface.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(metadata.Collect)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(deps.Guard.Authenticate)

		// Listing is a read: any authenticated role, no rate limit.
		r.With(deps.Guard.RequireRole(token.RoleReadonly, audit.ActionListInstances, "instance", "")).
			Get("/instances", deps.Instances.HandleList)

		// Reboot is destructive: admin only, rate limited, audited.
		r.With(
			deps.Guard.RequireRole(token.RoleAdmin, audit.ActionReboot, "instance", "instanceID"),
			deps.RateLimit.Limit,
		).Post("/instances/{instanceID}/reboot", deps.Instances.HandleReboot)

		// The audit trail itself is admin-only.
		r.With(deps.Guard.RequireRole(token.RoleAdmin, audit.ActionQueryAudit, "audit", "")).
			Get("/audit", deps.Audit.HandleQuery)
	})

	return r
}
