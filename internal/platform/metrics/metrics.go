package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	DecisionCacheHits   prometheus.Counter
	DecisionCacheMisses prometheus.Counter
	AccessDenials       prometheus.Counter
	RateLimitRejections prometheus.Counter
	RateLimitBypasses   prometheus.Counter

	// AuditWriteFailures is the operational alert required for
	// best-effort-durable audit writes: a failed write never fails the
	// caller, but it must never fail silently either.
	AuditWriteFailures prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		DecisionCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fleetgate_decision_cache_hits_total",
			Help: "Authorization decisions served from the cache without re-verification",
		}),
		DecisionCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fleetgate_decision_cache_misses_total",
			Help: "Authorization decisions that required full token verification",
		}),
		AccessDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fleetgate_access_denials_total",
			Help: "Requests rejected by the role guard",
		}),
		RateLimitRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fleetgate_ratelimit_rejections_total",
			Help: "Privileged requests rejected by the per-subject rate limiter",
		}),
		RateLimitBypasses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fleetgate_ratelimit_bypasses_total",
			Help: "Emergency admin bypasses of the rate limiter",
		}),
		AuditWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fleetgate_audit_write_failures_total",
			Help: "Audit ledger writes that failed after the action completed",
		}),
	}
}

func (m *Metrics) IncDecisionCacheHit()   { m.DecisionCacheHits.Inc() }
func (m *Metrics) IncDecisionCacheMiss()  { m.DecisionCacheMisses.Inc() }
func (m *Metrics) IncAccessDenial()       { m.AccessDenials.Inc() }
func (m *Metrics) IncRateLimitRejection() { m.RateLimitRejections.Inc() }
func (m *Metrics) IncRateLimitBypass()    { m.RateLimitBypasses.Inc() }
func (m *Metrics) IncAuditWriteFailure()  { m.AuditWriteFailures.Inc() }
