package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fleetgate/internal/token"
)

// TokenVerifier validates a raw bearer token and extracts its Principal.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (token.Principal, error)
}

// DecisionStore is the externalized decision cache. Implementations must be
// safe for unlimited concurrent invocations with no shared memory assumed.
type DecisionStore interface {
	Get(ctx context.Context, fingerprint string) (*Decision, bool, error)
	Put(ctx context.Context, decision *Decision) error
}

// CacheMetrics records decision cache effectiveness.
type CacheMetrics interface {
	IncDecisionCacheHit()
	IncDecisionCacheMiss()
}

// Authorizer converts tokens into reusable decisions. Allow decisions are
// cached with a fixed TTL; denials are never cached so a transient
// verification failure cannot outlive its cause.
type Authorizer struct {
	verifier TokenVerifier
	store    DecisionStore
	ttl      time.Duration
	logger   *slog.Logger
	metrics  CacheMetrics
	now      func() time.Time
}

type Option func(*Authorizer)

func WithMetrics(m CacheMetrics) Option {
	return func(a *Authorizer) { a.metrics = m }
}

// WithClock overrides the authorizer's clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authorizer) { a.now = now }
}

func NewAuthorizer(verifier TokenVerifier, store DecisionStore, ttl time.Duration, logger *slog.Logger, opts ...Option) (*Authorizer, error) {
	if verifier == nil {
		return nil, fmt.Errorf("token verifier is required")
	}
	if store == nil {
		return nil, fmt.Errorf("decision store is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("decision TTL must be positive")
	}

	a := &Authorizer{
		verifier: verifier,
		store:    store,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authorize resolves a raw token to a decision. Every path that is not a
// successful verification, including cache and verifier errors, resolves
// to deny with the generic reason. Authorize never returns an error: the
// deny decision is the error surface.
func (a *Authorizer) Authorize(ctx context.Context, rawToken string) *Decision {
	fingerprint := Fingerprint(rawToken)
	now := a.now()

	cached, ok, err := a.store.Get(ctx, fingerprint)
	if err != nil {
		// A broken cache degrades to full verification; it must never
		// degrade to allow.
		a.logger.WarnContext(ctx, "decision cache read failed", "error", err)
	}
	if ok && cached.Allowed() && !cached.Expired(now) {
		if a.metrics != nil {
			a.metrics.IncDecisionCacheHit()
		}
		return cached
	}

	if a.metrics != nil {
		a.metrics.IncDecisionCacheMiss()
	}

	principal, err := a.verifier.Verify(ctx, rawToken)
	if err != nil {
		a.logger.InfoContext(ctx, "token verification failed", "error", err)
		return a.deny(fingerprint, now)
	}

	decision := &Decision{
		TokenFingerprint: fingerprint,
		Effect:           EffectAllow,
		Principal:        principal,
		IssuedAt:         now,
		ExpiresAt:        now.Add(a.ttl),
	}

	if err := a.store.Put(ctx, decision); err != nil {
		// The decision stands on its own; caching is an optimization.
		a.logger.WarnContext(ctx, "decision cache write failed", "error", err)
	}

	return decision
}

func (a *Authorizer) deny(fingerprint string, now time.Time) *Decision {
	return &Decision{
		TokenFingerprint: fingerprint,
		Effect:           EffectDeny,
		Reason:           DenyReason,
		IssuedAt:         now,
		ExpiresAt:        now,
	}
}
