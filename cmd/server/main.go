package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetgate/internal/audit"
	audithandler "fleetgate/internal/audit/handler"
	auditmemory "fleetgate/internal/audit/store/memory"
	auditpg "fleetgate/internal/audit/store/postgres"
	"fleetgate/internal/guard"
	instancehandler "fleetgate/internal/instance/handler"
	"fleetgate/internal/instance/provider"
	"fleetgate/internal/platform/config"
	"fleetgate/internal/platform/httpserver"
	"fleetgate/internal/platform/logger"
	"fleetgate/internal/platform/metrics"
	platformredis "fleetgate/internal/platform/redis"
	"fleetgate/internal/policy"
	policystore "fleetgate/internal/policy/store"
	"fleetgate/internal/ratelimit"
	ratelimitmw "fleetgate/internal/ratelimit/middleware"
	ratelimitstore "fleetgate/internal/ratelimit/store"
	"fleetgate/internal/token"
	httptransport "fleetgate/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	if cfg.IssuerURL == "" || cfg.Audience == "" {
		log.Error("IDP_ISSUER_URL and IDP_AUDIENCE are required")
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Audit store: Postgres in production, memory for local runs without a
	// database. The memory store loses history on restart; never deploy it.
	var auditStore audit.Store
	if cfg.DatabaseURL != "" {
		pgStore, err := auditpg.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()
		auditStore = pgStore
	} else {
		log.Warn("DATABASE_URL not set, using in-memory audit store")
		auditStore = auditmemory.NewInMemoryStore()
	}

	ledger, err := audit.NewLedger(auditStore, cfg.AuditWriteTimeout, log, audit.WithAlertMetrics(m))
	if err != nil {
		log.Error("build audit ledger", "error", err)
		os.Exit(1)
	}

	keys := token.NewJWKSKeySource(cfg.IssuerURL+"/.well-known/jwks.json", cfg.JWKSCacheTTL)
	verifier, err := token.NewVerifier(cfg.IssuerURL, cfg.Audience, keys)
	if err != nil {
		log.Error("build token verifier", "error", err)
		os.Exit(1)
	}

	authorizer, err := policy.NewAuthorizer(
		verifier,
		policystore.NewRedisStore(redisClient.Client),
		cfg.DecisionCacheTTL,
		log,
		policy.WithMetrics(m),
	)
	if err != nil {
		log.Error("build authorizer", "error", err)
		os.Exit(1)
	}

	roleGuard, err := guard.New(authorizer, ledger, cfg.AuditRetention, log, guard.WithMetrics(m))
	if err != nil {
		log.Error("build role guard", "error", err)
		os.Exit(1)
	}

	limiter, err := ratelimit.New(ratelimitstore.NewRedisStore(redisClient.Client), cfg.RateLimitWindow, cfg.RateLimitMax)
	if err != nil {
		log.Error("build rate limiter", "error", err)
		os.Exit(1)
	}
	limitMW, err := ratelimitmw.New(limiter, ledger, cfg.AuditRetention, log, ratelimitmw.WithMetrics(m))
	if err != nil {
		log.Error("build rate limit middleware", "error", err)
		os.Exit(1)
	}

	providerClient, err := provider.New(cfg.ProviderAPIURL)
	if err != nil {
		log.Error("build provider client", "error", err)
		os.Exit(1)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Guard:     roleGuard,
		RateLimit: limitMW,
		Instances: instancehandler.New(providerClient, ledger, cfg.AuditRetention, log),
		Audit:     audithandler.New(ledger, log),
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go ledger.RunRetentionSweep(rootCtx, time.Hour)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting fleetgate", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
