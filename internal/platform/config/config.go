package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything fleetgate reads from the environment. Nothing
// here is hardcoded in services; main builds one of these and threads it
// through constructors.
type Config struct {
	Addr string

	// Identity provider.
	IssuerURL string
	Audience  string

	// Externalized state.
	RedisURL    string
	DatabaseURL string

	// Decision cache and signing-key cache TTLs. Decisions expire on their
	// own clock so a revoked role cannot outlive DecisionCacheTTL.
	DecisionCacheTTL time.Duration
	JWKSCacheTTL     time.Duration

	// Rate limiting for privileged operations.
	RateLimitWindow time.Duration
	RateLimitMax    int

	// Audit ledger.
	AuditRetention    time.Duration
	AuditWriteTimeout time.Duration

	// Instance provider pass-through.
	ProviderAPIURL string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:              envString("FLEETGATE_ADDR", ":8080"),
		IssuerURL:         envString("IDP_ISSUER_URL", ""),
		Audience:          envString("IDP_AUDIENCE", ""),
		RedisURL:          envString("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:       envString("DATABASE_URL", ""),
		DecisionCacheTTL:  envDuration("DECISION_CACHE_TTL", 5*time.Minute),
		JWKSCacheTTL:      envDuration("JWKS_CACHE_TTL", time.Hour),
		RateLimitWindow:   envDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitMax:      envInt("RATE_LIMIT_MAX", 10),
		AuditRetention:    envDuration("AUDIT_RETENTION", 30*24*time.Hour),
		AuditWriteTimeout: envDuration("AUDIT_WRITE_TIMEOUT", 2*time.Second),
		ProviderAPIURL:    envString("PROVIDER_API_URL", ""),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
