// Package store provides DecisionStore implementations. Redis is the
// production backend; the in-memory store backs unit tests.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetgate/internal/policy"
)

const decisionKeyPrefix = "fleetgate:decision:"

// RedisStore persists decisions in Redis with a TTL matching the decision
// expiry, so the store and the decision agree on lifetime.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, fingerprint string) (*policy.Decision, bool, error) {
	raw, err := s.client.Get(ctx, decisionKeyPrefix+fingerprint).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get decision: %w", err)
	}

	var decision policy.Decision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return nil, false, fmt.Errorf("decode decision: %w", err)
	}
	return &decision, true, nil
}

func (s *RedisStore) Put(ctx context.Context, decision *policy.Decision) error {
	ttl := time.Until(decision.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}

	// SET NX keeps the first-written decision authoritative: decisions are
	// immutable once created, so a concurrent writer with the same
	// fingerprint must not overwrite.
	if err := s.client.SetNX(ctx, decisionKeyPrefix+decision.TokenFingerprint, payload, ttl).Err(); err != nil {
		return fmt.Errorf("put decision: %w", err)
	}
	return nil
}
