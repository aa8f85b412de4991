package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"fleetgate/internal/ratelimit"
	"fleetgate/internal/ratelimit/store"
)

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis: connection refused")
}

type LimiterSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	clock   time.Time
	limiter *ratelimit.Limiter
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.clock = time.Date(2026, 3, 14, 10, 30, 15, 0, time.UTC)

	var err error
	s.limiter, err = ratelimit.New(s.store, time.Minute, 10,
		ratelimit.WithClock(func() time.Time { return s.clock }))
	s.Require().NoError(err)
}

func (s *LimiterSuite) TestEleventhRequestRejected() {
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		result, err := s.limiter.Allow(ctx, "u1")
		s.Require().NoError(err)
		s.True(result.Allowed, "request %d should be admitted", i+1)
		s.Equal(10-(i+1), result.Remaining)
	}

	result, err := s.limiter.Allow(ctx, "u1")
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Equal(0, result.Remaining)
	s.Equal(45, result.RetryAfter, "retry hint is the remaining window time")
}

func (s *LimiterSuite) TestSubjectsCountedIndependently() {
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := s.limiter.Allow(ctx, "u1")
		s.Require().NoError(err)
	}

	result, err := s.limiter.Allow(ctx, "u2")
	s.Require().NoError(err)
	s.True(result.Allowed, "another subject's quota is untouched")
}

func (s *LimiterSuite) TestWindowRollover() {
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		_, err := s.limiter.Allow(ctx, "u1")
		s.Require().NoError(err)
	}

	s.clock = s.clock.Add(time.Minute)

	result, err := s.limiter.Allow(ctx, "u1")
	s.Require().NoError(err)
	s.True(result.Allowed, "a fresh window resets the count")
	s.Equal(9, result.Remaining)
}

func (s *LimiterSuite) TestKeySanitization() {
	ctx := context.Background()

	// A subject crafted to collide with another bucket must still be
	// counted on its own.
	for i := 0; i < 10; i++ {
		_, err := s.limiter.Allow(ctx, "u1:extra")
		s.Require().NoError(err)
	}

	result, err := s.limiter.Allow(ctx, "u1")
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *LimiterSuite) TestStoreErrorPropagates() {
	limiter, err := ratelimit.New(failingStore{}, time.Minute, 10)
	s.Require().NoError(err)

	_, err = limiter.Allow(context.Background(), "u1")
	s.Error(err, "the caller fails closed; the limiter never guesses")
}

func TestLimiterConcurrentCounting(t *testing.T) {
	counters := store.NewInMemoryStore()
	fixed := time.Date(2026, 3, 14, 10, 30, 15, 0, time.UTC)
	limiter, err := ratelimit.New(counters, time.Minute, 10,
		ratelimit.WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := limiter.Allow(context.Background(), "u1")
			require.NoError(t, err)
			if result.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Order-independent count: exactly the limit passes regardless of
	// arrival order.
	require.Equal(t, 10, allowed)
}
