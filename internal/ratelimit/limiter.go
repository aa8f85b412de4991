// Package ratelimit guards privileged operations with a fixed-window,
// per-subject counter held in external storage. Read operations are not
// rate limited; this is a brake on destructive actions, not a traffic
// shaper.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CounterStore increments a window counter and returns the new count. The
// increment-and-read must be a single atomic operation against the store:
// two concurrent requests that both observed count=9 must not both pass.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter int // seconds until the window rolls over, set when denied
	ResetAt    time.Time
}

// Limiter counts privileged actions per subject in fixed windows.
type Limiter struct {
	store  CounterStore
	window time.Duration
	limit  int
	now    func() time.Time
}

type Option func(*Limiter)

// WithClock overrides the limiter's clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(store CounterStore, window time.Duration, limit int, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("counter store is required")
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	l := &Limiter{
		store:  store,
		window: window,
		limit:  limit,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow records one privileged action for the subject and reports whether
// it fits in the current window. A store error propagates so the caller
// can fail closed; the limiter never guesses a count.
func (l *Limiter) Allow(ctx context.Context, subjectID string) (Result, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	resetAt := windowStart.Add(l.window)

	key := counterKey(subjectID, windowStart)

	// TTL covers the window plus slack so a counter created at the end of
	// its window still expires on its own.
	count, err := l.store.Incr(ctx, key, l.window*2)
	if err != nil {
		return Result{}, fmt.Errorf("increment rate counter: %w", err)
	}

	result := Result{
		Limit:   l.limit,
		ResetAt: resetAt,
	}
	if count <= int64(l.limit) {
		result.Allowed = true
		result.Remaining = l.limit - int(count)
		return result, nil
	}

	retryAfter := int(resetAt.Sub(now).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	result.RetryAfter = retryAfter
	return result, nil
}

// counterKey buckets a subject into a window. The subject segment is
// sanitized so an identifier containing ':' cannot collide with adjacent
// buckets.
func counterKey(subjectID string, windowStart time.Time) string {
	subject := strings.ReplaceAll(subjectID, ":", "_")
	return fmt.Sprintf("fleetgate:ratelimit:%s:%d", subject, windowStart.Unix())
}
