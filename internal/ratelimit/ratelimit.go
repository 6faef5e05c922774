// Package ratelimit implements fixed-window admission control: one
// counter per (team, minute bucket), atomically incremented at the store.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	window = time.Minute
	// counterTTL covers the current and prior bucket so a counter never
	// disappears mid-window; stale buckets self-expire.
	counterTTL = 2 * time.Minute
)

// Store provides an atomic increment-with-expiry. Read-then-write is not
// acceptable here: concurrent requests from one team must linearize on
// the bucket counter.
type Store interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type LimitExceededError struct {
	RetryAfter int // seconds until the next window opens
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfter)
}

type Limiter struct {
	store Store
	log   *slog.Logger
}

func NewLimiter(store Store, log *slog.Logger) *Limiter {
	return &Limiter{store: store, log: log}
}

// Admit increments the team's counter for the current minute bucket and
// denies once the post-increment value exceeds limitRPM. Store failures
// admit the request: a broken counter store must not take the gateway
// down.
func (l *Limiter) Admit(ctx context.Context, teamID string, limitRPM int) error {
	now := time.Now().UTC()
	bucket := now.Unix() / int64(window.Seconds())
	key := fmt.Sprintf("ratelimit:%s:%d", teamID, bucket)

	count, err := l.store.Increment(ctx, key, counterTTL)
	if err != nil {
		l.log.Warn("rate limit store error, failing open", "team_id", teamID, "error", err)
		return nil
	}
	if count > int64(limitRPM) {
		return &LimitExceededError{RetryAfter: 60 - now.Second()}
	}
	return nil
}
