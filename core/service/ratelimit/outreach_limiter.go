// Package ratelimit enforces per-user daily action quotas backed by Redis counters.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"outreach_server/core/port/out"
	"outreach_server/pkg/logger"

	"github.com/google/uuid"
)

const (
	// MinDailyLimit and MaxDailyLimit bound the configurable quota.
	MinDailyLimit = 20
	MaxDailyLimit = 40

	// DefaultDailyLimit applies when no limit is configured.
	DefaultDailyLimit = 20

	counterTTL = 24 * time.Hour
)

// Verdict is the outcome of a quota check.
type Verdict struct {
	Allowed   bool
	Limit     int
	Used      int
	Remaining int
}

// DailyLimiter counts actions per user and resource against a rolling daily window.
type DailyLimiter struct {
	store out.CounterStore
	limit int
}

// NewDailyLimiter creates a limiter with the given quota.
// The quota is clamped into [MinDailyLimit, MaxDailyLimit]; zero means default.
func NewDailyLimiter(store out.CounterStore, limit int) *DailyLimiter {
	return &DailyLimiter{
		store: store,
		limit: ClampLimit(limit),
	}
}

// ClampLimit normalizes a requested quota into the allowed range.
func ClampLimit(limit int) int {
	if limit == 0 {
		return DefaultDailyLimit
	}
	if limit < MinDailyLimit {
		return MinDailyLimit
	}
	if limit > MaxDailyLimit {
		return MaxDailyLimit
	}
	return limit
}

// Limit returns the effective daily quota.
func (l *DailyLimiter) Limit() int {
	return l.limit
}

// Allow consumes one unit of the user's daily quota for the given resource.
// Redis 없으면 허용 (fallback)
func (l *DailyLimiter) Allow(ctx context.Context, userID uuid.UUID, resource string) Verdict {
	return l.AllowN(ctx, userID, resource, l.limit)
}

// AllowN consumes one unit against an explicit per-call quota.
func (l *DailyLimiter) AllowN(ctx context.Context, userID uuid.UUID, resource string, limit int) Verdict {
	limit = ClampLimit(limit)

	if l.store == nil {
		return Verdict{Allowed: true, Limit: limit, Remaining: limit}
	}

	key := counterKey(userID, resource)

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		logger.Default().WithError(err).WithField("key", key).Warn("rate limit counter unavailable, allowing")
		return Verdict{Allowed: true, Limit: limit, Remaining: limit}
	}

	// First increment creates the key; the TTL starts the rolling window.
	if count == 1 {
		if err := l.store.Expire(ctx, key, counterTTL); err != nil {
			logger.Default().WithError(err).WithField("key", key).Warn("failed to set rate limit TTL")
		}
	}

	used := int(count)
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	return Verdict{
		Allowed:   used <= limit,
		Limit:     limit,
		Used:      used,
		Remaining: remaining,
	}
}

// Usage reports current consumption without incrementing the counter.
func (l *DailyLimiter) Usage(ctx context.Context, userID uuid.UUID, resource string) (Verdict, error) {
	if l.store == nil {
		return Verdict{Allowed: true, Limit: l.limit, Remaining: l.limit}, nil
	}

	count, err := l.store.Get(ctx, counterKey(userID, resource))
	if err != nil {
		return Verdict{Allowed: true, Limit: l.limit, Remaining: l.limit}, err
	}

	used := int(count)
	remaining := l.limit - used
	if remaining < 0 {
		remaining = 0
	}

	return Verdict{
		Allowed:   used < l.limit,
		Limit:     l.limit,
		Used:      used,
		Remaining: remaining,
	}, nil
}

func counterKey(userID uuid.UUID, resource string) string {
	return fmt.Sprintf("ratelimit:daily:%s:%s", userID.String(), resource)
}
