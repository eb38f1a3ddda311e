// Package out defines the outbound ports of the outreach core.
package out

import (
	"context"
	"time"
)

// CounterStore backs the daily rate-limit counters. Implementations must
// provide atomic increments; Redis is the production backend.
type CounterStore interface {
	// Incr atomically increments the key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Get returns the current value, 0 if the key does not exist.
	Get(ctx context.Context, key string) (int64, error)
	// Expire sets the key's TTL. The limiter calls this only on the
	// increment that created the key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// ScoredItem pairs a queue member with its composite priority score.
type ScoredItem struct {
	Member string
	Score  int64
}

// MemberStore tracks set membership. The queue uses it to register which
// users currently have pending sends, so workers know whose queues to drain.
type MemberStore interface {
	AddMember(ctx context.Context, set, member string) error
	Members(ctx context.Context, set string) ([]string, error)
	RemoveMember(ctx context.Context, set, member string) error
}

// QueueStore backs the priority email queue with an ordered structure that
// supports atomic pop-minimum. Redis sorted sets in production.
type QueueStore interface {
	// Add inserts a member with the given score and returns its rank
	// (0-based position in ascending score order).
	Add(ctx context.Context, key, member string, score int64) (int64, error)
	// PopMin atomically removes and returns up to count lowest-score
	// members. An empty queue yields an empty slice, not an error.
	PopMin(ctx context.Context, key string, count int) ([]ScoredItem, error)
	// Card returns the number of members in the queue.
	Card(ctx context.Context, key string) (int64, error)
	// NextSeq returns a monotonically increasing sequence number used to
	// break ties FIFO within a priority class.
	NextSeq(ctx context.Context, key string) (int64, error)
}
