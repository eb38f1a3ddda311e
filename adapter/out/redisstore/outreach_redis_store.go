// Package redisstore backs the counter and queue ports with Redis primitives:
// INCR for counters, sorted sets with ZPOPMIN for the priority queue.
package redisstore

import (
	"context"
	"errors"
	"time"

	"outreach_server/core/port/out"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// ---- CounterStore ----

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

// ---- QueueStore ----

func (s *Store) Add(ctx context.Context, key, member string, score int64) (int64, error) {
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: member}).Err(); err != nil {
		return 0, err
	}
	rank, err := s.client.ZRank(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return rank, err
}

// PopMin removes and returns up to count lowest-score members atomically via
// ZPOPMIN, so concurrent dequeuers never receive the same item.
func (s *Store) PopMin(ctx context.Context, key string, count int) ([]out.ScoredItem, error) {
	popped, err := s.client.ZPopMin(ctx, key, int64(count)).Result()
	if err != nil {
		return nil, err
	}

	items := make([]out.ScoredItem, 0, len(popped))
	for _, z := range popped {
		member, _ := z.Member.(string)
		items = append(items, out.ScoredItem{Member: member, Score: int64(z.Score)})
	}
	return items, nil
}

func (s *Store) Card(ctx context.Context, key string) (int64, error) {
	return s.client.ZCard(ctx, key).Result()
}

func (s *Store) NextSeq(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

// ---- MemberStore ----

func (s *Store) AddMember(ctx context.Context, set, member string) error {
	return s.client.SAdd(ctx, set, member).Err()
}

func (s *Store) Members(ctx context.Context, set string) ([]string, error) {
	return s.client.SMembers(ctx, set).Result()
}

func (s *Store) RemoveMember(ctx context.Context, set, member string) error {
	return s.client.SRem(ctx, set, member).Err()
}
