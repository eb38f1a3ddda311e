// Package queue implements the VIP-weighted priority queue for outbound emails.
package queue

import (
	"context"
	"fmt"

	"outreach_server/core/domain"
	"outreach_server/core/port/out"
	"outreach_server/pkg/apperr"
	"outreach_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// EmailQueue orders pending sends by composite priority score. VIP items are
// always dequeued ahead of non-VIP regardless of enqueue order; within a
// priority class the order is FIFO.
type EmailQueue struct {
	store   out.QueueStore
	members out.MemberStore
}

func NewEmailQueue(store out.QueueStore) *EmailQueue {
	return &EmailQueue{store: store}
}

// NewEmailQueueWithRegistry additionally tracks which users have pending
// sends, for the background send worker.
func NewEmailQueueWithRegistry(store out.QueueStore, members out.MemberStore) *EmailQueue {
	return &EmailQueue{store: store, members: members}
}

const activeUsersSet = "emailqueue:users"

// Enqueue inserts the item into the user's queue and returns its current
// 0-based position. The item's ID is assigned if empty.
func (q *EmailQueue) Enqueue(ctx context.Context, item *domain.EmailQueueItem) (int64, error) {
	if q.store == nil {
		return 0, apperr.ServiceUnavailable("queue store", nil)
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	key := queueKey(item.UserID)

	seq, err := q.store.NextSeq(ctx, seqKey(item.UserID))
	if err != nil {
		return 0, apperr.ServiceUnavailable("queue store", err)
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return 0, fmt.Errorf("marshal queue item: %w", err)
	}

	rank, err := q.store.Add(ctx, key, string(payload), item.PriorityScore(seq))
	if err != nil {
		return 0, apperr.ServiceUnavailable("queue store", err)
	}

	if q.members != nil {
		if err := q.members.AddMember(ctx, activeUsersSet, item.UserID.String()); err != nil {
			logger.Default().WithError(err).Warn("[EmailQueue] failed to register active user")
		}
	}
	return rank, nil
}

// ActiveUsers lists users with pending sends. Without a registry the list is
// empty.
func (q *EmailQueue) ActiveUsers(ctx context.Context) ([]uuid.UUID, error) {
	if q.members == nil {
		return nil, nil
	}
	raw, err := q.members.Members(ctx, activeUsersSet)
	if err != nil {
		return nil, apperr.ServiceUnavailable("queue store", err)
	}

	users := make([]uuid.UUID, 0, len(raw))
	for _, m := range raw {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		users = append(users, id)
	}
	return users, nil
}

// Deregister drops a user from the active set once their queue is drained.
func (q *EmailQueue) Deregister(ctx context.Context, userID uuid.UUID) {
	if q.members == nil {
		return
	}
	if err := q.members.RemoveMember(ctx, activeUsersSet, userID.String()); err != nil {
		logger.Default().WithError(err).Warn("[EmailQueue] failed to deregister user")
	}
}

// Dequeue atomically removes and returns up to count items in priority order.
// An empty queue yields an empty slice.
func (q *EmailQueue) Dequeue(ctx context.Context, userID uuid.UUID, count int) ([]domain.EmailQueueItem, error) {
	if q.store == nil {
		return nil, apperr.ServiceUnavailable("queue store", nil)
	}
	if count <= 0 {
		count = 1
	}

	popped, err := q.store.PopMin(ctx, queueKey(userID), count)
	if err != nil {
		return nil, apperr.ServiceUnavailable("queue store", err)
	}

	items := make([]domain.EmailQueueItem, 0, len(popped))
	for _, m := range popped {
		var item domain.EmailQueueItem
		if err := json.Unmarshal([]byte(m.Member), &item); err != nil {
			return nil, fmt.Errorf("unmarshal queue item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Size returns the number of pending items in the user's queue.
func (q *EmailQueue) Size(ctx context.Context, userID uuid.UUID) (int64, error) {
	if q.store == nil {
		return 0, apperr.ServiceUnavailable("queue store", nil)
	}
	n, err := q.store.Card(ctx, queueKey(userID))
	if err != nil {
		return 0, apperr.ServiceUnavailable("queue store", err)
	}
	return n, nil
}

func queueKey(userID uuid.UUID) string {
	return fmt.Sprintf("emailqueue:%s", userID.String())
}

func seqKey(userID uuid.UUID) string {
	return fmt.Sprintf("emailqueue:seq:%s", userID.String())
}
