package persistence

import (
	"context"
	"time"

	"outreach_server/core/domain"
	"outreach_server/core/port/out"
	"outreach_server/pkg/apperr"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Review Queue Adapter (PostgreSQL)
// =============================================================================

// ReviewQueueAdapter implements out.ReviewQueueRepository using PostgreSQL.
type ReviewQueueAdapter struct {
	db *sqlx.DB
}

// NewReviewQueueAdapter creates a new ReviewQueueAdapter.
func NewReviewQueueAdapter(db *sqlx.DB) *ReviewQueueAdapter {
	return &ReviewQueueAdapter{db: db}
}

type reviewRow struct {
	ID               int64     `db:"id"`
	UserID           uuid.UUID `db:"user_id"`
	ProspectID       int64     `db:"prospect_id"`
	ThreadID         string    `db:"thread_id"`
	ReplyText        string    `db:"reply_text"`
	Channel          string    `db:"channel"`
	Status           string    `db:"qualification_status"`
	Confidence       int       `db:"confidence_score"`
	ProposedResponse string    `db:"proposed_response"`
	Reasoning        string    `db:"reasoning"`
	CreatedAt        time.Time `db:"created_at"`
}

func (r *reviewRow) toEntity() *out.ReviewEntry {
	return &out.ReviewEntry{
		ID:               r.ID,
		UserID:           r.UserID,
		ProspectID:       r.ProspectID,
		ThreadID:         r.ThreadID,
		ReplyText:        r.ReplyText,
		Channel:          domain.Channel(r.Channel),
		Status:           domain.QualificationStatus(r.Status),
		Confidence:       r.Confidence,
		ProposedResponse: r.ProposedResponse,
		Reasoning:        r.Reasoning,
		CreatedAt:        r.CreatedAt,
	}
}

// Create inserts a review entry and fills in its generated ID.
func (a *ReviewQueueAdapter) Create(ctx context.Context, entry *out.ReviewEntry) error {
	query := `
		INSERT INTO ai_review_queue (user_id, prospect_id, thread_id, reply_text,
			channel, qualification_status, confidence_score, proposed_response, reasoning)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := a.db.QueryRowContext(ctx, query,
		entry.UserID,
		entry.ProspectID,
		entry.ThreadID,
		entry.ReplyText,
		string(entry.Channel),
		string(entry.Status),
		entry.Confidence,
		entry.ProposedResponse,
		entry.Reasoning,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return apperr.DatabaseError("create review entry", err)
	}
	return nil
}

// ListPending returns undecided entries, newest first.
func (a *ReviewQueueAdapter) ListPending(ctx context.Context, userID uuid.UUID, limit int) ([]*out.ReviewEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, prospect_id, thread_id, reply_text, channel,
			qualification_status, confidence_score, proposed_response, reasoning, created_at
		FROM ai_review_queue
		WHERE user_id = $1 AND decided_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2`

	var rows []reviewRow
	if err := a.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, apperr.DatabaseError("list pending reviews", err)
	}

	entries := make([]*out.ReviewEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].toEntity())
	}
	return entries, nil
}
